package dataset

import (
	"cellmask/internal/annotation"
	"cellmask/internal/resolve"
)

// sampleSize caps the stems listed in a Diagnosis.
const sampleSize = 20

// Unresolved is a manual key with no matching image.
type Unresolved struct {
	Key   annotation.Key
	Tried []string
}

// Diagnosis explains why a dataset has fewer masks than manual entries.
type Diagnosis struct {
	Images     int
	Manual     int
	Rules      map[resolve.Rule]int
	Unresolved []Unresolved
	Sample     []string
}

// Diagnose resolves every manual key of ds without touching any image data.
func Diagnose(ds Dataset, exts resolve.Extensions) (Diagnosis, error) {
	var d Diagnosis
	annPath, ok := ds.AnnotationPath()
	if !ok {
		return d, ErrNoAnnotations
	}
	set, err := annotation.Load(annPath)
	if err != nil {
		return d, err
	}
	idx, err := resolve.Scan(ds.Dir, exts)
	if err != nil {
		return d, err
	}
	resolver := ds.Resolver(idx)

	d.Images = idx.Len()
	d.Rules = make(map[resolve.Rule]int)
	for _, k := range set.Keys() {
		if e, _ := set.Get(k); !e.Manual() {
			continue
		}
		d.Manual++
		res := resolver.Resolve(k)
		d.Rules[res.Rule]++
		if !res.OK() {
			d.Unresolved = append(d.Unresolved, Unresolved{Key: k, Tried: res.Tried})
		}
	}

	d.Sample = idx.Stems()
	if len(d.Sample) > sampleSize {
		d.Sample = d.Sample[:sampleSize]
	}
	return d, nil
}
