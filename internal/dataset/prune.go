package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cellmask/internal/annotation"
	"cellmask/internal/mask"
	"cellmask/internal/resolve"
)

// Prune removes masks left over from earlier runs whose image no longer
// corresponds to a manual annotation. A mask is kept when its stem is the
// stem a manual key resolves to today, the key's own stem, or the key's
// measurement-1 stem. With dryRun nothing is deleted. The removed (or, for a
// dry run, removable) file names are returned.
func Prune(ds Dataset, exts resolve.Extensions, dryRun bool) ([]string, error) {
	annPath, ok := ds.AnnotationPath()
	if !ok {
		return nil, ErrNoAnnotations
	}
	set, err := annotation.Load(annPath)
	if err != nil {
		return nil, err
	}
	idx, err := resolve.Scan(ds.Dir, exts)
	if err != nil {
		return nil, err
	}
	resolver := ds.Resolver(idx)

	allowed := make(map[string]bool)
	for _, k := range set.Keys() {
		if e, _ := set.Get(k); !e.Manual() {
			continue
		}
		allowed[k.Stem()] = true
		if k.Measurement > 0 {
			allowed[annotation.Stem(k.Cell, k.Measurement-1)] = true
		}
		if res := resolver.Resolve(k); res.OK() {
			allowed[res.Stem] = true
		}
	}

	masks, err := filepath.Glob(filepath.Join(ds.MaskDir(), "*"+mask.Suffix))
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, p := range masks {
		name := filepath.Base(p)
		stem := strings.ToLower(strings.TrimSuffix(name, mask.Suffix))
		if allowed[stem] {
			continue
		}
		if !dryRun {
			if err := os.Remove(p); err != nil {
				return removed, fmt.Errorf("remove %s: %w", name, err)
			}
		}
		removed = append(removed, name)
	}
	return removed, nil
}
