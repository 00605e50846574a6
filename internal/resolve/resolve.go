package resolve

import (
	"cellmask/internal/annotation"
)

// Rule names the heuristic that produced a resolution.
type Rule int

const (
	Miss Rule = iota
	Exact
	Previous // measurement - 1
	Offset   // rate offsets -2 and +1
	Lowest   // smallest measurement for the cell
	Nearest  // numerically closest measurement for the cell
)

func (r Rule) String() string {
	switch r {
	case Exact:
		return "exact"
	case Previous:
		return "previous"
	case Offset:
		return "offset"
	case Lowest:
		return "lowest"
	case Nearest:
		return "nearest"
	}
	return "miss"
}

// Resolution is the outcome of one lookup.
type Resolution struct {
	Path  string
	Stem  string
	Rule  Rule
	Tried []string // candidate stems checked before a fallback, in order
}

// OK reports whether an image was found.
func (r Resolution) OK() bool {
	return r.Rule != Miss
}

// Resolver picks the image for an annotation key.
type Resolver interface {
	Resolve(k annotation.Key) Resolution
}

// Rapid resolves keys for the rapid layout: exact measurement, then
// measurement-1, then the smallest measurement captured for the cell.
type Rapid struct {
	Index *Index
}

func (r Rapid) Resolve(k annotation.Key) Resolution {
	caps := r.Index.forCell(k.Cell)
	if len(caps) == 0 {
		return Resolution{Rule: Miss}
	}

	byMeas := make(map[int]string, len(caps))
	lowest := caps[0].meas
	for _, c := range caps {
		if _, dup := byMeas[c.meas]; !dup {
			byMeas[c.meas] = c.stem
		}
		lowest = min(lowest, c.meas)
	}

	var tried []string
	for _, step := range []struct {
		meas int
		rule Rule
	}{
		{k.Measurement, Exact},
		{k.Measurement - 1, Previous},
	} {
		if step.meas < 0 {
			continue
		}
		tried = append(tried, annotation.Stem(k.Cell, step.meas))
		if stem, ok := byMeas[step.meas]; ok {
			return r.found(stem, step.rule, tried)
		}
	}
	return r.found(byMeas[lowest], Lowest, tried)
}

func (r Rapid) found(stem string, rule Rule, tried []string) Resolution {
	path, _ := r.Index.Lookup(stem)
	return Resolution{Path: path, Stem: stem, Rule: rule, Tried: tried}
}

// rateOffsets are tried in order after the exact stem misses.
var rateOffsets = []int{-1, -2, +1}

// Rate resolves keys for the rate layout: exact stem, then offsets -1, -2
// and +1, then the numerically nearest measurement for the cell. Equidistant
// candidates resolve to the smaller measurement.
type Rate struct {
	Index *Index
}

func (r Rate) Resolve(k annotation.Key) Resolution {
	stem := k.Stem()
	tried := []string{stem}
	if path, ok := r.Index.Lookup(stem); ok {
		return Resolution{Path: path, Stem: stem, Rule: Exact, Tried: tried}
	}

	for _, delta := range rateOffsets {
		meas := k.Measurement + delta
		if meas < 0 {
			continue
		}
		cand := annotation.Stem(k.Cell, meas)
		tried = append(tried, cand)
		if path, ok := r.Index.Lookup(cand); ok {
			rule := Offset
			if delta == -1 {
				rule = Previous
			}
			return Resolution{Path: path, Stem: cand, Rule: rule, Tried: tried}
		}
	}

	caps := r.Index.forCell(k.Cell)
	if len(caps) == 0 {
		return Resolution{Rule: Miss, Tried: tried}
	}
	best := caps[0]
	for _, c := range caps[1:] {
		d, bd := distance(c.meas, k.Measurement), distance(best.meas, k.Measurement)
		if d < bd || (d == bd && c.meas < best.meas) {
			best = c
		}
	}
	path, _ := r.Index.Lookup(best.stem)
	return Resolution{Path: path, Stem: best.stem, Rule: Nearest, Tried: tried}
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
