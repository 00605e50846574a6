// Package annotation reads the per-dataset annotation files written by the
// labelling tool. Each file is a JSON object keyed by stringified
// (cell, measurement) tuples; every other key is tool metadata and is ignored.
package annotation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
)

// SelectionManual marks an entry curated by hand as ground truth.
const SelectionManual = "manual"

var (
	// ErrNotFound is returned when the annotation file does not exist.
	ErrNotFound = errors.New("annotation file not found")
	// ErrMalformed is returned when the file cannot be parsed as a whole.
	ErrMalformed = errors.New("malformed annotation file")
	// ErrClickData is set on a manual entry whose polygons cannot be read.
	ErrClickData = errors.New("invalid clickData")
)

// Polygon is one closed contour in image pixel coordinates.
type Polygon []image.Point

// Valid reports whether the polygon encloses an area that can be filled.
func (p Polygon) Valid() bool {
	return len(p) >= 3
}

// Entry is the annotation record stored under one key. Polygons are only
// read for manual entries.
type Entry struct {
	Selection string
	Polygons  []Polygon
	// Err is set when a manual entry's clickData is not a list of contours.
	Err error

	record bool
}

// Manual reports whether the entry is eligible for mask generation.
func (e Entry) Manual() bool {
	return e.Selection == SelectionManual
}

// Set holds the entries of one annotation file. It is read-only once loaded.
type Set struct {
	entries map[Key]Entry
	keys    []Key
}

func newSet() *Set {
	return &Set{entries: make(map[Key]Entry)}
}

// Len returns the number of tuple-keyed entries.
func (s *Set) Len() int {
	return len(s.keys)
}

// Keys returns the keys in the order they first appear in the file.
func (s *Set) Keys() []Key {
	out := make([]Key, len(s.keys))
	copy(out, s.keys)
	return out
}

// Get returns the entry stored under k.
func (s *Set) Get(k Key) (Entry, bool) {
	e, ok := s.entries[k]
	return e, ok
}

// CountManual returns how many entries carry the manual selection label.
func (s *Set) CountManual() int {
	n := 0
	for _, e := range s.entries {
		if e.Manual() {
			n++
		}
	}
	return n
}

// CountExcluded returns how many object entries are not manual. Values that
// are not objects are not counted.
func (s *Set) CountExcluded() int {
	n := 0
	for _, e := range s.entries {
		if e.record && !e.Manual() {
			n++
		}
	}
	return n
}

// Load reads the annotation file at path. On any error the returned set is
// empty rather than partially filled.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newSet(), fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return newSet(), fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	s, err := Decode(f)
	if err != nil {
		return newSet(), fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Decode parses an annotation document. When two keys parse to the same Key
// the one appearing later in the document wins, at the position of the first.
func Decode(r io.Reader) (*Set, error) {
	s := newSet()
	err := eachMember(r, func(name string, raw json.RawMessage) error {
		k, ok := ParseKey(name)
		if !ok {
			return nil
		}
		e, err := decodeEntry(raw)
		if err != nil {
			return fmt.Errorf("entry %s: %w", name, err)
		}
		if _, seen := s.entries[k]; !seen {
			s.keys = append(s.keys, k)
		}
		s.entries[k] = e
		return nil
	})
	if err != nil {
		return newSet(), err
	}
	return s, nil
}

// eachMember walks the members of a top-level JSON object in document order.
func eachMember(r io.Reader, fn func(name string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: top-level value is not an object", ErrMalformed)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: unexpected token %v", ErrMalformed, tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := fn(name, raw); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func decodeEntry(raw json.RawMessage) (Entry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		// Not a record; it can never be selected.
		return Entry{}, nil
	}

	var fields struct {
		Selection json.RawMessage `json:"selection"`
		ClickData json.RawMessage `json:"clickData"`
	}
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	e := Entry{record: true}
	// A non-string label simply never equals "manual".
	_ = json.Unmarshal(fields.Selection, &e.Selection)
	if !e.Manual() {
		return e, nil
	}

	e.Polygons, e.Err = decodePolygons(fields.ClickData)
	return e, nil
}

func decodePolygons(raw json.RawMessage) ([]Polygon, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var contours [][][]float64
	if err := json.Unmarshal(raw, &contours); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClickData, err)
	}
	polys := make([]Polygon, 0, len(contours))
	for i, c := range contours {
		p := make(Polygon, 0, len(c))
		for j, xy := range c {
			if len(xy) < 2 {
				return nil, fmt.Errorf("%w: [%d][%d] has %d coordinates", ErrClickData, i, j, len(xy))
			}
			// Float coordinates truncate toward zero.
			p = append(p, image.Pt(int(xy[0]), int(xy[1])))
		}
		polys = append(polys, p)
	}
	return polys, nil
}
