package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Verdicts holds the per-key validity flags some rapid datasets ship
// alongside their image annotations.
type Verdicts map[Key]bool

// Accepts reports whether k was explicitly marked valid.
func (v Verdicts) Accepts(k Key) bool {
	return v[k]
}

// CountRejected returns the number of keys marked false.
func (v Verdicts) CountRejected() int {
	n := 0
	for _, ok := range v {
		if !ok {
			n++
		}
	}
	return n
}

// LoadVerdicts reads a verdict file. Errors follow Load.
func LoadVerdicts(path string) (Verdicts, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Verdicts{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Verdicts{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	v, err := DecodeVerdicts(f)
	if err != nil {
		return Verdicts{}, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// DecodeVerdicts parses a verdict document. Values that are not booleans
// read as false.
func DecodeVerdicts(r io.Reader) (Verdicts, error) {
	v := Verdicts{}
	err := eachMember(r, func(name string, raw json.RawMessage) error {
		k, ok := ParseKey(name)
		if !ok {
			return nil
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			b = false
		}
		v[k] = b
		return nil
	})
	if err != nil {
		return Verdicts{}, err
	}
	return v, nil
}
