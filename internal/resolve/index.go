// Package resolve maps annotation keys onto image files. An Index is built
// once per dataset folder; the Rapid and Rate resolvers are pure lookups over
// it that encode the naming offsets observed between the annotation tool and
// each capture instrument.
package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Extensions is a set of lowercase file extensions including the dot.
type Extensions map[string]bool

var (
	// Strict accepts TIFF captures only.
	Strict = Extensions{".tif": true, ".tiff": true}
	// Permissive also accepts PNG and JPEG exports.
	Permissive = Extensions{".tif": true, ".tiff": true, ".png": true, ".jpg": true, ".jpeg": true}
)

// Has reports whether the extension of name is in the set.
func (e Extensions) Has(name string) bool {
	return e[strings.ToLower(filepath.Ext(name))]
}

var measDigits = regexp.MustCompile(`meas(\d+)`)

// Index maps lowercase image stems to paths. It is immutable once built.
type Index struct {
	byStem map[string]string
	stems  []string
}

// Scan indexes the images directly inside dir. Subdirectories such as masks/
// and overlays/ are never descended into, and stems containing "overlay" are
// left out.
func Scan(dir string, exts Extensions) (*Index, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return NewIndex(paths, exts), nil
}

// NewIndex builds an index from a list of file paths. When two files share a
// stem the lexically first path wins.
func NewIndex(paths []string, exts Extensions) *Index {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	idx := &Index{byStem: make(map[string]string)}
	for _, p := range sorted {
		if !exts.Has(p) {
			continue
		}
		stem := StemOf(p)
		if strings.Contains(stem, "overlay") {
			continue
		}
		if _, dup := idx.byStem[stem]; dup {
			continue
		}
		idx.byStem[stem] = p
		idx.stems = append(idx.stems, stem)
	}
	sort.Strings(idx.stems)
	return idx
}

// StemOf returns the lowercase file name of p without its extension.
func StemOf(p string) string {
	base := filepath.Base(p)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// Len returns the number of indexed images.
func (idx *Index) Len() int {
	return len(idx.stems)
}

// Stems returns the indexed stems in sorted order.
func (idx *Index) Stems() []string {
	return append([]string(nil), idx.stems...)
}

// Lookup returns the path stored under stem.
func (idx *Index) Lookup(stem string) (string, bool) {
	p, ok := idx.byStem[strings.ToLower(stem)]
	return p, ok
}

type capture struct {
	meas int
	stem string
}

// forCell lists the images whose stem starts with cell{cell:02d}meas, in
// stem order, paired with the integer following "meas".
func (idx *Index) forCell(cell int) []capture {
	prefix := fmt.Sprintf("cell%02dmeas", cell)
	var out []capture
	for _, stem := range idx.stems {
		if !strings.HasPrefix(stem, prefix) {
			continue
		}
		m := measDigits.FindStringSubmatch(stem)
		if m == nil {
			continue
		}
		meas, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, capture{meas: meas, stem: stem})
	}
	return out
}
