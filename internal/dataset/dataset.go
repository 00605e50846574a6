// Package dataset runs the mask pass over dataset folders laid out the way
// the two capture instruments export them.
//
// Rapid datasets keep their annotation files next to the images:
//
//	DN1-rapid/cell01meas0000.tif
//	DN1-rapid/DN1-rapid_im_annotations.json
//	DN1-rapid/DN1-rapid_vd_annotations.json
//
// Rate datasets keep them in a sibling folder:
//
//	DN1-rate/cell01meas0000.tif
//	DN1-rate_annotations/DN1_im_annotations.json
//
// Either layout may instead use an annotations/ subfolder. Masks are written
// to a masks/ subfolder of the dataset.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cellmask/internal/resolve"
)

// ErrNoAnnotations is returned when a dataset has no annotation file.
var ErrNoAnnotations = errors.New("no annotations")

// Layout is the acquisition convention of a dataset.
type Layout int

const (
	Rapid Layout = iota
	Rate
)

func (l Layout) String() string {
	if l == Rapid {
		return "rapid"
	}
	return "rate"
}

// LayoutOf infers the layout from a folder name.
func LayoutOf(name string) (Layout, bool) {
	switch {
	case strings.HasSuffix(name, "-rapid"):
		return Rapid, true
	case strings.HasSuffix(name, "-rate"):
		return Rate, true
	}
	return 0, false
}

// Dataset is one image folder.
type Dataset struct {
	Name   string
	Dir    string
	Layout Layout
}

// New describes the dataset folder at dir.
func New(dir string) (Dataset, error) {
	name := filepath.Base(filepath.Clean(dir))
	layout, ok := LayoutOf(name)
	if !ok {
		return Dataset{}, fmt.Errorf("%s: not a -rapid or -rate folder", name)
	}
	return Dataset{Name: name, Dir: dir, Layout: layout}, nil
}

// Discover lists the dataset folders directly under root, sorted by name.
// Folders that are neither rapid nor rate (force captures, annotation
// folders) are ignored. A non-empty only restricts the result to those names.
func Discover(root string, only []string) ([]Dataset, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read data root: %w", err)
	}
	keep := make(map[string]bool, len(only))
	for _, n := range only {
		keep[n] = true
	}

	var out []Dataset
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		layout, ok := LayoutOf(name)
		if !ok {
			continue
		}
		if len(keep) > 0 && !keep[name] {
			continue
		}
		out = append(out, Dataset{Name: name, Dir: filepath.Join(root, name), Layout: layout})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// MaskDir is where masks for the dataset are written.
func (d Dataset) MaskDir() string {
	return filepath.Join(d.Dir, "masks")
}

// Resolver returns the image resolver for the dataset's layout.
func (d Dataset) Resolver(idx *resolve.Index) resolve.Resolver {
	if d.Layout == Rapid {
		return resolve.Rapid{Index: idx}
	}
	return resolve.Rate{Index: idx}
}

// AnnotationPath locates the image annotation file.
func (d Dataset) AnnotationPath() (string, bool) {
	sub := filepath.Join(d.Dir, "annotations")
	if d.Layout == Rapid {
		return firstMatch(
			filepath.Join(d.Dir, d.Name+"_im_annotations.json"),
			filepath.Join(sub, "*_im_annotations.json"),
		)
	}
	sibling := filepath.Join(filepath.Dir(d.Dir), d.Name+"_annotations")
	return firstMatch(
		filepath.Join(sibling, "*_im_annotations.json"),
		filepath.Join(sibling, "*.json"),
		filepath.Join(sub, "*_im_annotations.json"),
		filepath.Join(sub, "*.json"),
	)
}

// VerdictPath locates the optional validity verdict file.
func (d Dataset) VerdictPath() (string, bool) {
	sub := filepath.Join(d.Dir, "annotations")
	if d.Layout == Rapid {
		return firstMatch(
			filepath.Join(d.Dir, d.Name+"_vd_annotations.json"),
			filepath.Join(sub, "*_vd_annotations.json"),
		)
	}
	return firstMatch(
		filepath.Join(filepath.Dir(d.Dir), d.Name+"_annotations", "*_vd_annotations.json"),
		filepath.Join(sub, "*_vd_annotations.json"),
	)
}

// firstMatch returns the first file matched by the patterns, tried in order.
// Verdict files never stand in for an annotation file.
func firstMatch(patterns ...string) (string, bool) {
	for _, pattern := range patterns {
		hits, _ := filepath.Glob(pattern)
		for _, hit := range hits {
			if !strings.HasSuffix(pattern, "_vd_annotations.json") && strings.HasSuffix(hit, "_vd_annotations.json") {
				continue
			}
			if info, err := os.Stat(hit); err == nil && !info.IsDir() {
				return hit, true
			}
		}
	}
	return "", false
}
