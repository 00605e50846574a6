package dataset

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"

	_ "golang.org/x/image/tiff"

	"cellmask/internal/mask"
	"cellmask/internal/resolve"
)

// Inventory describes what a dataset folder holds before masks are made.
type Inventory struct {
	Images     int
	JSONFiles  int
	Masks      int
	Unreadable int
	Sizes      map[image.Point]int // width x height -> image count
}

// SortedSizes returns the distinct image sizes, most common first.
func (inv Inventory) SortedSizes() []image.Point {
	out := make([]image.Point, 0, len(inv.Sizes))
	for s := range inv.Sizes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := inv.Sizes[out[i]], inv.Sizes[out[j]]
		if ci != cj {
			return ci > cj
		}
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}

// Inspect counts the images, annotation files and masks of ds. Image sizes
// come from file headers only, so large stacks are cheap to inspect.
func Inspect(ds Dataset, exts resolve.Extensions) (Inventory, error) {
	inv := Inventory{Sizes: make(map[image.Point]int)}

	idx, err := resolve.Scan(ds.Dir, exts)
	if err != nil {
		return inv, err
	}
	inv.Images = idx.Len()
	for _, stem := range idx.Stems() {
		p, _ := idx.Lookup(stem)
		size, err := headerSize(p)
		if err != nil {
			inv.Unreadable++
			continue
		}
		inv.Sizes[size]++
	}

	jsons, _ := filepath.Glob(filepath.Join(ds.Dir, "*.json"))
	inv.JSONFiles = len(jsons)
	masks, _ := filepath.Glob(filepath.Join(ds.MaskDir(), "*"+mask.Suffix))
	inv.Masks = len(masks)
	return inv, nil
}

func headerSize(path string) (image.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Point{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Point{}, err
	}
	return image.Pt(cfg.Width, cfg.Height), nil
}
