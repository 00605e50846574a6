// Package mask turns annotation polygons into binary training masks.
package mask

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"cellmask/internal/annotation"
)

// Suffix is appended to the source image stem to name its mask.
const Suffix = "_mask.png"

// ErrUnreadable is returned when an image file cannot be decoded.
var ErrUnreadable = errors.New("unreadable image")

var foreground = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Name returns the mask file name for an image stem.
func Name(stem string) string {
	return stem + Suffix
}

// Rasterize returns a single-channel rows x cols mask with every polygon of
// at least three points filled with 255, in order. Everything else is 0.
// The caller owns the returned Mat.
func Rasterize(rows, cols int, polys []annotation.Polygon) gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC1)
	for _, p := range polys {
		if !p.Valid() {
			continue
		}
		contour := gocv.NewPointsVectorFromPoints([][]image.Point{p})
		gocv.FillPoly(&m, contour, foreground)
		contour.Close()
	}
	return m
}

// Foreground counts the non-zero pixels of a mask.
func Foreground(m gocv.Mat) int {
	return gocv.CountNonZero(m)
}

// ReadImage decodes the image at path as 3-channel color. The caller closes
// the returned Mat even when err is non-nil; on error it is empty.
func ReadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return img, fmt.Errorf("%w: %s", ErrUnreadable, path)
	}
	return img, nil
}

// Write encodes m to path; the format follows the extension.
func Write(path string, m gocv.Mat) error {
	if ok := gocv.IMWrite(path, m); !ok {
		return fmt.Errorf("write %s: encoder failed", path)
	}
	return nil
}
