package mask

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"cellmask/internal/annotation"
)

func square(x0, y0, x1, y1 int) annotation.Polygon {
	return annotation.Polygon{image.Pt(x0, y0), image.Pt(x1, y0), image.Pt(x1, y1), image.Pt(x0, y1)}
}

func assertBinary(t *testing.T, m gocv.Mat) {
	t.Helper()
	for y := 0; y < m.Rows(); y++ {
		for x := 0; x < m.Cols(); x++ {
			if v := m.GetUCharAt(y, x); v != 0 && v != 255 {
				t.Fatalf("pixel (%d,%d) = %d, want 0 or 255", x, y, v)
			}
		}
	}
}

func TestRasterize_FillsPolygon(t *testing.T) {
	m := Rasterize(20, 30, []annotation.Polygon{
		{image.Pt(2, 2), image.Pt(12, 2), image.Pt(2, 12)},
	})
	defer m.Close()

	if m.Rows() != 20 || m.Cols() != 30 || m.Channels() != 1 {
		t.Fatalf("unexpected shape %dx%dx%d", m.Rows(), m.Cols(), m.Channels())
	}
	if Foreground(m) == 0 {
		t.Fatal("expected filled pixels")
	}
	if v := m.GetUCharAt(4, 4); v != 255 {
		t.Errorf("interior pixel = %d, want 255", v)
	}
	if v := m.GetUCharAt(15, 25); v != 0 {
		t.Errorf("exterior pixel = %d, want 0", v)
	}
	assertBinary(t, m)
}

func TestRasterize_EmptyAndDegenerate(t *testing.T) {
	cases := map[string][]annotation.Polygon{
		"nil":        nil,
		"empty":      {},
		"degenerate": {{image.Pt(1, 1), image.Pt(5, 5)}, {image.Pt(3, 3)}, {}},
	}
	for name, polys := range cases {
		t.Run(name, func(t *testing.T) {
			m := Rasterize(7, 9, polys)
			defer m.Close()
			if m.Rows() != 7 || m.Cols() != 9 {
				t.Fatalf("unexpected size %dx%d", m.Rows(), m.Cols())
			}
			if n := Foreground(m); n != 0 {
				t.Errorf("expected all-zero mask, got %d foreground pixels", n)
			}
		})
	}
}

func TestRasterize_OverlapAndDegenerateMixed(t *testing.T) {
	m := Rasterize(40, 40, []annotation.Polygon{
		square(5, 5, 20, 20),
		{image.Pt(0, 0), image.Pt(39, 39)},
		square(15, 15, 30, 30),
	})
	defer m.Close()

	for _, p := range []image.Point{{10, 10}, {18, 18}, {25, 25}} {
		if v := m.GetUCharAt(p.Y, p.X); v != 255 {
			t.Errorf("pixel %v = %d, want 255", p, v)
		}
	}
	if v := m.GetUCharAt(35, 2); v != 0 {
		t.Errorf("background pixel = %d, want 0", v)
	}
	assertBinary(t, m)
}

func TestRasterize_ClipsOutOfBounds(t *testing.T) {
	m := Rasterize(10, 10, []annotation.Polygon{square(-5, -5, 50, 50)})
	defer m.Close()
	if n := Foreground(m); n != 100 {
		t.Errorf("expected the whole mask filled, got %d pixels", n)
	}
}

func TestWrite_Idempotent(t *testing.T) {
	dir := t.TempDir()
	polys := []annotation.Polygon{square(3, 3, 40, 25)}

	var files [][]byte
	for _, name := range []string{"a" + Suffix, "b" + Suffix} {
		m := Rasterize(32, 48, polys)
		path := filepath.Join(dir, name)
		if err := Write(path, m); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		m.Close()
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read back mask: %v", err)
		}
		files = append(files, data)
	}
	if !bytes.Equal(files[0], files[1]) {
		t.Error("identical inputs produced different mask files")
	}

	back := gocv.IMRead(filepath.Join(dir, "a"+Suffix), gocv.IMReadGrayScale)
	defer back.Close()
	if back.Rows() != 32 || back.Cols() != 48 {
		t.Errorf("round-tripped mask is %dx%d", back.Rows(), back.Cols())
	}
}

func TestReadImage(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "cell01meas0000.tif")
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 12, 16, gocv.MatTypeCV8UC3)
	defer src.Close()
	if ok := gocv.IMWrite(good, src); !ok {
		t.Fatal("failed to write fixture image")
	}

	img, err := ReadImage(good)
	if err != nil {
		t.Fatalf("ReadImage failed: %v", err)
	}
	defer img.Close()
	if img.Rows() != 12 || img.Cols() != 16 || img.Channels() != 3 {
		t.Errorf("unexpected shape %dx%dx%d", img.Rows(), img.Cols(), img.Channels())
	}

	corrupt := filepath.Join(dir, "cell01meas0001.tif")
	if err := os.WriteFile(corrupt, []byte("not a tiff"), 0644); err != nil {
		t.Fatalf("failed to write corrupt fixture: %v", err)
	}
	for _, p := range []string{corrupt, filepath.Join(dir, "missing.tif")} {
		m, err := ReadImage(p)
		if !errors.Is(err, ErrUnreadable) {
			t.Errorf("%s: expected ErrUnreadable, got %v", filepath.Base(p), err)
		}
		if !m.Empty() {
			t.Errorf("%s: expected an empty Mat on error", filepath.Base(p))
		}
		if err := m.Close(); err != nil {
			t.Errorf("%s: Close failed: %v", filepath.Base(p), err)
		}
	}
}
