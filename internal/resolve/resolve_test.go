package resolve

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"cellmask/internal/annotation"
)

func indexOf(names ...string) *Index {
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join("/data/DN1", n)
	}
	return NewIndex(paths, Strict)
}

func TestRapid(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		key      annotation.Key
		wantStem string
		wantRule Rule
	}{
		{
			name:     "exact measurement wins over previous",
			files:    []string{"cell03meas0000.tif", "cell03meas0001.tif", "cell03meas0002.tif"},
			key:      annotation.Key{Cell: 3, Measurement: 1},
			wantStem: "cell03meas0001",
			wantRule: Exact,
		},
		{
			name:     "off by one",
			files:    []string{"cell03meas0000.tif", "cell03meas0002.tif"},
			key:      annotation.Key{Cell: 3, Measurement: 1},
			wantStem: "cell03meas0000",
			wantRule: Previous,
		},
		{
			name:     "falls back to smallest measurement",
			files:    []string{"cell01meas0005.tif", "cell01meas0002.tif"},
			key:      annotation.Key{Cell: 1, Measurement: 0},
			wantStem: "cell01meas0002",
			wantRule: Lowest,
		},
		{
			name:     "lowest is not nearest",
			files:    []string{"cell01meas0002.tif", "cell01meas0040.tif"},
			key:      annotation.Key{Cell: 1, Measurement: 39},
			wantStem: "cell01meas0002",
			wantRule: Lowest,
		},
		{
			name:     "unpadded measurement suffix",
			files:    []string{"CELL07MEAS3.TIF"},
			key:      annotation.Key{Cell: 7, Measurement: 3},
			wantStem: "cell07meas3",
			wantRule: Exact,
		},
		{
			name:     "no images for cell",
			files:    []string{"cell02meas0001.tif"},
			key:      annotation.Key{Cell: 1, Measurement: 1},
			wantRule: Miss,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rapid{Index: indexOf(tt.files...)}.Resolve(tt.key)
			if got.Rule != tt.wantRule {
				t.Fatalf("rule: expected %v, got %v", tt.wantRule, got.Rule)
			}
			if got.Stem != tt.wantStem {
				t.Errorf("stem: expected %q, got %q", tt.wantStem, got.Stem)
			}
			if got.OK() && got.Path == "" {
				t.Errorf("resolved without a path")
			}
		})
	}
}

func TestRate(t *testing.T) {
	tests := []struct {
		name      string
		files     []string
		key       annotation.Key
		wantStem  string
		wantRule  Rule
		wantTried []string
	}{
		{
			name:      "exact",
			files:     []string{"cell02meas0007.tif", "cell02meas0006.tif"},
			key:       annotation.Key{Cell: 2, Measurement: 7},
			wantStem:  "cell02meas0007",
			wantRule:  Exact,
			wantTried: []string{"cell02meas0007"},
		},
		{
			name:      "minus two after minus one misses",
			files:     []string{"cell02meas0005.tif"},
			key:       annotation.Key{Cell: 2, Measurement: 7},
			wantStem:  "cell02meas0005",
			wantRule:  Offset,
			wantTried: []string{"cell02meas0007", "cell02meas0006", "cell02meas0005"},
		},
		{
			name:      "minus one preferred over plus one",
			files:     []string{"cell02meas0006.tif", "cell02meas0008.tif"},
			key:       annotation.Key{Cell: 2, Measurement: 7},
			wantStem:  "cell02meas0006",
			wantRule:  Previous,
			wantTried: []string{"cell02meas0007", "cell02meas0006"},
		},
		{
			name:      "plus one last",
			files:     []string{"cell02meas0008.tif"},
			key:       annotation.Key{Cell: 2, Measurement: 7},
			wantStem:  "cell02meas0008",
			wantRule:  Offset,
			wantTried: []string{"cell02meas0007", "cell02meas0006", "cell02meas0005", "cell02meas0008"},
		},
		{
			name:      "nearest tie goes to smaller measurement",
			files:     []string{"cell02meas0009.tif", "cell02meas0001.tif"},
			key:       annotation.Key{Cell: 2, Measurement: 5},
			wantStem:  "cell02meas0001",
			wantRule:  Nearest,
			wantTried: []string{"cell02meas0005", "cell02meas0004", "cell02meas0003", "cell02meas0006"},
		},
		{
			name:      "nearest picks closer value",
			files:     []string{"cell02meas0001.tif", "cell02meas0010.tif"},
			key:       annotation.Key{Cell: 2, Measurement: 7},
			wantStem:  "cell02meas0010",
			wantRule:  Nearest,
			wantTried: []string{"cell02meas0007", "cell02meas0006", "cell02meas0005", "cell02meas0008"},
		},
		{
			name:      "no negative offsets",
			files:     []string{"cell04meas0003.tif"},
			key:       annotation.Key{Cell: 4, Measurement: 0},
			wantStem:  "cell04meas0003",
			wantRule:  Nearest,
			wantTried: []string{"cell04meas0000", "cell04meas0001"},
		},
		{
			name:      "miss when the cell has no images",
			files:     []string{"cell03meas0001.tif"},
			key:       annotation.Key{Cell: 2, Measurement: 1},
			wantRule:  Miss,
			wantTried: []string{"cell02meas0001", "cell02meas0000", "cell02meas0002"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rate{Index: indexOf(tt.files...)}.Resolve(tt.key)
			if got.Rule != tt.wantRule {
				t.Fatalf("rule: expected %v, got %v", tt.wantRule, got.Rule)
			}
			if got.Stem != tt.wantStem {
				t.Errorf("stem: expected %q, got %q", tt.wantStem, got.Stem)
			}
			if !reflect.DeepEqual(got.Tried, tt.wantTried) {
				t.Errorf("tried: expected %v, got %v", tt.wantTried, got.Tried)
			}
		})
	}
}

func TestNewIndex_Filters(t *testing.T) {
	idx := NewIndex([]string{
		"/d/cell01meas0001.tif",
		"/d/cell01meas0001.tiff",
		"/d/cell01meas0002_overlay.tif",
		"/d/cell01meas0003.png",
		"/d/notes.txt",
	}, Strict)

	if idx.Len() != 1 {
		t.Fatalf("expected 1 indexed image, got %d: %v", idx.Len(), idx.Stems())
	}
	if p, _ := idx.Lookup("CELL01MEAS0001"); p != "/d/cell01meas0001.tif" {
		t.Errorf("duplicate stem should keep the first path, got %q", p)
	}

	permissive := NewIndex([]string{"/d/cell01meas0003.png", "/d/cell01meas0004.JPEG"}, Permissive)
	if permissive.Len() != 2 {
		t.Errorf("permissive index should accept png/jpeg, got %v", permissive.Stems())
	}
}

func TestScan_SkipsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"cell01meas0000.tif", "cell01meas0001.TIF"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "masks", "cell01meas0002.tif"), 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "masks", "cell01meas0003.tif"), nil, 0644); err != nil {
		t.Fatalf("failed to write mask: %v", err)
	}

	idx, err := Scan(dir, Strict)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	want := []string{"cell01meas0000", "cell01meas0001"}
	if !reflect.DeepEqual(idx.Stems(), want) {
		t.Errorf("expected %v, got %v", want, idx.Stems())
	}
}

func TestScan_MissingDir(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "missing"), Strict); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
