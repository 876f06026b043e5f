package dataset

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
)

// writeFixture writes a three-record polygon shapefile named base in dir.
// Record 0 is a square with a hole.
func writeFixture(t *testing.T, dir, base string) string {
	t.Helper()
	path := filepath.Join(dir, base+".shp")
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		t.Fatalf("create shapefile: %v", err)
	}

	fields := []shp.Field{
		shp.StringField("Name", 20),
		shp.StringField("Status", 40),
		shp.FloatField("Shape_Area", 16, 2),
		shp.NumberField("Depth", 8),
	}
	if err := w.SetFields(fields); err != nil {
		t.Fatalf("set fields: %v", err)
	}

	square := func(x0, y0, size float64) []shp.Point {
		// clockwise: outer ring
		return []shp.Point{{X: x0, Y: y0}, {X: x0, Y: y0 + size}, {X: x0 + size, Y: y0 + size}, {X: x0 + size, Y: y0}, {X: x0, Y: y0}}
	}
	hole := []shp.Point{{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4}, {X: 2, Y: 2}}

	records := []struct {
		parts  [][]shp.Point
		name   string
		status string
		area   float64
		depth  int
	}{
		{[][]shp.Point{square(0, 0, 10), hole}, "Pond A", "Baik (Memenuhi)", 96.5, 3},
		{[][]shp.Point{square(20, 0, 5)}, "Pond B", "Cemar Ringan", 25, 2},
		{[][]shp.Point{square(30, 0, 5), square(40, 0, 5)}, "Pond C", "Cemar Berat", 50, 1},
	}
	for i, r := range records {
		poly := shp.Polygon(*shp.NewPolyLine(r.parts))
		w.Write(&poly)
		for field, v := range []any{r.name, r.status, r.area, r.depth} {
			if err := w.WriteAttribute(i, field, v); err != nil {
				t.Fatalf("write attribute: %v", err)
			}
		}
	}
	w.Close()
	renameDBF(t, filepath.Join(dir, base))
	return filepath.Join(dir, base)
}

// renameDBF moves the attribute table go-shp's writer creates as "<base>dbf"
// to "<base>.dbf".
func renameDBF(t *testing.T, base string) {
	t.Helper()
	if err := os.Rename(base+"dbf", base+ExtAttributes); err != nil {
		t.Fatalf("rename dbf: %v", err)
	}
}

// readParts reads the parts of the fixture at base that exist on disk.
func readParts(t *testing.T, base string) map[string][]byte {
	t.Helper()
	parts := make(map[string][]byte)
	for _, ext := range []string{ExtGeometry, ExtAttributes, ExtIndex, ExtProjection} {
		data, err := os.ReadFile(base + ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			t.Fatalf("read %s: %v", ext, err)
		}
		parts[ext] = data
	}
	return parts
}

func readPart(t *testing.T, base, ext string) []byte {
	t.Helper()
	data, err := os.ReadFile(base + ext)
	if err != nil {
		t.Fatalf("read %s: %v", ext, err)
	}
	return data
}
