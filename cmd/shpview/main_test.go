package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"

	"github.com/joeblew999/plat-shpview/internal/dataset"
	"github.com/joeblew999/plat-shpview/internal/quality"
)

func testOptions(base string) *Options {
	return &Options{
		Dataset:      base,
		StatusField:  "Status",
		StatusGood:   quality.DefaultLabels.Good,
		StatusMedium: quality.DefaultLabels.Medium,
		LoadTimeout:  5,
	}
}

func TestInspect(t *testing.T) {
	base := filepath.Join(t.TempDir(), "ponds")
	w, err := shp.Create(base+".shp", shp.POINT)
	if err != nil {
		t.Fatal(err)
	}
	w.SetFields([]shp.Field{shp.StringField("Status", 30)})
	for i, status := range []string{"Baik (Memenuhi)", "Cemar Ringan", "Cemar Berat"} {
		w.Write(&shp.Point{X: float64(i), Y: 1})
		w.WriteAttribute(i, 0, status)
	}
	w.Close()
	// go-shp's writer names the attribute table "<base>dbf".
	if err := os.Rename(base+"dbf", base+dataset.ExtAttributes); err != nil {
		t.Fatal(err)
	}

	res, err := inspect(context.Background(), testOptions(base))
	if err != nil {
		t.Fatal(err)
	}
	if res.Features != 3 || len(res.Fields) != 1 || res.Fields[0] != "Status" {
		t.Fatalf("inspection = %+v", res)
	}
	if res.Counts != (quality.Counts{Good: 1, Medium: 1, Unknown: 1}) {
		t.Fatalf("counts = %+v", res.Counts)
	}
}

func TestInspectMissingDataset(t *testing.T) {
	_, err := inspect(context.Background(), testOptions(filepath.Join(t.TempDir(), "missing")))
	if !errors.Is(err, dataset.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
