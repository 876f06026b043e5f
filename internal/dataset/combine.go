package dataset

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Collection is a decoded dataset: features in record order plus the
// attribute field names in file order.
type Collection struct {
	Features *geojson.FeatureCollection
	Fields   []string
}

// Len returns the number of features.
func (c *Collection) Len() int {
	if c == nil || c.Features == nil {
		return 0
	}
	return len(c.Features.Features)
}

// Bound returns the combined bound of every non-empty geometry and whether
// there was any.
func (c *Collection) Bound() (orb.Bound, bool) {
	var (
		b  orb.Bound
		ok bool
	)
	if c == nil || c.Features == nil {
		return b, false
	}
	for _, f := range c.Features.Features {
		if f.Geometry == nil {
			continue
		}
		gb := f.Geometry.Bound()
		if !ok {
			b, ok = gb, true
			continue
		}
		b = b.Union(gb)
	}
	return b, ok
}

// Combine merges geometries and attribute records by position. Geometries
// without a matching record get empty properties.
func Combine(geoms []orb.Geometry, fields []string, records []map[string]any) *Collection {
	fc := geojson.NewFeatureCollection()
	for i, g := range geoms {
		f := &geojson.Feature{
			Type:       "Feature",
			ID:         i,
			Geometry:   g,
			Properties: geojson.Properties{},
		}
		if i < len(records) && records[i] != nil {
			f.Properties = geojson.Properties(records[i])
		}
		fc.Append(f)
	}
	return &Collection{Features: fc, Fields: fields}
}
