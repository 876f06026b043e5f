package dataset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const shpFileCode = 9994

// Decode decodes fetched parts into a feature collection: geometry with the
// optional projection, attributes independently, then a positional combine.
func Decode(p *Parts) (coll *Collection, err error) {
	defer func() {
		if r := recover(); r != nil {
			coll, err = nil, fmt.Errorf("decoding shapefile: %v", r)
		}
	}()

	if err := checkSHP(p.Geometry); err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}
	if err := checkDBF(p.Attributes); err != nil {
		return nil, fmt.Errorf("attributes: %w", err)
	}
	proj, err := ParseProjection(p.Projection)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "shpview-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	base := filepath.Join(dir, "dataset")
	files := map[string][]byte{
		ExtGeometry:   p.Geometry,
		ExtAttributes: p.Attributes,
	}
	if p.Index != nil {
		files[ExtIndex] = p.Index
	}
	for ext, data := range files {
		if err := os.WriteFile(base+ext, data, 0o600); err != nil {
			return nil, err
		}
	}

	r, err := shp.Open(base + ExtGeometry)
	if err != nil {
		return nil, fmt.Errorf("opening shapefile: %w", err)
	}
	defer r.Close()

	geoms, err := DecodeGeometry(r, proj)
	if err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}
	fields, records := DecodeAttributes(r)
	return Combine(geoms, fields, records), nil
}

// DecodeGeometry reads every shape of r, converted to orb geometries in
// WGS84. Null shapes yield nil entries so record positions are kept.
func DecodeGeometry(r *shp.Reader, proj *Projection) ([]orb.Geometry, error) {
	var geoms []orb.Geometry
	for r.Next() {
		_, shape := r.Shape()
		g, err := toGeometry(shape)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(geoms), err)
		}
		if g, err = proj.Apply(g); err != nil {
			return nil, fmt.Errorf("record %d: %w", len(geoms), err)
		}
		geoms = append(geoms, g)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return geoms, nil
}

// DecodeAttributes reads the attribute table of r: the field names in file
// order and one value map per record.
func DecodeAttributes(r *shp.Reader) ([]string, []map[string]any) {
	fields := r.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00 ")
	}

	n := r.AttributeCount()
	records := make([]map[string]any, n)
	for row := 0; row < n; row++ {
		rec := make(map[string]any, len(fields))
		for i, f := range fields {
			rec[names[i]] = parseValue(f.Fieldtype, r.ReadAttribute(row, i))
		}
		records[row] = rec
	}
	return names, records
}

func parseValue(fieldType byte, raw string) any {
	s := strings.Trim(raw, " \x00")
	switch fieldType {
	case 'N', 'F':
		if s == "" {
			return nil
		}
		if !strings.ContainsAny(s, ".eE") {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	case 'L':
		switch s {
		case "T", "t", "Y", "y":
			return true
		case "F", "f", "N", "n":
			return false
		default:
			return nil
		}
	default:
		return s
	}
}

func toGeometry(s shp.Shape) (orb.Geometry, error) {
	switch v := s.(type) {
	case nil, *shp.Null:
		return nil, nil
	case *shp.Point:
		return orb.Point{v.X, v.Y}, nil
	case *shp.PointZ:
		return orb.Point{v.X, v.Y}, nil
	case *shp.MultiPoint:
		return multiPoint(v.Points), nil
	case *shp.MultiPointZ:
		return multiPoint(v.Points), nil
	case *shp.PolyLine:
		return lines(v.Parts, v.Points), nil
	case *shp.PolyLineZ:
		return lines(v.Parts, v.Points), nil
	case *shp.Polygon:
		return polygons(v.Parts, v.Points), nil
	case *shp.PolygonZ:
		return polygons(v.Parts, v.Points), nil
	default:
		return nil, fmt.Errorf("unsupported shape type %T", s)
	}
}

func multiPoint(pts []shp.Point) orb.MultiPoint {
	mp := make(orb.MultiPoint, len(pts))
	for i, p := range pts {
		mp[i] = orb.Point{p.X, p.Y}
	}
	return mp
}

// rings splits points into the parts starting at the given offsets.
func rings(parts []int32, pts []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(pts))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(pts) {
			continue
		}
		ring := make([]orb.Point, 0, end-start)
		for _, p := range pts[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		out = append(out, ring)
	}
	return out
}

func lines(parts []int32, pts []shp.Point) orb.Geometry {
	rs := rings(parts, pts)
	if len(rs) == 1 {
		return orb.LineString(rs[0])
	}
	mls := make(orb.MultiLineString, len(rs))
	for i, r := range rs {
		mls[i] = orb.LineString(r)
	}
	return mls
}

// polygons nests hole rings (counter-clockwise in shapefiles) into the
// clockwise outer ring that contains them.
func polygons(parts []int32, pts []shp.Point) orb.Geometry {
	var outers []orb.Polygon
	var holes []orb.Ring
	for _, r := range rings(parts, pts) {
		ring := orb.Ring(r)
		if ring.Orientation() == orb.CCW {
			holes = append(holes, ring)
			continue
		}
		outers = append(outers, orb.Polygon{ring})
	}

	for _, h := range holes {
		placed := false
		for i := len(outers) - 1; i >= 0 && len(h) > 0; i-- {
			if planar.RingContains(outers[i][0], h[0]) {
				outers[i] = append(outers[i], h)
				placed = true
				break
			}
		}
		if !placed {
			outers = append(outers, orb.Polygon{h})
		}
	}

	if len(outers) == 1 {
		return outers[0]
	}
	return orb.MultiPolygon(outers)
}

func checkSHP(b []byte) error {
	if len(b) < 100 {
		return errors.New("truncated shp header")
	}
	if code := int32(binary.BigEndian.Uint32(b[0:4])); code != shpFileCode {
		return fmt.Errorf("not a shapefile (file code %d)", code)
	}
	return nil
}

func checkDBF(b []byte) error {
	if len(b) < 32 {
		return errors.New("truncated dbf header")
	}
	headerLen := int(binary.LittleEndian.Uint16(b[8:10]))
	if headerLen < 33 || headerLen > len(b) {
		return fmt.Errorf("invalid dbf header length %d", headerLen)
	}
	return nil
}
