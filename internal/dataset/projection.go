package dataset

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/im7mortal/UTM"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// ErrUnsupportedProjection is returned for .prj definitions that cannot be
// converted to WGS84 longitude/latitude.
var ErrUnsupportedProjection = errors.New("unsupported projection")

var (
	utmZone       = regexp.MustCompile(`(?i)UTM[ _]*zone[ _]*(\d{1,2})\s*([NS])?`)
	falseNorthing = regexp.MustCompile(`(?i)"?false_northing"?\s*,\s*(-?[\d.]+)`)
	crsName       = regexp.MustCompile(`^\s*[A-Za-z]+\s*\[\s*"([^"]+)"`)
)

// Projection converts projected coordinates to WGS84 longitude/latitude.
type Projection struct {
	Name    string
	inverse func(orb.Point) (orb.Point, error)
}

// ParseProjection reads the WKT of a .prj part. A nil projection means the
// coordinates are already geographic: the part is absent or blank, or
// describes a GEOGCS.
func ParseProjection(wkt *string) (*Projection, error) {
	if wkt == nil {
		return nil, nil
	}
	def := strings.TrimSpace(*wkt)
	upper := strings.ToUpper(def)
	switch {
	case def == "":
		return nil, nil
	case strings.HasPrefix(upper, "GEOGCS"), strings.HasPrefix(upper, "GEOGCRS"):
		return nil, nil
	case isWebMercator(upper):
		return &Projection{
			Name: "Web Mercator",
			inverse: func(p orb.Point) (orb.Point, error) {
				return project.Mercator.ToWGS84(p), nil
			},
		}, nil
	}

	if m := utmZone.FindStringSubmatch(def); m != nil {
		zone, err := strconv.Atoi(m[1])
		if err != nil || zone < 1 || zone > 60 {
			return nil, fmt.Errorf("%w: utm zone %q", ErrUnsupportedProjection, m[1])
		}
		northern := strings.EqualFold(m[2], "N")
		if m[2] == "" {
			northern = !southernFalseNorthing(def)
		}
		hemi := "N"
		if !northern {
			hemi = "S"
		}
		return &Projection{
			Name: fmt.Sprintf("UTM zone %d%s", zone, hemi),
			inverse: func(p orb.Point) (orb.Point, error) {
				lat, lon, err := UTM.ToLatLon(p[0], p[1], zone, "", northern)
				if err != nil {
					return p, err
				}
				return orb.Point{lon, lat}, nil
			},
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedProjection, CRSName(def))
}

// CRSName returns the quoted name of a WKT definition, or the first 60
// characters of def when it has none.
func CRSName(def string) string {
	if m := crsName.FindStringSubmatch(def); m != nil {
		return m[1]
	}
	if len(def) > 60 {
		return def[:60] + "..."
	}
	return def
}

func isWebMercator(upper string) bool {
	for _, marker := range []string{"MERCATOR_AUXILIARY_SPHERE", "PSEUDO-MERCATOR", "POPULAR VISUALISATION", "WEB_MERCATOR", `"3857"`} {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

func southernFalseNorthing(def string) bool {
	m := falseNorthing.FindStringSubmatch(def)
	if m == nil {
		return false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	return err == nil && v >= 10000000
}

// Apply reprojects g in place and returns it.
func (p *Projection) Apply(g orb.Geometry) (orb.Geometry, error) {
	if p == nil || g == nil {
		return g, nil
	}
	var firstErr error
	out := project.Geometry(g, func(pt orb.Point) orb.Point {
		q, err := p.inverse(pt)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return q
	})
	if firstErr != nil {
		return nil, fmt.Errorf("reprojecting from %s: %w", p.Name, firstErr)
	}
	return out, nil
}
