// Package dataset fetches a shapefile (geometry, attributes and the optional
// index and projection parts) and combines it into one feature collection.
package dataset

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Shapefile part extensions.
const (
	ExtGeometry   = ".shp"
	ExtAttributes = ".dbf"
	ExtIndex      = ".shx"
	ExtProjection = ".prj"
)

// Parts holds the fetched files of one dataset. Index and Projection are nil
// when the optional parts could not be fetched.
type Parts struct {
	Geometry   []byte
	Attributes []byte
	Index      []byte
	Projection *string
}

// Loader loads one dataset from a Location.
type Loader struct {
	loc Location
}

// NewLoader creates a loader for loc.
func NewLoader(loc Location) *Loader {
	return &Loader{loc: loc}
}

// Name returns the base file name of the dataset.
func (l *Loader) Name() string {
	return l.loc.Name
}

// Fetch downloads all four parts concurrently and returns once every fetch
// has settled. A failure of the geometry or attribute part fails the fetch;
// the index and projection parts degrade to absent.
func (l *Loader) Fetch(ctx context.Context) (*Parts, error) {
	var p Parts
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		data, err := l.loc.Source.Fetch(gctx, l.loc.Name+ExtGeometry)
		if err != nil {
			return fmt.Errorf("SHP file error: %w", err)
		}
		p.Geometry = data
		return nil
	})
	g.Go(func() error {
		data, err := l.loc.Source.Fetch(gctx, l.loc.Name+ExtAttributes)
		if err != nil {
			return fmt.Errorf("DBF file error: %w", err)
		}
		p.Attributes = data
		return nil
	})
	g.Go(func() error {
		if data, err := l.loc.Source.Fetch(gctx, l.loc.Name+ExtIndex); err == nil {
			p.Index = data
		}
		return nil
	})
	g.Go(func() error {
		if data, err := l.loc.Source.Fetch(gctx, l.loc.Name+ExtProjection); err == nil {
			s := string(data)
			p.Projection = &s
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load fetches and decodes the dataset.
func (l *Loader) Load(ctx context.Context) (*Collection, error) {
	parts, err := l.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Decode(parts)
}
