package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-shpview/internal/dataset"
	"github.com/joeblew999/plat-shpview/internal/quality"
)

// FeaturesTable is the table loaded datasets are written to.
const FeaturesTable = "features"

const createFeatures = `CREATE OR REPLACE TABLE ` + FeaturesTable + ` (
	fid        INTEGER,
	status     VARCHAR,
	category   VARCHAR,
	properties JSON,
	geometry   VARCHAR
)`

const insertFeature = `INSERT INTO ` + FeaturesTable + ` VALUES (?, ?, ?, ?, ?)`

// Mirror writes feature collections into the features table, replacing its
// previous contents.
type Mirror struct {
	mu     sync.Mutex
	db     *sql.DB
	labels quality.Labels
	log    zerolog.Logger
}

// NewMirror creates a mirror writing to conn.
func NewMirror(conn *sql.DB, labels quality.Labels, log zerolog.Logger) *Mirror {
	return &Mirror{
		db:     conn,
		labels: labels,
		log:    log.With().Str("component", "mirror").Logger(),
	}
}

// Mirror replaces the features table with coll in one transaction.
// Geometries are stored as WKT, attributes as JSON.
func (m *Mirror) Mirror(ctx context.Context, coll *dataset.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createFeatures); err != nil {
		return fmt.Errorf("creating %s: %w", FeaturesTable, err)
	}
	stmt, err := tx.PrepareContext(ctx, insertFeature)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, f := range coll.Features.Features {
		props, err := json.Marshal(f.Properties)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		var status, geom any
		if s, ok := m.labels.Status(f.Properties); ok {
			status = s
		}
		if f.Geometry != nil {
			geom = wkt.MarshalString(f.Geometry)
		}
		cat := m.labels.Classify(f.Properties).String()
		if _, err := stmt.ExecContext(ctx, i, status, cat, string(props), geom); err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	m.log.Debug().Int("features", coll.Len()).Msg("features mirrored")
	return nil
}
