package postgis

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/1F47E/go-terrain-grid/pkg/models"
)

// InitSchema creates the terrain point table and its GIST index.
// Existing data is dropped.
func (s *Source) InitSchema(ctx context.Context) error {
	if _, err := pointsQuery(s.cfg, s.cfg.LODColumn != ""); err != nil {
		return err
	}
	table := quoteTable(s.cfg.Table)
	geom := pq.QuoteIdentifier(s.cfg.GeometryColumn)

	columns := fmt.Sprintf("id BIGSERIAL PRIMARY KEY, %s GEOMETRY(POINTZ, %d)", geom, s.srid())
	if s.cfg.LODColumn != "" {
		columns += fmt.Sprintf(", %s INTEGER NOT NULL", pq.QuoteIdentifier(s.cfg.LODColumn))
	}

	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,
		fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, table),
		fmt.Sprintf(`CREATE TABLE %s (%s);`, table, columns),
		fmt.Sprintf(`CREATE INDEX ON %s USING GIST(%s);`, table, geom),
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// InsertPoints stores coordinates as POINTZ rows in one transaction.
// lod is ignored when the source has no LOD column.
func (s *Source) InsertPoints(ctx context.Context, points models.PointSet, lod int) error {
	table := quoteTable(s.cfg.Table)
	geom := pq.QuoteIdentifier(s.cfg.GeometryColumn)

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (ST_SetSRID(ST_MakePoint($1, $2, $3), %d))`,
		table, geom, s.srid())
	if s.cfg.LODColumn != "" {
		query = fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES (ST_SetSRID(ST_MakePoint($1, $2, $3), %d), $4)`,
			table, geom, pq.QuoteIdentifier(s.cfg.LODColumn), s.srid())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, p := range points {
		args := []any{p.X, p.Y, p.Z}
		if s.cfg.LODColumn != "" {
			args = append(args, lod)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert point %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *Source) srid() int {
	if s.cfg.SRID == 0 {
		return 4326
	}
	return s.cfg.SRID
}
