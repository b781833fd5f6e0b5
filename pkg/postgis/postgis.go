// Package postgis fetches terrain vertices from PostGIS geometries.
package postgis

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/1F47E/go-terrain-grid/pkg/models"
)

// Config describes the connection and the table holding terrain geometry
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string
	MaxConnections int
	ConnectTimeout time.Duration

	Table          string
	GeometryColumn string
	LODColumn      string // optional
	SRID           int
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// DSN renders cfg as a lib/pq connection string
func (c Config) DSN() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	parts := []string{
		"host=" + dsnValue(c.Host),
		fmt.Sprintf("port=%d", c.Port),
		"user=" + dsnValue(c.User),
		"password=" + dsnValue(c.Password),
		"dbname=" + dsnValue(c.Database),
		"sslmode=" + dsnValue(sslmode),
	}
	if c.ConnectTimeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(c.ConnectTimeout.Seconds())))
	}
	return strings.Join(parts, " ")
}

func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Source reads vertices from a PostGIS table
type Source struct {
	db  *sql.DB
	cfg Config
}

// Open connects to the database described by cfg
func Open(ctx context.Context, cfg Config) (*Source, error) {
	if _, err := pointsQuery(cfg, false); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 25
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Source{db: db, cfg: cfg}, nil
}

// pointsQuery builds the SELECT dumping every vertex of the geometries
// intersecting the envelope given as $1..$4
func pointsQuery(cfg Config, withLOD bool) (string, error) {
	for name, ident := range map[string]string{"table": cfg.Table, "geometry column": cfg.GeometryColumn} {
		if !identifier.MatchString(ident) {
			return "", fmt.Errorf("invalid %s name %q", name, ident)
		}
	}
	if withLOD && !identifier.MatchString(cfg.LODColumn) {
		return "", fmt.Errorf("invalid lod column name %q", cfg.LODColumn)
	}

	srid := cfg.SRID
	if srid == 0 {
		srid = 4326
	}
	geom := pq.QuoteIdentifier(cfg.GeometryColumn)

	var b strings.Builder
	fmt.Fprintf(&b, `SELECT ST_X(p.geom), ST_Y(p.geom), COALESCE(ST_Z(p.geom), 0)
		FROM (
			SELECT (ST_DumpPoints(%s)).geom AS geom
			FROM %s
			WHERE %s && ST_MakeEnvelope($1, $2, $3, $4, %d)`,
		geom, quoteTable(cfg.Table), geom, srid)
	if withLOD {
		fmt.Fprintf(&b, "\n\t\t\tAND %s = $5", pq.QuoteIdentifier(cfg.LODColumn))
	}
	b.WriteString("\n\t\t) p")
	return b.String(), nil
}

func quoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// FetchPoints returns every vertex of the geometries intersecting bbox.
// When lod is set and the source has a LOD column only that level is read.
func (s *Source) FetchPoints(ctx context.Context, bbox models.BoundingBox, lod *int) (models.PointSet, error) {
	withLOD := lod != nil && s.cfg.LODColumn != ""
	query, err := pointsQuery(s.cfg, withLOD)
	if err != nil {
		return nil, err
	}

	args := []any{bbox.MinX, bbox.MinZ, bbox.MaxX, bbox.MaxZ}
	if withLOD {
		args = append(args, *lod)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var points models.PointSet
	for rows.Next() {
		var c models.Coordinate
		if err := rows.Scan(&c.X, &c.Y, &c.Z); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		points = append(points, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return points, nil
}

// Count returns the number of geometry rows in the source table
func (s *Source) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteTable(s.cfg.Table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (s *Source) Close() error {
	return s.db.Close()
}
