// Package config handles terrain service configuration.
package config

import (
	"time"

	"github.com/1F47E/go-terrain-grid/pkg/border"
	"github.com/1F47E/go-terrain-grid/pkg/grid"
	"github.com/1F47E/go-terrain-grid/pkg/lod"
)

// Config holds all settings.
type Config struct {
	Terrain TerrainConfig `yaml:"terrain"`
	LODs    lod.Table     `yaml:"lods"`
	Logging LoggingConfig `yaml:"logging"`
	PostGIS PostGISConfig `yaml:"postgis"`
	Tracing TracingConfig `yaml:"tracing"`
}

// TerrainConfig holds grid construction and output settings.
type TerrainConfig struct {
	RowTolerance  float64  `yaml:"row_tolerance"`
	EdgeTolerance float64  `yaml:"edge_tolerance"`
	ByteOrder     string   `yaml:"byte_order"`
	Kernel        string   `yaml:"kernel"`
	Workers       int      `yaml:"workers"`
	GeodeticCRS   []string `yaml:"geodetic_crs"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// PostGISConfig holds the vertex source connection and table layout.
type PostGISConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	User              string        `yaml:"user"`
	Password          string        `yaml:"password"`
	Database          string        `yaml:"database"`
	SSLMode           string        `yaml:"ssl_mode"`
	MaxConnections    int           `yaml:"max_connections"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
	Table             string        `yaml:"table"`
	GeometryColumn    string        `yaml:"geometry_column"`
	LODColumn         string        `yaml:"lod_column"`
	SRID              int           `yaml:"srid"`
}

// TracingConfig holds span export settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	PrettyPrint bool   `yaml:"pretty_print"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Terrain: TerrainConfig{
			RowTolerance:  grid.DefaultRowTolerance,
			EdgeTolerance: border.DefaultEdgeTolerance,
			ByteOrder:     "big",
			Kernel:        "bicubic",
			Workers:       0,
			GeodeticCRS:   append([]string(nil), border.DefaultGeodeticCRS...),
		},
		LODs: lod.Table{},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		PostGIS: PostGISConfig{
			Host:              "localhost",
			Port:              5432,
			User:              "postgres",
			Database:          "terrain",
			SSLMode:           "disable",
			MaxConnections:    25,
			ConnectionTimeout: 10 * time.Second,
			Table:             "terrain_points",
			GeometryColumn:    "geom",
			SRID:              4326,
		},
		Tracing: TracingConfig{
			ServiceName: "terrain",
			PrettyPrint: true,
		},
	}
}
