package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/1F47E/go-terrain-grid/pkg/postgis"
	"github.com/1F47E/go-terrain-grid/pkg/source"
	"github.com/1F47E/go-terrain-grid/pkg/terrain"
)

func newFetchCmd(a *app) *cobra.Command {
	var (
		flags  requestFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch terrain vertices from PostGIS into a snapshot file",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}

			var lodID *int
			if len(a.cfg.LODs) > 0 {
				tcfg, err := a.terrainConfig("")
				if err != nil {
					return err
				}
				id, err := terrain.New(req, tcfg).ResolveLOD(a.cfg.LODs)
				if err != nil {
					return err
				}
				lodID = &id
			}

			pc := a.cfg.PostGIS
			src, err := postgis.Open(cmd.Context(), postgis.Config{
				Host:           pc.Host,
				Port:           pc.Port,
				User:           pc.User,
				Password:       pc.Password,
				Database:       pc.Database,
				SSLMode:        pc.SSLMode,
				MaxConnections: pc.MaxConnections,
				ConnectTimeout: pc.ConnectionTimeout,
				Table:          pc.Table,
				GeometryColumn: pc.GeometryColumn,
				LODColumn:      pc.LODColumn,
				SRID:           pc.SRID,
			})
			if err != nil {
				return err
			}
			defer src.Close()

			points, err := src.FetchPoints(cmd.Context(), req.BBox, lodID)
			if err != nil {
				return err
			}

			snap := source.Snapshot{BBox: req.BBox, CRS: req.CRS, Points: points}
			if lodID != nil {
				snap.LOD = *lodID
			}
			if err := source.SaveSnapshot(output, snap); err != nil {
				return err
			}

			a.log.Info("snapshot saved", zap.String("file", output), zap.Int("points", len(points)))
			fmt.Fprintf(a.stderr, "Saved %d points to %s\n", len(points), output)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "terrain.gob", "Snapshot file path")
	return cmd
}
