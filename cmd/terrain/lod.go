package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1F47E/go-terrain-grid/pkg/border"
	"github.com/1F47E/go-terrain-grid/pkg/lod"
	"github.com/1F47E/go-terrain-grid/pkg/terrain"
)

func newLODCmd(a *app) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "lod",
		Short: "Show which level of detail a request resolves to",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			tcfg, err := a.terrainConfig("")
			if err != nil {
				return err
			}

			id, err := terrain.New(req, tcfg).ResolveLOD(a.cfg.LODs)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "LOD %d (%g m per sample)\n", id, a.cfg.LODs[id])
			if req.Resolution != nil {
				geodetic := border.IsGeodetic(req.CRS, tcfg.GeodeticCRS)
				dx, dy, err := lod.SampleDistance(req.BBox, *req.Resolution, geodetic)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "requested spacing %.3f x %.3f\n", dx, dy)
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
