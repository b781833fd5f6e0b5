package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/1F47E/go-terrain-grid/pkg/source"
	"github.com/1F47E/go-terrain-grid/pkg/terrain"
)

func newBuildCmd(a *app) *cobra.Command {
	var (
		flags     requestFlags
		input     string
		output    string
		byteOrder string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a terrain stream from a vertex file",
		Long: `Read vertices from an XYZ text file or a .gob snapshot, build the height grid
for the bounding box and write it in the binary terrain format.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			tcfg, err := a.terrainConfig(byteOrder)
			if err != nil {
				return err
			}

			points, err := source.ReadFile(input)
			if err != nil {
				return err
			}

			t := terrain.New(req, tcfg)
			if len(a.cfg.LODs) > 0 {
				id, err := t.ResolveLOD(a.cfg.LODs)
				if err != nil {
					return err
				}
				a.log.Info("level of detail", zap.Int("lod", id))
			}
			if err := t.AddGeometry(points); err != nil {
				return err
			}

			// the stream is assembled in memory so a failed build leaves no file behind
			var buf bytes.Buffer
			if _, err := t.WriteOutput(cmd.Context(), &buf); err != nil {
				return err
			}

			if output == "-" {
				_, err = a.stdout.Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(a.stderr, "Wrote %d bytes to %s\n", buf.Len(), output)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&input, "input", "i", "", "Vertex file (.xyz text or .gob snapshot)")
	cmd.Flags().StringVarP(&output, "output", "o", "terrain.bin", "Output file, - for stdout")
	cmd.Flags().StringVar(&byteOrder, "byte-order", "", "big or little (default from config)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
