package main

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/1F47E/go-terrain-grid/pkg/grid"
	"github.com/1F47E/go-terrain-grid/pkg/octet"
)

type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	stat  lipgloss.Style
	dim   lipgloss.Style
	box   lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{title: plain, label: plain, stat: plain, dim: plain, box: plain}
	}
	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8BE9FD")),
		stat: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C")),
		dim: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4")),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(1, 2),
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newInspectCmd(a *app) *cobra.Command {
	var byteOrder string

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the header and height statistics of a terrain stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if byteOrder == "" {
				byteOrder = a.cfg.Terrain.ByteOrder
			}
			order, err := octet.ParseByteOrder(byteOrder)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			h, g, err := octet.Decode(data, order)
			if err != nil {
				return err
			}

			color := false
			if f, ok := a.stdout.(*os.File); ok {
				color = isTerminal(f)
			}
			fmt.Fprintln(a.stdout, renderSummary(newStyles(color), args[0], h, g))
			return nil
		},
	}

	cmd.Flags().StringVar(&byteOrder, "byte-order", "", "big or little (default from config)")
	return cmd
}

type heightStats struct {
	min, max, mean float64
}

func statsOf(g *grid.Grid) heightStats {
	s := heightStats{min: math.Inf(1), max: math.Inf(-1)}
	var sum float64
	for _, h := range g.Heights {
		s.min = math.Min(s.min, h)
		s.max = math.Max(s.max, h)
		sum += h
	}
	s.mean = sum / float64(len(g.Heights))
	return s
}

func renderSummary(st styles, name string, h octet.Header, g *grid.Grid) string {
	stats := statsOf(g)

	row := func(label, value string) string {
		return st.label.Render(fmt.Sprintf("%-10s", label)) + " " + st.stat.Render(value)
	}

	var b strings.Builder
	b.WriteString(st.title.Render("Terrain "+name) + "\n\n")
	b.WriteString(row("size", fmt.Sprintf("%d x %d", h.Width, h.Height)) + "\n")
	b.WriteString(row("spacing", fmt.Sprintf("%g x %g", h.SpacingX, h.SpacingY)) + "\n")
	b.WriteString(row("min", fmt.Sprintf("%.3f", stats.min)) + "\n")
	b.WriteString(row("max", fmt.Sprintf("%.3f", stats.max)) + "\n")
	b.WriteString(row("mean", fmt.Sprintf("%.3f", stats.mean)) + "\n")
	b.WriteString(st.dim.Render(fmt.Sprintf("%d samples", len(g.Heights))))
	return st.box.Render(b.String())
}
