package render

import (
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/riskmap/internal/kde"
	"github.com/banshee-data/riskmap/internal/risk"
)

// PNG defaults in points.
const (
	DefaultPNGWidth  = 8 * vg.Inch
	DefaultPNGHeight = 6 * vg.Inch
)

// WritePNG draws grid as a heat map with events overlaid and writes it as a
// PNG of the given size. Pass nil events for the density alone.
func WritePNG(w io.Writer, grid *kde.Grid, cfg kde.Config, events []risk.Event, width, height vg.Length) error {
	if grid == nil || grid.Len() == 0 {
		return fmt.Errorf("write png: empty grid")
	}
	if width <= 0 {
		width = DefaultPNGWidth
	}
	if height <= 0 {
		height = DefaultPNGHeight
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Risk density (%s)", grid.Mode)
	p.X.Label.Text = grid.Axis1.Name
	p.Y.Label.Text = grid.Axis2.Name
	p.X.Min, p.X.Max = grid.Axis1.Min, grid.Axis1.Max
	p.Y.Min, p.Y.Max = grid.Axis2.Min, grid.Axis2.Max

	hm := plotter.NewHeatMap(grid, palette.Heat(32, 1))
	if hm.Max <= hm.Min {
		// Plot divides by the dynamic range.
		hm.Max = hm.Min + 1
	}
	p.Add(hm)

	if err := addEventGlyphs(p, grid, cfg, events); err != nil {
		return err
	}

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

func addEventGlyphs(p *plot.Plot, grid *kde.Grid, cfg kde.Config, events []risk.Event) error {
	if len(events) == 0 {
		return nil
	}
	proj := grid.Mode.Projection()
	byLevel := make(map[risk.Level]plotter.XYs)
	for _, e := range events {
		if e.Level == risk.LevelNone {
			continue
		}
		c1, c2 := proj.Coords(e.Point(), &cfg)
		byLevel[e.Level] = append(byLevel[e.Level], plotter.XY{X: c1, Y: c2})
	}

	for _, level := range risk.Levels {
		xys, ok := byLevel[level]
		if !ok {
			continue
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("event overlay: %w", err)
		}
		s.GlyphStyle.Color = hexColor(level.Color())
		s.GlyphStyle.Radius = vg.Points(1.5 + 0.5*float64(level.Score()))
		p.Add(s)
		p.Legend.Add(string(level), s)
	}
	return nil
}

// hexColor parses "#rrggbb". Anything else is transparent.
func hexColor(s string) color.Color {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.Transparent
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.Transparent
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
