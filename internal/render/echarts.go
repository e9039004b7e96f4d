// Package render draws density grids as go-echarts HTML pages and gonum/plot
// PNG images.
package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/riskmap/internal/kde"
	"github.com/banshee-data/riskmap/internal/risk"
)

// DefaultAssetsHost serves the echarts JavaScript bundles.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// densityColors runs from transparent-ish blue through amber to red.
var densityColors = []string{"#0f172a", "#1e3a8a", "#2563eb", "#22d3ee", "#facc15", "#f97316", "#ef4444"}

// Options controls page chrome.
type Options struct {
	Title      string
	Subtitle   string
	AssetsHost string
	Theme      string
	Width      string
	Height     string
}

func (o Options) init(pageTitle string) opts.Initialization {
	host := o.AssetsHost
	if host == "" {
		host = DefaultAssetsHost
	}
	theme := o.Theme
	if theme == "" {
		theme = "dark"
	}
	width, height := o.Width, o.Height
	if width == "" {
		width = "900px"
	}
	if height == "" {
		height = "720px"
	}
	return opts.Initialization{PageTitle: pageTitle, Theme: theme, Width: width, Height: height, AssetsHost: host}
}

func (o Options) title(def string) opts.Title {
	t := o.Title
	if t == "" {
		t = def
	}
	return opts.Title{Title: t, Subtitle: o.Subtitle}
}

func axisLabels(a kde.Axis, gridSize int) []string {
	labels := make([]string, gridSize+1)
	for i := range labels {
		labels[i] = strconv.FormatFloat(a.Sample(i, gridSize), 'g', 4, 64)
	}
	return labels
}

// visualMax is the colour scale ceiling; an all-zero grid still gets a
// usable scale.
func visualMax(s kde.Summary) float32 {
	if s.Max <= 0 {
		return 1
	}
	return float32(s.Max)
}

// HeatmapChart builds a heatmap of grid with Axis1 along x and Axis2 along y.
func HeatmapChart(grid *kde.Grid, o Options) *charts.HeatMap {
	sum := grid.Summary()
	side := grid.Side()

	data := make([]opts.HeatMapData, 0, grid.Len())
	for i := 0; i < side; i++ {
		for j := 0; j < side; j++ {
			data = append(data, opts.HeatMapData{Value: [3]interface{}{i, j, grid.At(i, j).Density}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(o.init("Risk Density")),
		charts.WithTitleOpts(o.title(fmt.Sprintf("Risk density (%s)", grid.Mode))),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: grid.Axis1.Name, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: grid.Axis2.Name, Data: axisLabels(grid.Axis2, grid.GridSize)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        visualMax(sum),
			InRange:    &opts.VisualMapInRange{Color: densityColors},
		}),
	)
	hm.SetXAxis(axisLabels(grid.Axis1, grid.GridSize)).
		AddSeries("density", data)
	return hm
}

// EventScatter plots events in the grid's projection, one series per risk
// level coloured by level. Events at level NONE are not drawn.
func EventScatter(grid *kde.Grid, cfg kde.Config, events []risk.Event, o Options) *charts.Scatter {
	proj := grid.Mode.Projection()

	byLevel := make(map[risk.Level][]opts.ScatterData)
	for _, e := range events {
		if e.Level == risk.LevelNone {
			continue
		}
		c1, c2 := proj.Coords(e.Point(), &cfg)
		byLevel[e.Level] = append(byLevel[e.Level], opts.ScatterData{
			Name:       e.ID,
			Value:      []interface{}{c1, c2, e.Score()},
			SymbolSize: 4 + 2*e.Score(),
		})
	}

	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		charts.WithInitializationOpts(o.init("Risk Events")),
		charts.WithTitleOpts(opts.Title{Title: "Abnormal events", Subtitle: fmt.Sprintf("%d events", len(events))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Min: grid.Axis1.Min, Max: grid.Axis1.Max, Name: grid.Axis1.Name, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: grid.Axis2.Min, Max: grid.Axis2.Max, Name: grid.Axis2.Name}),
	)
	for _, level := range risk.Levels {
		data, ok := byLevel[level]
		if !ok {
			continue
		}
		sc.AddSeries(string(level), data,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: level.Color(), Opacity: opts.Float(0.85)}),
		)
	}
	return sc
}

// SurfaceChart builds a 3-D surface of grid with density on the vertical axis.
func SurfaceChart(grid *kde.Grid, o Options) *charts.Surface3D {
	sum := grid.Summary()

	data := make([]opts.Chart3DData, 0, grid.Len())
	for _, c := range grid.Cells {
		data = append(data, opts.Chart3DData{Value: []interface{}{c.A1, c.A2, c.Density}})
	}

	s := charts.NewSurface3D()
	s.SetGlobalOptions(
		charts.WithInitializationOpts(o.init("Risk Density Surface")),
		charts.WithTitleOpts(o.title(fmt.Sprintf("Risk density surface (%s)", grid.Mode))),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: grid.Axis1.Name, Type: "value", Min: grid.Axis1.Min, Max: grid.Axis1.Max}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: grid.Axis2.Name, Type: "value", Min: grid.Axis2.Min, Max: grid.Axis2.Max}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "density", Type: "value"}),
		charts.WithGrid3DOpts(opts.Grid3D{BoxWidth: 100, BoxDepth: 100, BoxHeight: 60}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        visualMax(sum),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: densityColors},
		}),
	)
	s.AddSeries("density", data)
	return s
}

// HeatmapPage renders the density heatmap and the event scatter on one page.
func HeatmapPage(w io.Writer, grid *kde.Grid, cfg kde.Config, events []risk.Event, o Options) error {
	page := components.NewPage()
	page.SetAssetsHost(o.init("").AssetsHost)
	page.AddCharts(HeatmapChart(grid, o), EventScatter(grid, cfg, events, o))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render heatmap page: %w", err)
	}
	return nil
}

// SurfacePage renders the 3-D density surface.
func SurfacePage(w io.Writer, grid *kde.Grid, o Options) error {
	if err := SurfaceChart(grid, o).Render(w); err != nil {
		return fmt.Errorf("render surface page: %w", err)
	}
	return nil
}
