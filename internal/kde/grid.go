package kde

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Cell is one grid sample and its estimated density.
type Cell struct {
	A1      float64 `json:"a1"`
	A2      float64 `json:"a2"`
	Density float64 `json:"density"`
}

// Grid is the output of one evaluation. Cells are ordered axis-1-major:
// index i*(GridSize+1)+j holds sample i on Axis1 and sample j on Axis2.
// A Grid is never mutated after Evaluate returns it.
type Grid struct {
	Mode     Mode   `json:"mode"`
	GridSize int    `json:"gridSize"`
	Axis1    Axis   `json:"axis1"`
	Axis2    Axis   `json:"axis2"`
	Cells    []Cell `json:"cells"`
}

// Side is the number of samples along each axis.
func (g *Grid) Side() int { return g.GridSize + 1 }

// Len is the number of cells.
func (g *Grid) Len() int { return len(g.Cells) }

// At returns the cell at axis-1 index i and axis-2 index j.
func (g *Grid) At(i, j int) Cell {
	return g.Cells[i*g.Side()+j]
}

// Densities returns the densities in cell order.
func (g *Grid) Densities() []float64 {
	out := make([]float64, len(g.Cells))
	for i, c := range g.Cells {
		out[i] = c.Density
	}
	return out
}

// Summary describes the density distribution over a grid.
type Summary struct {
	Max    float64 `json:"max"`
	MaxA1  float64 `json:"maxA1"`
	MaxA2  float64 `json:"maxA2"`
	Min    float64 `json:"min"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Total  float64 `json:"total"`
}

// Summary computes the grid's summary statistics. Ties for the maximum
// resolve to the first cell in grid order.
func (g *Grid) Summary() Summary {
	if len(g.Cells) == 0 {
		return Summary{}
	}
	d := g.Densities()
	idx := floats.MaxIdx(d)
	mean, std := stat.MeanStdDev(d, nil)
	if len(d) == 1 {
		std = 0
	}
	return Summary{
		Max:    d[idx],
		MaxA1:  g.Cells[idx].A1,
		MaxA2:  g.Cells[idx].A2,
		Min:    floats.Min(d),
		Mean:   mean,
		StdDev: std,
		Total:  floats.Sum(d),
	}
}

// The methods below satisfy gonum.org/v1/plot/plotter.GridXYZ with columns
// along Axis1 and rows along Axis2.

// Dims returns the number of columns and rows.
func (g *Grid) Dims() (c, r int) { return g.Side(), g.Side() }

// Z returns the density at column c, row r.
func (g *Grid) Z(c, r int) float64 { return g.At(c, r).Density }

// X returns the Axis1 coordinate of column c.
func (g *Grid) X(c int) float64 { return g.Axis1.Sample(c, g.GridSize) }

// Y returns the Axis2 coordinate of row r.
func (g *Grid) Y(r int) float64 { return g.Axis2.Sample(r, g.GridSize) }
