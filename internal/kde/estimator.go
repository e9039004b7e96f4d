package kde

// Evaluate samples a (GridSize+1)² grid in the given mode and, for every
// cell, sums Weight·Gaussian(distance, Bandwidth) over all points.
//
// cfg must have passed Validate. An empty point set yields an all-zero
// grid. Weights are used as given; negative weights lower the density.
// Identical inputs produce bit-identical grids.
func Evaluate(points []Point, cfg Config, mode Mode) *Grid {
	proj := mode.Projection()
	axis1, axis2 := proj.Axes()
	n := cfg.GridSize

	type mapped struct{ c1, c2, w float64 }
	pts := make([]mapped, len(points))
	for k, p := range points {
		c1, c2 := proj.Coords(p, &cfg)
		pts[k] = mapped{c1: c1, c2: c2, w: p.Weight}
	}

	cells := make([]Cell, 0, (n+1)*(n+1))
	for i := 0; i <= n; i++ {
		g1 := axis1.Sample(i, n)
		for j := 0; j <= n; j++ {
			g2 := axis2.Sample(j, n)
			density := 0.0
			for _, p := range pts {
				d := proj.Distance(&cfg, g1, g2, p.c1, p.c2)
				density += p.w * Gaussian(d, cfg.Bandwidth)
			}
			cells = append(cells, Cell{A1: g1, A2: g2, Density: density})
		}
	}

	return &Grid{
		Mode:     mode,
		GridSize: n,
		Axis1:    axis1,
		Axis2:    axis2,
		Cells:    cells,
	}
}
