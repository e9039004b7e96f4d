package kde

import (
	"fmt"
	"math"
	"strings"
)

// Mode selects the projection a grid is evaluated in.
type Mode int

const (
	// Mode2D samples space × behaviour.
	Mode2D Mode = iota
	// Mode3D samples space × hour-of-day.
	Mode3D
)

// String returns "2d" or "3d".
func (m Mode) String() string {
	switch m {
	case Mode2D:
		return "2d"
	case Mode3D:
		return "3d"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "2d"/"3d" in any case. An empty string is Mode2D.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "2d":
		return Mode2D, nil
	case "3d":
		return Mode3D, nil
	default:
		return Mode2D, fmt.Errorf("unknown projection mode %q (want 2d or 3d)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Projection returns the axis mapping for m. Unknown modes fall back to
// the spatial-behavioural projection.
func (m Mode) Projection() Projection {
	if m == Mode3D {
		return SpatialTemporal
	}
	return SpatialBehavioral
}

// Axis is one sampled grid axis. Samples run from Min to Max inclusive.
type Axis struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Sample returns the i-th of gridSize+1 evenly spaced values on the axis.
func (a Axis) Sample(i, gridSize int) float64 {
	return a.Min + float64(i)/float64(gridSize)*(a.Max-a.Min)
}

// Projection maps points into a 2-D sample space and measures the weighted
// distance between a grid sample and a mapped point.
type Projection interface {
	// Axes returns the first (major) and second (minor) grid axis.
	Axes() (Axis, Axis)
	// Coords maps a point into the projection's axis space.
	Coords(p Point, cfg *Config) (float64, float64)
	// Distance is the weighted distance from grid sample (g1, g2) to a point
	// already mapped to (c1, c2).
	Distance(cfg *Config, g1, g2, c1, c2 float64) float64
}

// timeScale makes an hour difference commensurable with the [0,100]
// spatial axis.
const timeScale = 100.0 / 24.0

var (
	// SpatialBehavioral is the Mode2D projection: sqrt(ws·dx² + wb·dy²).
	SpatialBehavioral Projection = spatialBehavioral{}
	// SpatialTemporal is the Mode3D projection: sqrt(ws·dx² + wt·(dh·100/24)²).
	SpatialTemporal Projection = spatialTemporal{}
)

type spatialBehavioral struct{}

func (spatialBehavioral) Axes() (Axis, Axis) {
	return Axis{Name: "space", Min: 0, Max: 100}, Axis{Name: "behavior", Min: 0, Max: 100}
}

func (spatialBehavioral) Coords(p Point, _ *Config) (float64, float64) {
	return p.X, p.Y
}

func (spatialBehavioral) Distance(cfg *Config, g1, g2, c1, c2 float64) float64 {
	dx := g1 - c1
	dy := g2 - c2
	return math.Sqrt(cfg.WS*dx*dx + cfg.WB*dy*dy)
}

type spatialTemporal struct{}

func (spatialTemporal) Axes() (Axis, Axis) {
	return Axis{Name: "space", Min: 0, Max: 100}, Axis{Name: "hour", Min: 0, Max: 24}
}

func (spatialTemporal) Coords(p Point, cfg *Config) (float64, float64) {
	return p.X, hourOfDay(p.T, cfg.location())
}

func (spatialTemporal) Distance(cfg *Config, g1, g2, c1, c2 float64) float64 {
	ds := g1 - c1
	dh := g2 - c2
	if cfg.WrapHours {
		dh = math.Abs(dh)
		if dh > 12 {
			dh = 24 - dh
		}
	}
	dt := dh * timeScale
	return math.Sqrt(cfg.WS*ds*ds + cfg.WT*dt*dt)
}
