package kde

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidConfig is wrapped by every error returned from Config.Validate.
var ErrInvalidConfig = errors.New("invalid kde config")

const (
	// MaxGridSize bounds a grid at 501² cells.
	MaxGridSize = 500
	// MaxTimeWindowHours is ten years.
	MaxTimeWindowHours = 10 * 366 * 24
)

// Config is the per-evaluation parameter bundle. It is passed by value into
// Evaluate and never retained.
type Config struct {
	Bandwidth float64 `json:"bandwidth"` // kernel spread, > 0
	WS        float64 `json:"ws"`        // spatial axis weight, >= 0
	WB        float64 `json:"wb"`        // behavioural axis weight, >= 0
	WT        float64 `json:"wt"`        // time-of-day axis weight, >= 0
	GridSize  int     `json:"gridSize"`  // intervals per axis; gridSize+1 samples

	// TimeWindowHours is the buffer retention horizon. The estimator does not
	// use it but it travels with the rest of the operator's settings.
	TimeWindowHours float64 `json:"timeWindowHours"`

	// Location reduces event timestamps to hour-of-day in Mode3D.
	// Nil means UTC.
	Location *time.Location `json:"-"`

	// WrapHours measures Mode3D time differences around the clock, so 23:55
	// and 00:05 are ten minutes apart instead of 23h50m. Off by default.
	WrapHours bool `json:"wrapHours"`
}

// DefaultConfig returns the operator defaults.
func DefaultConfig() Config {
	return Config{
		Bandwidth:       8.0,
		WS:              0.4,
		WB:              0.3,
		WT:              0.3,
		GridSize:        50,
		TimeWindowHours: 24,
	}
}

// Validate reports the first configuration error, if any. Evaluate assumes
// a validated Config and does not re-check.
func (c Config) Validate() error {
	if math.IsNaN(c.Bandwidth) || math.IsInf(c.Bandwidth, 0) || c.Bandwidth <= 0 {
		return fmt.Errorf("%w: bandwidth must be positive, got %v", ErrInvalidConfig, c.Bandwidth)
	}
	if c.GridSize < 1 || c.GridSize > MaxGridSize {
		return fmt.Errorf("%w: gridSize must be between 1 and %d, got %d", ErrInvalidConfig, MaxGridSize, c.GridSize)
	}
	if math.IsNaN(c.TimeWindowHours) || c.TimeWindowHours <= 0 || c.TimeWindowHours > MaxTimeWindowHours {
		return fmt.Errorf("%w: timeWindowHours must be positive and at most %d, got %v",
			ErrInvalidConfig, MaxTimeWindowHours, c.TimeWindowHours)
	}
	for _, w := range []struct {
		name  string
		value float64
	}{{"ws", c.WS}, {"wb", c.WB}, {"wt", c.WT}} {
		if math.IsNaN(w.value) || math.IsInf(w.value, 0) || w.value < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number, got %v", ErrInvalidConfig, w.name, w.value)
		}
	}
	return nil
}

// Window returns TimeWindowHours as a duration.
func (c Config) Window() time.Duration {
	return time.Duration(c.TimeWindowHours * float64(time.Hour))
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}
