package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/riskmap/internal/kde"
)

// DefaultConfigPath is the path to the canonical density defaults file.
const DefaultConfigPath = "config/kde.defaults.json"

// KDEConfig is the operator-facing configuration of the density monitor.
// The schema matches the /api/config endpoint so the same JSON can be used
// for startup configuration and runtime updates. Nil fields fall back to
// the defaults returned by the Get* methods.
type KDEConfig struct {
	// Estimator params
	Bandwidth       *float64 `json:"bandwidth,omitempty"`
	WS              *float64 `json:"ws,omitempty"`
	WB              *float64 `json:"wb,omitempty"`
	WT              *float64 `json:"wt,omitempty"`
	GridSize        *int     `json:"grid_size,omitempty"`
	TimeWindowHours *float64 `json:"time_window_hours,omitempty"`
	WrapHours       *bool    `json:"wrap_hours,omitempty"`
	Timezone        *string  `json:"timezone,omitempty"` // IANA name, e.g. "Asia/Shanghai"

	// Live loop params
	TickInterval  *string `json:"tick_interval,omitempty"` // duration string like "3s"
	InitialPoints *int    `json:"initial_points,omitempty"`
	Capacity      *int    `json:"capacity,omitempty"`
	Live          *bool   `json:"live,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyKDEConfig returns a KDEConfig with all fields set to nil.
func EmptyKDEConfig() *KDEConfig {
	return &KDEConfig{}
}

// LoadKDEConfig loads a KDEConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file keep their defaults, so partial configs are safe.
func LoadKDEConfig(path string) (*KDEConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseKDEConfig(data)
}

// ParseKDEConfig decodes and validates a JSON document. Unknown fields are
// rejected.
func ParseKDEConfig(data []byte) (*KDEConfig, error) {
	cfg := EmptyKDEConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *KDEConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadKDEConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks every set field. Estimator errors wrap kde.ErrInvalidConfig.
func (c *KDEConfig) Validate() error {
	if c.Timezone != nil && *c.Timezone != "" {
		if _, err := time.LoadLocation(*c.Timezone); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", kde.ErrInvalidConfig, *c.Timezone)
		}
	}
	if c.TickInterval != nil && *c.TickInterval != "" {
		d, err := time.ParseDuration(*c.TickInterval)
		if err != nil {
			return fmt.Errorf("invalid tick_interval '%s': %w", *c.TickInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("tick_interval must be positive, got %s", d)
		}
	}
	if c.InitialPoints != nil && *c.InitialPoints < 0 {
		return fmt.Errorf("initial_points must be non-negative, got %d", *c.InitialPoints)
	}
	if c.Capacity != nil && *c.Capacity < 1 {
		return fmt.Errorf("capacity must be at least 1, got %d", *c.Capacity)
	}
	return c.ToKDE().Validate()
}

// Merge returns a copy of c with every non-nil field of update applied.
func (c *KDEConfig) Merge(update *KDEConfig) *KDEConfig {
	out := *c
	if update == nil {
		return &out
	}
	if update.Bandwidth != nil {
		out.Bandwidth = ptrFloat64(*update.Bandwidth)
	}
	if update.WS != nil {
		out.WS = ptrFloat64(*update.WS)
	}
	if update.WB != nil {
		out.WB = ptrFloat64(*update.WB)
	}
	if update.WT != nil {
		out.WT = ptrFloat64(*update.WT)
	}
	if update.GridSize != nil {
		out.GridSize = ptrInt(*update.GridSize)
	}
	if update.TimeWindowHours != nil {
		out.TimeWindowHours = ptrFloat64(*update.TimeWindowHours)
	}
	if update.WrapHours != nil {
		out.WrapHours = ptrBool(*update.WrapHours)
	}
	if update.Timezone != nil {
		out.Timezone = ptrString(*update.Timezone)
	}
	if update.TickInterval != nil {
		out.TickInterval = ptrString(*update.TickInterval)
	}
	if update.InitialPoints != nil {
		out.InitialPoints = ptrInt(*update.InitialPoints)
	}
	if update.Capacity != nil {
		out.Capacity = ptrInt(*update.Capacity)
	}
	if update.Live != nil {
		out.Live = ptrBool(*update.Live)
	}
	return &out
}

// Resolved returns a copy with every field populated from its Get* value.
func (c *KDEConfig) Resolved() *KDEConfig {
	return &KDEConfig{
		Bandwidth:       ptrFloat64(c.GetBandwidth()),
		WS:              ptrFloat64(c.GetWS()),
		WB:              ptrFloat64(c.GetWB()),
		WT:              ptrFloat64(c.GetWT()),
		GridSize:        ptrInt(c.GetGridSize()),
		TimeWindowHours: ptrFloat64(c.GetTimeWindowHours()),
		WrapHours:       ptrBool(c.GetWrapHours()),
		Timezone:        ptrString(c.GetTimezone()),
		TickInterval:    ptrString(c.GetTickInterval().String()),
		InitialPoints:   ptrInt(c.GetInitialPoints()),
		Capacity:        ptrInt(c.GetCapacity()),
		Live:            ptrBool(c.GetLive()),
	}
}

// ToKDE converts the estimator fields to a kde.Config.
func (c *KDEConfig) ToKDE() kde.Config {
	return kde.Config{
		Bandwidth:       c.GetBandwidth(),
		WS:              c.GetWS(),
		WB:              c.GetWB(),
		WT:              c.GetWT(),
		GridSize:        c.GetGridSize(),
		TimeWindowHours: c.GetTimeWindowHours(),
		Location:        c.GetLocation(),
		WrapHours:       c.GetWrapHours(),
	}
}

// FromKDE returns a KDEConfig carrying the estimator fields of k.
func FromKDE(k kde.Config) *KDEConfig {
	cfg := &KDEConfig{
		Bandwidth:       ptrFloat64(k.Bandwidth),
		WS:              ptrFloat64(k.WS),
		WB:              ptrFloat64(k.WB),
		WT:              ptrFloat64(k.WT),
		GridSize:        ptrInt(k.GridSize),
		TimeWindowHours: ptrFloat64(k.TimeWindowHours),
		WrapHours:       ptrBool(k.WrapHours),
	}
	if k.Location != nil {
		cfg.Timezone = ptrString(k.Location.String())
	}
	return cfg
}

// GetBandwidth returns the bandwidth value or the default.
func (c *KDEConfig) GetBandwidth() float64 {
	if c.Bandwidth == nil {
		return 8.0
	}
	return *c.Bandwidth
}

// GetWS returns the spatial weight or the default.
func (c *KDEConfig) GetWS() float64 {
	if c.WS == nil {
		return 0.4
	}
	return *c.WS
}

// GetWB returns the behavioural weight or the default.
func (c *KDEConfig) GetWB() float64 {
	if c.WB == nil {
		return 0.3
	}
	return *c.WB
}

// GetWT returns the time-of-day weight or the default.
func (c *KDEConfig) GetWT() float64 {
	if c.WT == nil {
		return 0.3
	}
	return *c.WT
}

// GetGridSize returns the grid_size value or the default.
func (c *KDEConfig) GetGridSize() int {
	if c.GridSize == nil {
		return 50
	}
	return *c.GridSize
}

// GetTimeWindowHours returns the time_window_hours value or the default.
func (c *KDEConfig) GetTimeWindowHours() float64 {
	if c.TimeWindowHours == nil {
		return 24
	}
	return *c.TimeWindowHours
}

// GetWrapHours returns the wrap_hours value or the default.
func (c *KDEConfig) GetWrapHours() bool {
	if c.WrapHours == nil {
		return false
	}
	return *c.WrapHours
}

// GetTimezone returns the timezone name or "UTC".
func (c *KDEConfig) GetTimezone() string {
	if c.Timezone == nil || *c.Timezone == "" {
		return "UTC"
	}
	return *c.Timezone
}

// GetLocation loads the configured timezone, falling back to UTC.
func (c *KDEConfig) GetLocation() *time.Location {
	loc, err := time.LoadLocation(c.GetTimezone())
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
func (c *KDEConfig) GetTickInterval() time.Duration {
	if c.TickInterval == nil || *c.TickInterval == "" {
		return 3 * time.Second // default
	}
	d, err := time.ParseDuration(*c.TickInterval)
	if err != nil || d <= 0 {
		return 3 * time.Second // default on parse error
	}
	return d
}

// GetInitialPoints returns the initial_points value or the default.
func (c *KDEConfig) GetInitialPoints() int {
	if c.InitialPoints == nil {
		return 200
	}
	return *c.InitialPoints
}

// GetCapacity returns the capacity value or the default.
func (c *KDEConfig) GetCapacity() int {
	if c.Capacity == nil {
		return 1000
	}
	return *c.Capacity
}

// GetLive returns the live value or the default.
func (c *KDEConfig) GetLive() bool {
	if c.Live == nil {
		return true
	}
	return *c.Live
}
