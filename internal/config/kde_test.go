package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/riskmap/internal/kde"
)

func TestEmptyKDEConfig_Defaults(t *testing.T) {
	cfg := EmptyKDEConfig()

	assert.Equal(t, 8.0, cfg.GetBandwidth())
	assert.Equal(t, 0.4, cfg.GetWS())
	assert.Equal(t, 0.3, cfg.GetWB())
	assert.Equal(t, 0.3, cfg.GetWT())
	assert.Equal(t, 50, cfg.GetGridSize())
	assert.Equal(t, 24.0, cfg.GetTimeWindowHours())
	assert.False(t, cfg.GetWrapHours())
	assert.Equal(t, "UTC", cfg.GetTimezone())
	assert.Equal(t, 3*time.Second, cfg.GetTickInterval())
	assert.Equal(t, 200, cfg.GetInitialPoints())
	assert.Equal(t, 1000, cfg.GetCapacity())
	assert.True(t, cfg.GetLive())

	assert.Equal(t, kde.DefaultConfig().Bandwidth, cfg.ToKDE().Bandwidth)
	require.NoError(t, cfg.Validate())
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	require.NotNil(t, cfg.Bandwidth, "defaults file should set every field")
	require.NotNil(t, cfg.Capacity)

	// The file and the Get* fallbacks must agree.
	assert.Equal(t, EmptyKDEConfig().Resolved(), cfg.Resolved())
}

func TestLoadKDEConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "bandwidth": 5,
  "grid_size": 20,
  "timezone": "Asia/Shanghai",
  "tick_interval": "500ms",
  "wrap_hours": true
}`
	require.NoError(t, os.WriteFile(configPath, []byte(testJSON), 0644))

	cfg, err := LoadKDEConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 5.0, cfg.GetBandwidth())
	assert.Equal(t, 20, cfg.GetGridSize())
	assert.Equal(t, 500*time.Millisecond, cfg.GetTickInterval())
	assert.True(t, cfg.GetWrapHours())
	// Omitted fields keep defaults.
	assert.Equal(t, 0.4, cfg.GetWS())
	assert.Equal(t, 1000, cfg.GetCapacity())

	k := cfg.ToKDE()
	assert.Equal(t, "Asia/Shanghai", k.Location.String())
	assert.True(t, k.WrapHours)
}

func TestLoadKDEConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, content string) string {
		p := filepath.Join(tmpDir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", write("cfg.yaml", `{}`), ".json extension"},
		{"missing file", filepath.Join(tmpDir, "absent.json"), "failed to stat"},
		{"bad json", write("bad.json", `{"bandwidth":`), "failed to parse"},
		{"unknown field", write("unknown.json", `{"bandwith": 3}`), "failed to parse"},
		{"zero bandwidth", write("bw.json", `{"bandwidth": 0}`), "bandwidth"},
		{"zero grid", write("grid.json", `{"grid_size": 0}`), "gridSize"},
		{"huge grid", write("biggrid.json", `{"grid_size": 1048576}`), "gridSize"},
		{"huge window", write("bigwin.json", `{"time_window_hours": 1e16}`), "timeWindowHours"},
		{"negative window", write("win.json", `{"time_window_hours": -1}`), "timeWindowHours"},
		{"bad timezone", write("tz.json", `{"timezone": "Mars/Olympus"}`), "unknown timezone"},
		{"bad tick", write("tick.json", `{"tick_interval": "soon"}`), "tick_interval"},
		{"zero capacity", write("cap.json", `{"capacity": 0}`), "capacity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadKDEConfig(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadKDEConfig_TooLarge(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.json")
	big := `{"timezone":"UTC"` + strings.Repeat(" ", 1024*1024) + `}`
	require.NoError(t, os.WriteFile(p, []byte(big), 0644))

	_, err := LoadKDEConfig(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestValidate_WrapsErrInvalidConfig(t *testing.T) {
	cfg := &KDEConfig{Bandwidth: ptrFloat64(-2)}
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kde.ErrInvalidConfig))

	cfg = &KDEConfig{Timezone: ptrString("Nowhere/Land")}
	assert.True(t, errors.Is(cfg.Validate(), kde.ErrInvalidConfig))
}

func TestMerge(t *testing.T) {
	base := MustLoadDefaultConfig()
	merged := base.Merge(&KDEConfig{Bandwidth: ptrFloat64(12), Live: ptrBool(false)})

	assert.Equal(t, 12.0, merged.GetBandwidth())
	assert.False(t, merged.GetLive())
	assert.Equal(t, base.GetGridSize(), merged.GetGridSize())

	// The base is untouched.
	assert.Equal(t, 8.0, base.GetBandwidth())
	assert.True(t, base.GetLive())

	assert.Equal(t, base.Resolved(), base.Merge(nil).Resolved())
}

func TestFromKDE_RoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	k := kde.Config{Bandwidth: 3, WS: 1, WB: 0, WT: 2, GridSize: 10, TimeWindowHours: 6, Location: loc, WrapHours: true}

	back := FromKDE(k).ToKDE()
	assert.Equal(t, k.Bandwidth, back.Bandwidth)
	assert.Equal(t, k.GridSize, back.GridSize)
	assert.Equal(t, "Europe/Berlin", back.Location.String())
	assert.True(t, back.WrapHours)
}
