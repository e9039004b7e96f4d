package kde

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", Mode2D, false},
		{"2d", Mode2D, false},
		{"2D", Mode2D, false},
		{" 3d ", Mode3D, false},
		{"3D", Mode3D, false},
		{"4d", Mode2D, true},
	}
	for _, tc := range tests {
		got, err := ParseMode(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestMode_TextRoundTrip(t *testing.T) {
	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("3d")))
	assert.Equal(t, Mode3D, m)
	b, err := m.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "3d", string(b))
	assert.Error(t, m.UnmarshalText([]byte("flat")))
}

func TestSpatialBehavioral_Distance(t *testing.T) {
	cfg := &Config{WS: 0.4, WB: 0.3}
	d := SpatialBehavioral.Distance(cfg, 10, 20, 13, 24)
	assert.InDelta(t, math.Sqrt(0.4*9+0.3*16), d, 1e-12)
}

func TestSpatialTemporal_Distance(t *testing.T) {
	cfg := &Config{WS: 0.4, WT: 0.3}
	d := SpatialTemporal.Distance(cfg, 10, 6, 10, 3)
	assert.InDelta(t, math.Sqrt(0.3*math.Pow(3*100.0/24.0, 2)), d, 1e-12)

	cfg.WrapHours = true
	assert.InDelta(t,
		SpatialTemporal.Distance(cfg, 0, 1, 0, 0),
		SpatialTemporal.Distance(cfg, 0, 0, 0, 23), 1e-12)
}

func TestAxis_Sample(t *testing.T) {
	a := Axis{Min: 0, Max: 24}
	assert.Equal(t, 0.0, a.Sample(0, 8))
	assert.Equal(t, 12.0, a.Sample(4, 8))
	assert.Equal(t, 24.0, a.Sample(8, 8))
}
