package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/riskmap/internal/kde"
	"github.com/banshee-data/riskmap/internal/risk"
)

func TestValidatePath(t *testing.T) {
	base := t.TempDir()
	outside := t.TempDir()

	require.NoError(t, os.Symlink(outside, filepath.Join(base, "escape")))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"base itself", base, false},
		{"new subdir", filepath.Join(base, "a", "b"), false},
		{"dot dot", filepath.Join(base, "..", "elsewhere"), true},
		{"absolute outside", "/etc", true},
		{"through symlink", filepath.Join(base, "escape", "out"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, []string{base})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Error(t, ValidatePath(base, nil))
	assert.NoError(t, ValidatePath(filepath.Join(outside, "x"), []string{base, outside}))
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"":                     "unknown",
		"riskmap-2d":           "riskmap-2d",
		"a b/c":                "a_b_c",
		"../../etc/passwd":     "etc_passwd",
		"__.":                  "unknown",
		"2026-05-04T09:00:00Z": "2026-05-04T09_00_00Z",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeName(in), in)
	}
	assert.Len(t, SanitizeName(strings.Repeat("x", 500)), 128)
}

func testFrame(t *testing.T, mode kde.Mode) Frame {
	t.Helper()
	cfg := kde.DefaultConfig()
	cfg.GridSize = 8
	events := []risk.Event{
		{ID: "evt_a", X: 20, Y: 30, T: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC), Level: risk.LevelCritical, Dimension: risk.DimensionTime},
		{ID: "evt_b", X: 70, Y: 80, T: time.Date(2026, 5, 4, 22, 0, 0, 0, time.UTC), Level: risk.LevelHigh, Dimension: risk.DimensionBehavior},
	}
	return Frame{
		Name:   "riskmap " + mode.String(),
		Grid:   kde.Evaluate(risk.Points(events), cfg, mode),
		Config: cfg,
		Events: events,
	}
}

func TestWriter_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := &Writer{Dir: dir}

	for _, mode := range []kde.Mode{kde.Mode2D, kde.Mode3D} {
		paths, err := w.Write(testFrame(t, mode))
		require.NoError(t, err)
		require.Len(t, paths, 2)

		png, err := os.ReadFile(paths[0])
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))

		page, err := os.ReadFile(paths[1])
		require.NoError(t, err)
		if mode == kde.Mode3D {
			assert.Contains(t, string(page), "surface")
		} else {
			assert.Contains(t, string(page), "heatmap")
		}
	}

	assert.FileExists(t, filepath.Join(dir, "riskmap_2d.png"))
	assert.FileExists(t, filepath.Join(dir, "riskmap_3d.html"))
}

func TestWriter_Rejects(t *testing.T) {
	allowed := t.TempDir()
	w := &Writer{Dir: filepath.Join(allowed, "..", "nope"), Allowed: []string{allowed}}
	_, err := w.Write(testFrame(t, kde.Mode2D))
	assert.Error(t, err)

	w = &Writer{Dir: allowed}
	_, err = w.Write(Frame{Name: "empty"})
	assert.Error(t, err)
}
