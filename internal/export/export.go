// Package export writes density frames to disk as PNG images and standalone
// chart pages. Output paths are confined to the working directory or the
// system temp directory.
package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/riskmap/internal/kde"
	"github.com/banshee-data/riskmap/internal/render"
	"github.com/banshee-data/riskmap/internal/risk"
)

// AllowedDirs returns the directories export may write under.
func AllowedDirs() ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return []string{os.TempDir(), cwd}, nil
}

// ValidatePath reports an error unless path resolves inside one of dirs.
// Symlinks are resolved on the longest existing prefix of path, so a link
// pointing elsewhere cannot be used to escape.
func ValidatePath(path string, dirs []string) error {
	if len(dirs) == 0 {
		return fmt.Errorf("no allowed directories specified")
	}
	target, err := canonical(path)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		base, err := filepath.EvalSymlinks(abs)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(base, target)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel) {
			return nil
		}
	}
	return fmt.Errorf("export path %s must be within one of %v", path, dirs)
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	// Walk up to the first existing ancestor and re-attach the rest.
	for dir := abs; ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest), nil
		}
		if filepath.Dir(dir) == dir {
			return abs, nil
		}
	}
}

// SanitizeName makes s safe to use as a file name stem: runs of anything
// other than ASCII letters, digits, '.', '_' or '-' become one underscore,
// the result is capped at 128 bytes and never empty.
func SanitizeName(s string) string {
	const maxLen = 128
	var b strings.Builder
	under := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-'
		switch {
		case ok:
			b.WriteRune(r)
			under = false
		case !under:
			b.WriteByte('_')
			under = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// Frame is what gets written for one projection.
type Frame struct {
	Name   string
	Grid   *kde.Grid
	Config kde.Config
	Events []risk.Event
}

// Writer writes frames into Dir.
type Writer struct {
	Dir     string
	Allowed []string // nil uses AllowedDirs
	Options render.Options
}

// Write renders f as <name>.png plus <name>.html (heatmap for 2-D grids,
// surface for 3-D) and returns the paths written.
func (w *Writer) Write(f Frame) ([]string, error) {
	if f.Grid == nil {
		return nil, fmt.Errorf("export %q: no grid", f.Name)
	}
	allowed := w.Allowed
	if allowed == nil {
		var err error
		if allowed, err = AllowedDirs(); err != nil {
			return nil, err
		}
	}
	if err := ValidatePath(w.Dir, allowed); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	stem := filepath.Join(w.Dir, SanitizeName(f.Name))

	var png bytes.Buffer
	if err := render.WritePNG(&png, f.Grid, f.Config, f.Events, 0, 0); err != nil {
		return nil, fmt.Errorf("render png: %w", err)
	}

	var page bytes.Buffer
	var err error
	if f.Grid.Mode == kde.Mode3D {
		err = render.SurfacePage(&page, f.Grid, w.Options)
	} else {
		err = render.HeatmapPage(&page, f.Grid, f.Config, f.Events, w.Options)
	}
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}

	written := make([]string, 0, 2)
	for _, out := range []struct {
		path string
		data []byte
	}{
		{stem + ".png", png.Bytes()},
		{stem + ".html", page.Bytes()},
	} {
		if err := os.WriteFile(out.path, out.data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", out.path, err)
		}
		written = append(written, out.path)
	}
	return written, nil
}
