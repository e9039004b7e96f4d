package monitor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/riskmap/internal/config"
	"github.com/banshee-data/riskmap/internal/db"
	"github.com/banshee-data/riskmap/internal/httputil"
	"github.com/banshee-data/riskmap/internal/kde"
	"github.com/banshee-data/riskmap/internal/render"
	"github.com/banshee-data/riskmap/internal/risk"
	"github.com/banshee-data/riskmap/internal/version"
)

const (
	defaultSnapshotLimit = 50
	maxSnapshotLimit     = 1000
	maxPNGPixels         = 4000
)

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":  "ok",
		"version": version.Version,
		"live":    ws.monitor.Live(),
		"events":  ws.monitor.BufferLen(),
	})
}

func (ws *WebServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	f := ws.monitor.Frame()
	seq := uint64(0)
	if f != nil {
		seq = f.Seq
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, indexHTML, html.EscapeString(ws.monitor.Mode().String()), ws.monitor.BufferLen(), seq)
}

const indexHTML = `<!doctype html>
<html><head><title>riskmap</title></head>
<body>
<h1>riskmap</h1>
<p>mode=%s events=%d frame=%d</p>
<ul>
<li><a href="/charts/heatmap">2-D heatmap</a></li>
<li><a href="/charts/surface?mode=3d">3-D surface</a></li>
<li><a href="/api/grid.png">PNG export</a></li>
<li><a href="/api/stats">stats</a> | <a href="/api/config">config</a> | <a href="/api/filter">filter</a> | <a href="/api/snapshots">history</a></li>
</ul>
</body></html>
`

// handleConfig serves GET (current settings, all fields resolved) and PUT
// (partial update merged over the current settings).
func (ws *WebServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, ws.monitor.Settings().Resolved())
	case http.MethodPut, http.MethodPost:
		update := config.EmptyKDEConfig()
		if err := httputil.DecodeJSON(w, r, update); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		next, err := ws.monitor.SetConfig(update)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, next.Resolved())
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

func (ws *WebServer) handleFilter(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, ws.monitor.Filter())
	case http.MethodPut, http.MethodPost:
		var f risk.Filter
		if err := httputil.DecodeJSON(w, r, &f); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		ws.monitor.SetFilter(f)
		httputil.WriteJSONOK(w, ws.monitor.Filter())
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

// handleMode reads or switches the live projection: ?mode=2d|3d.
func (ws *WebServer) handleMode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, map[string]kde.Mode{"mode": ws.monitor.Mode()})
	case http.MethodPut, http.MethodPost:
		mode, err := kde.ParseMode(r.URL.Query().Get("mode"))
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		ws.monitor.SetMode(mode)
		httputil.WriteJSONOK(w, map[string]kde.Mode{"mode": mode})
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

// handleLive pauses or resumes the tick loop: POST ?on=true|false.
func (ws *WebServer) handleLive(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost, http.MethodPut:
		on, err := httputil.QueryBool(r, "on", !ws.monitor.Live())
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		ws.monitor.SetLive(on)
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
		return
	}
	httputil.WriteJSONOK(w, map[string]bool{"live": ws.monitor.Live()})
}

func (ws *WebServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	f := ws.monitor.Seed()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"events": f.BufferSize,
		"seq":    f.Seq,
	})
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	f := ws.monitor.Frame()
	if f == nil {
		httputil.ServiceUnavailable(w, "no frame computed yet")
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"stats":   f.Stats,
		"summary": f.Summary,
		"seq":     f.Seq,
		"taken":   f.Taken,
		"buffer":  f.BufferSize,
	})
}

// handleEvents lists the events behind the latest frame (filtered).
func (ws *WebServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	f := ws.monitor.Frame()
	if f == nil {
		httputil.WriteJSONOK(w, []risk.Event{})
		return
	}
	httputil.WriteJSONOK(w, f.Events)
}

func (ws *WebServer) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	id := r.PathValue("id")
	e, ok := ws.monitor.Event(id)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("event %q not in buffer", id))
		return
	}
	httputil.WriteJSONOK(w, e)
}

// frameFor returns the frame for ?mode=, defaulting to the live mode.
func (ws *WebServer) frameFor(w http.ResponseWriter, r *http.Request) (*Frame, bool) {
	mode := ws.monitor.Mode()
	if s := r.URL.Query().Get("mode"); s != "" {
		m, err := kde.ParseMode(s)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return nil, false
		}
		mode = m
	}
	return ws.monitor.Preview(mode), true
}

func (ws *WebServer) handleGrid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	f, ok := ws.frameFor(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, f)
}

// handleGridPNG renders the grid as a PNG: ?mode=&width=&height= (pixels).
func (ws *WebServer) handleGridPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	f, ok := ws.frameFor(w, r)
	if !ok {
		return
	}
	width, err := httputil.QueryInt(r, "width", 0)
	if err != nil || width < 0 || width > maxPNGPixels {
		httputil.BadRequest(w, fmt.Sprintf("width must be between 0 and %d", maxPNGPixels))
		return
	}
	height, err := httputil.QueryInt(r, "height", 0)
	if err != nil || height < 0 || height > maxPNGPixels {
		httputil.BadRequest(w, fmt.Sprintf("height must be between 0 and %d", maxPNGPixels))
		return
	}

	var buf bytes.Buffer
	// vg renders PNGs at 96 dpi; convert the requested pixels to points.
	err = render.WritePNG(&buf, f.Grid, f.Config, f.Events,
		vg.Length(width)*vg.Inch/96, vg.Length(height)*vg.Inch/96)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func (ws *WebServer) renderOptions(f *Frame) render.Options {
	return render.Options{
		AssetsHost: ws.assetsHost,
		Subtitle:   fmt.Sprintf("frame=%d events=%d max=%.4f", f.Seq, len(f.Events), f.Summary.Max),
	}
}

func (ws *WebServer) handleHeatmapChart(w http.ResponseWriter, r *http.Request) {
	f, ok := ws.frameFor(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.HeatmapPage(&buf, f.Grid, f.Config, f.Events, ws.renderOptions(f)); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (ws *WebServer) handleSurfaceChart(w http.ResponseWriter, r *http.Request) {
	f, ok := ws.frameFor(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.SurfacePage(&buf, f.Grid, ws.renderOptions(f)); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleSnapshots returns recent evaluation summaries: ?limit=N.
func (ws *WebServer) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if ws.store == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return
	}
	limit, err := httputil.QueryInt(r, "limit", defaultSnapshotLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if limit <= 0 || limit > maxSnapshotLimit {
		limit = defaultSnapshotLimit
	}
	snaps, err := ws.store.RecentSnapshots(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("get recent snapshots: %v", err))
		return
	}
	httputil.WriteJSONOK(w, snaps)
}

func (ws *WebServer) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if ws.store == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return
	}
	presets, err := ws.store.ConfigPresets()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, presets)
}

// handlePreset serves GET, PUT (body: KDEConfig, validated on its own)
// and DELETE for one named preset.
func (ws *WebServer) handlePreset(w http.ResponseWriter, r *http.Request) {
	if ws.store == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return
	}
	name := strings.TrimSpace(r.PathValue("name"))

	switch r.Method {
	case http.MethodGet:
		p, err := ws.store.ConfigPreset(name)
		if errors.Is(err, db.ErrNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, p)

	case http.MethodPut, http.MethodPost:
		cfg := config.EmptyKDEConfig()
		if err := httputil.DecodeJSON(w, r, cfg); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if err := cfg.Validate(); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		raw, err := json.Marshal(cfg)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		p := db.ConfigPreset{Name: name, Config: raw, UpdatedUnixMs: ws.monitor.clock.Now().UnixMilli()}
		if err := ws.store.SaveConfigPreset(p); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		diagf("saved preset %q", name)
		httputil.WriteJSONOK(w, p)

	case http.MethodDelete:
		err := ws.store.DeleteConfigPreset(name)
		if errors.Is(err, db.ErrNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handlePresetApply merges a saved preset over the live settings.
func (ws *WebServer) handlePresetApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	if ws.store == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return
	}
	p, err := ws.store.ConfigPreset(r.PathValue("name"))
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	update, err := config.ParseKDEConfig(p.Config)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("stored preset is invalid: %v", err))
		return
	}
	next, err := ws.monitor.SetConfig(update)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	diagf("applied preset %q", p.Name)
	httputil.WriteJSONOK(w, next.Resolved())
}
