package monitor

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/riskmap/internal/db"
	"github.com/banshee-data/riskmap/internal/metrics"
)

// ANSI escape codes for request logging.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// Store is the persistence the HTTP API reads from. *db.DB satisfies it.
type Store interface {
	SnapshotStore
	RecentSnapshots(limit int) ([]db.DensitySnapshot, error)
	SaveConfigPreset(p db.ConfigPreset) error
	ConfigPreset(name string) (*db.ConfigPreset, error)
	ConfigPresets() ([]db.ConfigPreset, error)
	DeleteConfigPreset(name string) error
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address    string
	Monitor    *Monitor
	Hub        *Hub             // optional; enables /ws
	Store      Store            // optional; enables history and presets
	Metrics    *metrics.Metrics // optional; enables /metrics
	AssetsHost string           // echarts JS host; empty uses the public CDN
}

// WebServer serves the density API, charts and live websocket feed.
type WebServer struct {
	address    string
	monitor    *Monitor
	hub        *Hub
	store      Store
	metrics    *metrics.Metrics
	assetsHost string
	server     *http.Server
}

// NewWebServer creates a new WebServer with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:    config.Address,
		monitor:    config.Monitor,
		hub:        config.Hub,
		store:      config.Store,
		metrics:    config.Metrics,
		assetsHost: config.AssetsHost,
	}

	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           LoggingMiddleware(ws.setupRoutes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return ws
}

// Start begins the HTTP server in a goroutine and blocks until ctx is
// cancelled, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// Close stops the server immediately.
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}

// Handler returns the routed handler, for tests and embedding.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// setupRoutes configures the HTTP routes and handlers
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/{$}", ws.handleIndex)

	mux.HandleFunc("/api/config", ws.handleConfig)
	mux.HandleFunc("/api/filter", ws.handleFilter)
	mux.HandleFunc("/api/mode", ws.handleMode)
	mux.HandleFunc("/api/live", ws.handleLive)
	mux.HandleFunc("/api/reset", ws.handleReset)
	mux.HandleFunc("/api/stats", ws.handleStats)
	mux.HandleFunc("/api/events", ws.handleEvents)
	mux.HandleFunc("/api/events/{id}", ws.handleEvent)
	mux.HandleFunc("/api/grid", ws.handleGrid)
	mux.HandleFunc("/api/grid.png", ws.handleGridPNG)

	mux.HandleFunc("/api/snapshots", ws.handleSnapshots)
	mux.HandleFunc("/api/presets", ws.handlePresets)
	mux.HandleFunc("/api/presets/{name}", ws.handlePreset)
	mux.HandleFunc("/api/presets/{name}/apply", ws.handlePresetApply)

	mux.HandleFunc("/charts/heatmap", ws.handleHeatmapChart)
	mux.HandleFunc("/charts/surface", ws.handleSurfaceChart)

	if ws.metrics != nil {
		mux.Handle("/metrics", ws.metrics.Handler())
	}
	if ws.hub != nil {
		mux.HandleFunc("/ws", ws.hub.ServeWS)
	}

	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack passes through to the underlying writer for websocket upgrades.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration to the
// diag stream.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		diagf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
