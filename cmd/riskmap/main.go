// Command riskmap serves a live risk-density map: generated abnormal-access
// events flow through a sliding buffer and are re-estimated into a 2-D or
// space-time density grid on every tick.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/riskmap/internal/config"
	"github.com/banshee-data/riskmap/internal/db"
	"github.com/banshee-data/riskmap/internal/export"
	"github.com/banshee-data/riskmap/internal/generator"
	"github.com/banshee-data/riskmap/internal/kde"
	"github.com/banshee-data/riskmap/internal/metrics"
	"github.com/banshee-data/riskmap/internal/monitor"
	"github.com/banshee-data/riskmap/internal/render"
	"github.com/banshee-data/riskmap/internal/version"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	dbPath     = flag.String("db", "riskmap.db", "SQLite database for snapshots and presets (empty disables)")
	configPath = flag.String("config", "", "KDE config JSON (default: built-in defaults)")
	seed       = flag.Uint64("seed", 0, "Generator seed (0 uses the current time)")
	mode       = flag.String("mode", "2d", "Initial projection: 2d or 3d")
	assetsHost = flag.String("assets-host", render.DefaultAssetsHost, "Host serving the echarts JS assets")
	debug      = flag.Bool("debug", false, "Enable the diag log stream")
	trace      = flag.Bool("trace", false, "Enable the per-tick trace log stream")
	exportDir  = flag.String("export", "", "Write PNG and chart pages for both projections to this directory and exit")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version.String())
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	startMode, err := kde.ParseMode(*mode)
	if err != nil {
		log.Fatalf("invalid -mode: %v", err)
	}

	var diagW, traceW io.Writer
	if *debug || *trace {
		diagW = os.Stderr
	}
	if *trace {
		traceW = os.Stderr
	}
	monitor.SetLogWriters(os.Stderr, diagW, traceW)
	log.Print(version.String())

	settings := config.EmptyKDEConfig()
	if *configPath != "" {
		settings, err = config.LoadKDEConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		log.Printf("loaded config from %s", *configPath)
	}

	var store *db.DB
	if *dbPath != "" {
		store, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()
	}

	s := *seed
	if s == 0 {
		s = uint64(time.Now().UnixNano())
	}
	log.Printf("generator seed %d", s)

	m := metrics.New()
	cfg := monitor.Config{
		Settings: settings,
		Source:   generator.NewMock(s, settings.GetTimeWindowHours()),
		Metrics:  m,
		Mode:     startMode,
	}
	if store != nil {
		cfg.Store = store
	}
	mon, err := monitor.New(cfg)
	if err != nil {
		log.Fatalf("failed to create monitor: %v", err)
	}

	hub := monitor.NewHub()
	hub.OnConnect(func() *monitor.Message {
		f := mon.Frame()
		if f == nil {
			return nil
		}
		return &monitor.Message{Type: monitor.MessageTypeFrame, Data: f}
	})
	mon.Subscribe(hub.PublishFrame)

	f := mon.Seed()
	log.Printf("seeded %d events, peak density %.4f at (%.1f, %.1f)",
		f.BufferSize, f.Summary.Max, f.Summary.MaxA1, f.Summary.MaxA2)

	if *exportDir != "" {
		if err := exportFrames(mon, *exportDir); err != nil {
			log.Fatalf("export failed: %v", err)
		}
		return
	}

	wsCfg := monitor.WebServerConfig{
		Address:    *listen,
		Monitor:    mon,
		Hub:        hub,
		Metrics:    m,
		AssetsHost: *assetsHost,
	}
	if store != nil {
		wsCfg.Store = store
	}
	server := monitor.NewWebServer(wsCfg)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mon.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("live loop error: %v", err)
		}
		log.Print("live loop terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hub.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("websocket hub error: %v", err)
		}
		log.Print("websocket hub terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx); err != nil {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// exportFrames writes both projections of the current buffer to dir.
func exportFrames(mon *monitor.Monitor, dir string) error {
	w := &export.Writer{Dir: dir, Options: render.Options{AssetsHost: *assetsHost}}
	for _, m := range []kde.Mode{kde.Mode2D, kde.Mode3D} {
		f := mon.Preview(m)
		name := fmt.Sprintf("riskmap-%s-%s", m, f.Taken.UTC().Format("20060102T150405Z"))
		paths, err := w.Write(export.Frame{Name: name, Grid: f.Grid, Config: f.Config, Events: f.Events})
		if err != nil {
			return err
		}
		for _, p := range paths {
			log.Printf("wrote %s", p)
		}
	}
	return nil
}
