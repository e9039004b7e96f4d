// Package monitor runs the live risk-density loop: it feeds generated events
// into the buffer, ages them out, recomputes the density grid on every
// trigger and serves the result over HTTP and websocket.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/banshee-data/riskmap/internal/buffer"
	"github.com/banshee-data/riskmap/internal/config"
	"github.com/banshee-data/riskmap/internal/db"
	"github.com/banshee-data/riskmap/internal/generator"
	"github.com/banshee-data/riskmap/internal/kde"
	"github.com/banshee-data/riskmap/internal/metrics"
	"github.com/banshee-data/riskmap/internal/risk"
	"github.com/banshee-data/riskmap/internal/timeutil"
)

// DefaultSnapshotKeep bounds the persisted evaluation history.
const DefaultSnapshotKeep = 10000

// pruneEvery is how many snapshot inserts happen between prunes.
const pruneEvery = 100

// SnapshotStore persists evaluation summaries. *db.DB satisfies it.
type SnapshotStore interface {
	InsertSnapshot(s *db.DensitySnapshot) error
	PruneSnapshots(keep int) (int64, error)
}

// windowSetter is implemented by sources whose timestamp horizon follows
// the configured window.
type windowSetter interface {
	SetWindowHours(h float64)
}

// Frame is one recomputed density surface with the data it was computed
// from. Frames are immutable once published.
type Frame struct {
	Seq        uint64       `json:"seq"`
	Taken      time.Time    `json:"taken"`
	Mode       kde.Mode     `json:"mode"`
	Config     kde.Config   `json:"config"`
	Filter     risk.Filter  `json:"filter"`
	Grid       *kde.Grid    `json:"grid"`
	Summary    kde.Summary  `json:"summary"`
	Events     []risk.Event `json:"events"`
	Stats      risk.Stats   `json:"stats"`
	BufferSize int          `json:"bufferSize"`
	Live       bool         `json:"live"`
}

// Config wires a Monitor.
type Config struct {
	Settings     *config.KDEConfig // nil uses the defaults
	Source       generator.Source  // required
	Clock        timeutil.Clock    // nil uses the wall clock
	Store        SnapshotStore     // optional
	Metrics      *metrics.Metrics  // optional
	Mode         kde.Mode          // initial projection
	SnapshotKeep int               // <= 0 uses DefaultSnapshotKeep
}

// Monitor owns the live buffer and the current projection settings.
type Monitor struct {
	source  generator.Source
	clock   timeutil.Clock
	store   SnapshotStore
	metrics *metrics.Metrics
	keep    int
	buf     *buffer.Buffer

	mu       sync.RWMutex
	settings *config.KDEConfig
	filter   risk.Filter
	mode     kde.Mode
	live     bool
	last     *Frame
	subs     []func(*Frame)

	// evalMu serialises recomputation so frames publish in Seq order.
	evalMu  sync.Mutex
	seq     uint64
	inserts int

	tickReset chan time.Duration
}

// New validates cfg and returns a Monitor with an empty buffer. Call Seed
// to fill it and Run to start the tick loop.
func New(cfg Config) (*Monitor, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("monitor: event source is required")
	}
	settings := cfg.Settings
	if settings == nil {
		settings = config.EmptyKDEConfig()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	keep := cfg.SnapshotKeep
	if keep <= 0 {
		keep = DefaultSnapshotKeep
	}

	m := &Monitor{
		source:    cfg.Source,
		clock:     clock,
		store:     cfg.Store,
		metrics:   cfg.Metrics,
		keep:      keep,
		buf:       buffer.New(settings.GetCapacity()),
		settings:  settings.Merge(nil),
		filter:    risk.DefaultFilter(),
		mode:      cfg.Mode,
		live:      settings.GetLive(),
		tickReset: make(chan time.Duration, 1),
	}
	if ws, ok := m.source.(windowSetter); ok {
		ws.SetWindowHours(settings.GetTimeWindowHours())
	}
	return m, nil
}

// Subscribe registers fn to receive every published frame. fn runs on the
// recomputing goroutine and must not block.
func (m *Monitor) Subscribe(fn func(*Frame)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Run drives Tick from the clock until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	interval := m.Settings().GetTickInterval()
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()
	diagf("live loop started, tick=%s", interval)

	for {
		select {
		case <-ctx.Done():
			diagf("live loop stopped")
			return ctx.Err()
		case d := <-m.tickReset:
			ticker.Reset(d)
			diagf("tick interval now %s", d)
		case <-ticker.C():
			m.Tick()
		}
	}
}

// Seed replaces the buffer contents with the configured number of freshly
// generated events and recomputes. This is the manual refresh.
func (m *Monitor) Seed() *Frame {
	now := m.clock.Now()
	n := m.Settings().GetInitialPoints()
	events := m.source.Initial(now, n)
	trimmed := m.buf.Reset(events)
	m.metrics.RecordIngested(len(events))
	m.metrics.RecordEvicted(metrics.ReasonCapacity, trimmed)
	diagf("buffer reset with %d events (%d trimmed)", len(events), trimmed)
	return m.Recompute()
}

// Tick runs one live step: evict aged events, ingest one event, recompute.
// Eviction runs first so a fresh event always survives the tick that adds
// it. It does nothing while the monitor is paused.
func (m *Monitor) Tick() *Frame {
	m.mu.RLock()
	live := m.live
	window := m.settings.GetTimeWindowHours()
	m.mu.RUnlock()
	if !live {
		return nil
	}

	now := m.clock.Now()
	aged, trimmed := m.buf.Evict(now, window)
	displaced := m.buf.Ingest(m.source.Next(now))

	m.metrics.RecordIngested(1)
	m.metrics.RecordEvicted(metrics.ReasonWindow, aged)
	m.metrics.RecordEvicted(metrics.ReasonCapacity, displaced+trimmed)
	tracef("tick: ingested=1 displaced=%d aged=%d size=%d", displaced+trimmed, aged, m.buf.Len())

	return m.Recompute()
}

// Recompute evaluates the current buffer under the current settings,
// records and publishes the frame, and returns it.
func (m *Monitor) Recompute() *Frame {
	m.evalMu.Lock()
	defer m.evalMu.Unlock()

	m.mu.RLock()
	cfg := m.settings.ToKDE()
	filter := m.filter
	mode := m.mode
	live := m.live
	m.mu.RUnlock()

	m.seq++
	f := m.evaluate(cfg, filter, mode, live, m.seq)

	m.mu.Lock()
	m.last = f
	subs := slices.Clone(m.subs)
	m.mu.Unlock()

	m.persist(f)
	for _, fn := range subs {
		fn(f)
	}
	return f
}

func (m *Monitor) evaluate(cfg kde.Config, filter risk.Filter, mode kde.Mode, live bool, seq uint64) *Frame {
	now := m.clock.Now()
	all := m.buf.Snapshot()
	events := filter.Apply(all)

	start := time.Now()
	grid := kde.Evaluate(risk.Points(events), cfg, mode)
	elapsed := time.Since(start)
	sum := grid.Summary()

	m.metrics.RecordEvaluation(mode.String(), elapsed, sum.Max)
	m.metrics.SetBufferSize(len(all))
	tracef("evaluated seq=%d mode=%s points=%d max=%.4f at (%.1f, %.1f) in %v",
		seq, mode, len(events), sum.Max, sum.MaxA1, sum.MaxA2, elapsed)

	return &Frame{
		Seq:        seq,
		Taken:      now,
		Mode:       mode,
		Config:     cfg,
		Filter:     filter,
		Grid:       grid,
		Summary:    sum,
		Events:     events,
		Stats:      risk.Summarize(events),
		BufferSize: len(all),
		Live:       live,
	}
}

func (m *Monitor) persist(f *Frame) {
	if m.store == nil {
		return
	}
	cfgJSON, err := json.Marshal(config.FromKDE(f.Config))
	if err != nil {
		opsf("encode snapshot config: %v", err)
		return
	}
	s := &db.DensitySnapshot{
		TakenUnixMs: f.Taken.UnixMilli(),
		Mode:        f.Mode.String(),
		PointCount:  len(f.Events),
		GridSize:    f.Grid.GridSize,
		MaxDensity:  f.Summary.Max,
		MaxA1:       f.Summary.MaxA1,
		MaxA2:       f.Summary.MaxA2,
		MeanDensity: f.Summary.Mean,
		Config:      cfgJSON,
	}
	if err := m.store.InsertSnapshot(s); err != nil {
		opsf("persist snapshot seq=%d: %v", f.Seq, err)
		return
	}
	m.inserts++
	if m.inserts%pruneEvery == 0 {
		n, err := m.store.PruneSnapshots(m.keep)
		if err != nil {
			opsf("prune snapshots: %v", err)
			return
		}
		if n > 0 {
			diagf("pruned %d old snapshots", n)
		}
	}
}

// Preview evaluates the buffer in mode without changing state or
// publishing. It is used to serve a projection other than the live one.
func (m *Monitor) Preview(mode kde.Mode) *Frame {
	m.mu.RLock()
	cfg := m.settings.ToKDE()
	filter := m.filter
	live := m.live
	last := m.last
	m.mu.RUnlock()

	if last != nil && last.Mode == mode {
		return last
	}
	return m.evaluate(cfg, filter, mode, live, 0)
}

// SetConfig merges update over the current settings. An invalid result is
// rejected and the current settings stay in force.
func (m *Monitor) SetConfig(update *config.KDEConfig) (*config.KDEConfig, error) {
	m.mu.Lock()
	next := m.settings.Merge(update)
	if err := next.Validate(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if d := next.GetTickInterval(); d != m.settings.GetTickInterval() {
		// Senders hold mu, so the drained slot is free for this send.
		select {
		case <-m.tickReset:
		default:
		}
		m.tickReset <- d
	}
	m.settings = next
	m.live = next.GetLive()
	m.mu.Unlock()

	if trimmed := m.buf.SetCapacity(next.GetCapacity()); trimmed > 0 {
		m.metrics.RecordEvicted(metrics.ReasonCapacity, trimmed)
	}
	if ws, ok := m.source.(windowSetter); ok {
		ws.SetWindowHours(next.GetTimeWindowHours())
	}
	diagf("config updated: bandwidth=%g ws=%g wb=%g wt=%g grid=%d window=%gh",
		next.GetBandwidth(), next.GetWS(), next.GetWB(), next.GetWT(), next.GetGridSize(), next.GetTimeWindowHours())

	m.Recompute()
	return next.Merge(nil), nil
}

// SetFilter replaces the display filter and recomputes.
func (m *Monitor) SetFilter(f risk.Filter) *Frame {
	m.mu.Lock()
	m.filter = f
	m.mu.Unlock()
	return m.Recompute()
}

// SetMode switches the live projection and recomputes.
func (m *Monitor) SetMode(mode kde.Mode) *Frame {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
	return m.Recompute()
}

// SetLive pauses or resumes the tick loop. While paused, Tick neither
// ingests nor evicts.
func (m *Monitor) SetLive(on bool) {
	m.mu.Lock()
	m.live = on
	v := on
	m.settings = m.settings.Merge(&config.KDEConfig{Live: &v})
	m.mu.Unlock()
	diagf("live=%t", on)
}

// Settings returns a copy of the current settings.
func (m *Monitor) Settings() *config.KDEConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.Merge(nil)
}

// Filter returns the current filter.
func (m *Monitor) Filter() risk.Filter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filter
}

// Mode returns the live projection.
func (m *Monitor) Mode() kde.Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// Live reports whether the tick loop is running.
func (m *Monitor) Live() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live
}

// Frame returns the most recently published frame, or nil before the first
// recomputation.
func (m *Monitor) Frame() *Frame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Event looks up a buffered event by ID.
func (m *Monitor) Event(id string) (risk.Event, bool) {
	return m.buf.Find(id)
}

// BufferLen returns the number of buffered events.
func (m *Monitor) BufferLen() int {
	return m.buf.Len()
}
