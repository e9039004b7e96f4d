// Package generator produces abnormal access events for the live buffer.
package generator

import (
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/riskmap/internal/kde"
	"github.com/banshee-data/riskmap/internal/risk"
)

// Source yields abnormal events. Implementations must be safe for concurrent
// use.
type Source interface {
	// Next returns one event observed at or before now.
	Next(now time.Time) risk.Event

	// Initial returns n events used to seed an empty buffer.
	Initial(now time.Time, n int) []risk.Event
}

// AbnormalType is one detector rule the mock source draws from.
type AbnormalType struct {
	Code      string
	Name      string
	Dimension risk.Dimension
	Level     risk.Level
}

// AbnormalTypes is the rule catalogue sampled uniformly by Mock.
var AbnormalTypes = []AbnormalType{
	{"T1", "Off-hours access", risk.DimensionTime, risk.LevelHigh},
	{"T2", "Abnormal login frequency", risk.DimensionTime, risk.LevelMedium},
	{"B1", "Bulk archive download", risk.DimensionBehavior, risk.LevelCritical},
	{"B2", "Operation path jump", risk.DimensionBehavior, risk.LevelMedium},
	{"S1", "Core archive privilege overreach", risk.DimensionSensitivity, risk.LevelCritical},
	{"S2", "Sensitive keyword search", risk.DimensionSensitivity, risk.LevelHigh},
	{"C1", "Cross-region coordinated operation", risk.DimensionCombined, risk.LevelCritical},
}

// Users is the pool of operator accounts attached to mock events.
var Users = []string{"Zhang San", "Li Si", "Wang Wu", "Admin_01", "Auditor_X"}

const (
	clusterProbability = 0.6
	clusterSpread      = 15.0 // full width; points land within ±7.5 of the centre
	terminalBase       = 100
	terminalCount      = 10
)

// Mock generates events clustered around two hot zones on each axis:
// x around 20 or 70, y around 30 or 80. The rest are uniform over
// [0,100]². Timestamps are uniform over the trailing window.
type Mock struct {
	mu          sync.Mutex
	rng         *rand.Rand
	ids         io.Reader
	windowHours float64
}

// NewMock returns a Mock whose output is fully determined by seed.
// windowHours bounds how far back generated timestamps may fall; values <= 0
// use 24.
func NewMock(seed uint64, windowHours float64) *Mock {
	var key [32]byte
	for i := 0; i < 8; i++ {
		key[i] = byte(seed >> (8 * i))
	}
	src := rand.NewChaCha8(key)
	m := &Mock{rng: rand.New(src), ids: src}
	m.SetWindowHours(windowHours)
	return m
}

// SetWindowHours changes the timestamp horizon for subsequent events.
// Non-positive values use 24; values past kde.MaxTimeWindowHours are capped.
func (m *Mock) SetWindowHours(h float64) {
	if !(h > 0) {
		h = 24
	}
	h = min(h, kde.MaxTimeWindowHours)
	m.mu.Lock()
	m.windowHours = h
	m.mu.Unlock()
}

// Next implements Source.
func (m *Mock) Next(now time.Time) risk.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextLocked(now)
}

// Initial implements Source.
func (m *Mock) Initial(now time.Time, n int) []risk.Event {
	if n <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]risk.Event, n)
	for i := range events {
		events[i] = m.nextLocked(now)
	}
	return events
}

func (m *Mock) nextLocked(now time.Time) risk.Event {
	typ := AbnormalTypes[m.rng.IntN(len(AbnormalTypes))]

	inCluster := m.rng.Float64() < clusterProbability
	cx := 20.0
	if m.rng.Float64() < 0.5 {
		cx = 70
	}
	cy := 30.0
	if m.rng.Float64() < 0.5 {
		cy = 80
	}
	var x, y float64
	if inCluster {
		x = cx + (m.rng.Float64()-0.5)*clusterSpread
		y = cy + (m.rng.Float64()-0.5)*clusterSpread
	} else {
		x = m.rng.Float64() * 100
		y = m.rng.Float64() * 100
	}

	age := time.Duration(m.rng.Float64() * m.windowHours * float64(time.Hour))
	user := Users[m.rng.IntN(len(Users))]
	terminal := fmt.Sprintf("Terminal-%d", terminalBase+m.rng.IntN(terminalCount))

	return risk.Event{
		ID:        "evt_" + m.newID(),
		X:         x,
		Y:         y,
		T:         now.Add(-age),
		Type:      typ.Name,
		Dimension: typ.Dimension,
		Level:     typ.Level,
		User:      user,
		Terminal:  terminal,
		Details:   fmt.Sprintf("Detected abnormal %s (%s) at the reported coordinates. Potential security breach.", typ.Name, typ.Code),
	}
}

func (m *Mock) newID() string {
	id, err := uuid.NewRandomFromReader(m.ids)
	if err != nil {
		// ChaCha8.Read never fails.
		panic(err)
	}
	return id.String()
}
