package buffer

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/riskmap/internal/risk"
)

var baseTime = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func event(i int, t time.Time) risk.Event {
	return risk.Event{ID: fmt.Sprintf("evt_%04d", i), X: float64(i % 100), Y: 50, T: t, Level: risk.LevelHigh}
}

func TestBuffer_CapacityKeepsMostRecent(t *testing.T) {
	b := New(DefaultCapacity)
	displaced := 0
	for i := 0; i < 1200; i++ {
		displaced += b.Ingest(event(i, baseTime.Add(time.Duration(i)*time.Second)))
	}
	assert.Equal(t, 200, displaced)

	aged, trimmed := b.Evict(baseTime.Add(1200*time.Second), 24)
	assert.Zero(t, aged)
	assert.Zero(t, trimmed)

	snap := b.Snapshot()
	require.Len(t, snap, 1000)
	for k, e := range snap {
		require.Equal(t, fmt.Sprintf("evt_%04d", k+200), e.ID, "position %d", k)
	}
}

func TestBuffer_EvictBoundary(t *testing.T) {
	const window = 2.0
	now := baseTime
	windowDur := time.Duration(window * float64(time.Hour))

	b := New(DefaultCapacity)
	b.Ingest(risk.Event{ID: "too-old", T: now.Add(-windowDur - time.Millisecond)})
	b.Ingest(risk.Event{ID: "exactly", T: now.Add(-windowDur)})
	b.Ingest(risk.Event{ID: "inside", T: now.Add(-windowDur + time.Millisecond)})
	b.Ingest(risk.Event{ID: "fresh", T: now})

	aged, _ := b.Evict(now, window)
	assert.Equal(t, 2, aged)

	got := b.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "inside", got[0].ID)
	assert.Equal(t, "fresh", got[1].ID)
}

func TestBuffer_EvictHugeWindowKeepsEvents(t *testing.T) {
	for _, window := range []float64{1e16, math.Inf(1), math.MaxFloat64} {
		b := New(DefaultCapacity)
		b.Ingest(risk.Event{ID: "fresh", T: baseTime})
		b.Ingest(risk.Event{ID: "old", T: baseTime.Add(-100 * 365 * 24 * time.Hour)})

		aged, trimmed := b.Evict(baseTime, window)
		assert.Zero(t, aged, "window %g", window)
		assert.Zero(t, trimmed)
		assert.Equal(t, 2, b.Len())
	}
}

func TestWindowMillis(t *testing.T) {
	assert.Equal(t, int64(3_600_000), windowMillis(1))
	assert.Equal(t, int64(1_800_000), windowMillis(0.5))
	assert.Equal(t, int64(math.MaxInt64), windowMillis(1e16))
	assert.Equal(t, int64(math.MaxInt64), windowMillis(math.NaN()))
}

func TestBuffer_EvictFractionalWindow(t *testing.T) {
	b := New(10)
	b.Ingest(risk.Event{ID: "old", T: baseTime.Add(-91 * time.Minute)})
	b.Ingest(risk.Event{ID: "new", T: baseTime.Add(-89 * time.Minute)})
	aged, _ := b.Evict(baseTime, 1.5)
	assert.Equal(t, 1, aged)
	assert.Equal(t, "new", b.Snapshot()[0].ID)
}

func TestBuffer_IngestNoDedup(t *testing.T) {
	b := New(10)
	e := event(1, baseTime)
	b.Ingest(e)
	b.Ingest(e)
	assert.Equal(t, 2, b.Len())
}

func TestBuffer_SnapshotIsCopy(t *testing.T) {
	b := New(10)
	b.Ingest(event(1, baseTime))
	snap := b.Snapshot()
	snap[0].ID = "mutated"
	assert.Equal(t, "evt_0001", b.Snapshot()[0].ID)
}

func TestBuffer_Reset(t *testing.T) {
	b := New(3)
	b.Ingest(event(99, baseTime))

	trimmed := b.Reset([]risk.Event{event(1, baseTime), event(2, baseTime), event(3, baseTime), event(4, baseTime)})
	assert.Equal(t, 1, trimmed)

	got := b.Snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, "evt_0002", got[0].ID)
	assert.Equal(t, "evt_0004", got[2].ID)

	b.Reset(nil)
	assert.Zero(t, b.Len())
}

func TestBuffer_Find(t *testing.T) {
	b := New(10)
	b.Ingest(risk.Event{ID: "x", User: "first"})
	b.Ingest(risk.Event{ID: "x", User: "second"})

	e, ok := b.Find("x")
	require.True(t, ok)
	assert.Equal(t, "second", e.User)

	_, ok = b.Find("missing")
	assert.False(t, ok)
}

func TestNew_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0).Capacity())
	assert.Equal(t, 5, New(5).Capacity())
}

func TestBuffer_SetCapacity(t *testing.T) {
	b := New(10)
	for i := 0; i < 10; i++ {
		b.Ingest(event(i, baseTime))
	}

	assert.Equal(t, 0, b.SetCapacity(0), "invalid capacity is ignored")
	assert.Equal(t, 10, b.Capacity())

	assert.Equal(t, 6, b.SetCapacity(4))
	snap := b.Snapshot()
	require.Len(t, snap, 4)
	assert.Equal(t, "evt_0006", snap[0].ID)
	assert.Equal(t, "evt_0009", snap[3].ID)

	assert.Equal(t, 0, b.SetCapacity(20))
	assert.Equal(t, 4, b.Len())
}

func TestBuffer_ConcurrentUse(t *testing.T) {
	b := New(50)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b.Ingest(event(w*1000+i, baseTime.Add(time.Duration(i)*time.Second)))
				if i%10 == 0 {
					b.Evict(baseTime.Add(time.Hour), 24)
					_ = b.Snapshot()
				}
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 50, b.Len())
}
