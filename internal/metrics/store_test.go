package metrics

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"procpilot/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func sample(ts, cpu, ram float64) domain.MetricSample {
	return domain.MetricSample{Timestamp: ts, CPUPercent: cpu, MemoryMB: ram}
}

func TestAppendAndLoad(t *testing.T) {
	store := newTestStore(t)

	now := float64(time.Now().Unix())
	store.Append("web", sample(now, 10, 100))
	store.Append("web", sample(now+1, 20, 110))

	samples := store.Load("web", 0, 0)
	require.Len(t, samples, 2)
	require.Equal(t, 10.0, samples[0].CPUPercent)
	require.Equal(t, 110.0, samples[1].MemoryMB)
}

func TestLoadBounds(t *testing.T) {
	store := newTestStore(t)

	for _, ts := range []float64{10, 20, 30} {
		store.Append("web", sample(ts, 1, 1))
	}

	samples := store.Load("web", 15, 25)
	require.Len(t, samples, 1)
	require.Equal(t, 20.0, samples[0].Timestamp)

	// Bounds are inclusive.
	require.Len(t, store.Load("web", 10, 30), 3)

	// Zero disables a bound.
	require.Len(t, store.Load("web", 25, 0), 1)
	require.Len(t, store.Load("web", 0, 15), 1)
}

func TestPruneDropsOldSamples(t *testing.T) {
	store := newTestStore(t)

	now := float64(time.Now().Unix())
	store.Append("web", sample(now-25*3600, 1, 1))
	store.Append("web", sample(now, 2, 2))

	store.Prune("web")

	samples := store.Load("web", 0, 0)
	require.Len(t, samples, 1)
	require.Equal(t, 2.0, samples[0].CPUPercent)
}

func TestPruneAll(t *testing.T) {
	store := newTestStore(t)

	now := float64(time.Now().Unix())
	store.Append("a", sample(now-25*3600, 1, 1))
	store.Append("b", sample(now, 2, 2))

	store.PruneAll()

	require.Empty(t, store.Load("a", 0, 0))
	require.Len(t, store.Load("b", 0, 0), 1)
}

func TestCorruptFileReadsEmpty(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, os.WriteFile(store.filePath("web"), []byte("not json"), 0644))
	require.Empty(t, store.Load("web", 0, 0))

	// The next append overwrites the corrupt file.
	store.Append("web", sample(1, 1, 1))
	require.Len(t, store.Load("web", 0, 0), 1)
}

func TestDeleteIdempotent(t *testing.T) {
	store := newTestStore(t)

	store.Append("web", sample(1, 1, 1))
	store.Delete("web")
	store.Delete("web")

	require.Empty(t, store.Load("web", 0, 0))
}

func TestKeepNewer(t *testing.T) {
	samples := []domain.MetricSample{
		sample(5, 0, 0),
		sample(10, 0, 0),
		sample(15, 0, 0),
	}
	kept := keepNewer(samples, 10)
	require.Len(t, kept, 2)
	require.Equal(t, 10.0, kept[0].Timestamp)
}

func TestLoadDuringAppends(t *testing.T) {
	store := newTestStore(t)

	now := float64(time.Now().Unix())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			store.Append("web", sample(now+float64(i), 1, 1))
		}
	}()

	// Reads are serialized with the rewrite, so a reader never observes
	// a truncated file: the series only ever grows.
	prev := 0
	for {
		select {
		case <-done:
			require.Len(t, store.Load("web", 0, 0), 200)
			return
		default:
			n := len(store.Load("web", 0, 0))
			require.GreaterOrEqual(t, n, prev)
			prev = n
		}
	}
}
