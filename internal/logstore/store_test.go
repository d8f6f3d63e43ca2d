package logstore

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

var stampRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} `)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestAppendAndLoad(t *testing.T) {
	store := newTestStore(t)

	store.Append("web", "server starting")
	store.Append("web", "listening on port 3000")

	lines := store.Load("web", 0)
	require.Len(t, lines, 2)
	for _, line := range lines {
		require.Regexp(t, stampRe, line)
	}
	require.Contains(t, lines[0], "server starting")
	require.Contains(t, lines[1], "listening on port 3000")
}

func TestLoadTail(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 20; i++ {
		store.Append("web", "line")
	}

	require.Len(t, store.Load("web", 5), 5)
	require.Len(t, store.Load("web", 100), 20)
}

func TestLoadMissing(t *testing.T) {
	store := newTestStore(t)
	require.Empty(t, store.Load("nope", 0))
}

func TestClearIdempotent(t *testing.T) {
	store := newTestStore(t)

	store.Append("web", "something")
	store.Clear("web")
	store.Clear("web")

	require.Empty(t, store.Load("web", 0))
}

func TestSeparateServers(t *testing.T) {
	store := newTestStore(t)

	store.Append("a", "from a")
	store.Append("b", "from b")

	require.Len(t, store.Load("a", 0), 1)
	require.Contains(t, store.Load("b", 0)[0], "from b")
}

func TestSafeFileName(t *testing.T) {
	cases := map[string]string{
		"plain":        "plain",
		"with space":   "with_space",
		"mixed-Ok_99":  "mixed-Ok_99",
		"../etc/evil":  "etcevil",
		"слэш/..\\dot": "dot",
	}
	for in, want := range cases {
		require.Equal(t, want, safeFileName(in), "input %q", in)
	}
}

func TestLoadDuringAppends(t *testing.T) {
	store := newTestStore(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			store.Append("web", "line")
		}
	}()

	// Reads hold the same per-name lock as writes, so a reader only ever
	// sees whole lines and a growing file.
	prev := 0
	for {
		select {
		case <-done:
			require.Len(t, store.Load("web", 0), 200)
			return
		default:
			lines := store.Load("web", 0)
			require.GreaterOrEqual(t, len(lines), prev)
			for _, line := range lines {
				require.Regexp(t, stampRe, line)
			}
			prev = len(lines)
		}
	}
}
