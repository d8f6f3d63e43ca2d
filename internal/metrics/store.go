// Package metrics persists per-server time series as JSON files of
// [timestamp, cpu_percent, ram_mb] triples, with bounded retention.
package metrics

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"procpilot/internal/domain"
)

// DefaultMaxAge is how long samples survive on disk.
const DefaultMaxAge = 24 * time.Hour

// Rewriting the whole file on every append is cheap, but filtering old
// samples is only done every pruneEvery appends to amortize the scan.
const pruneEvery = 100

type Store struct {
	dir    string
	maxAge time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating metrics directory: %w", err)
	}
	return &Store{
		dir:    dir,
		maxAge: DefaultMaxAge,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) filePath(name string) string {
	return filepath.Join(s.dir, safeFileName(name)+".json")
}

func (s *Store) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// readSeries loads the current series. A corrupt or unreadable file is
// treated as empty; it will be overwritten by the next successful write.
func (s *Store) readSeries(name string) []domain.MetricSample {
	data, err := os.ReadFile(s.filePath(name))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("metrics: error reading series for %s: %v", name, err)
		}
		return nil
	}
	var samples []domain.MetricSample
	if err := json.Unmarshal(data, &samples); err != nil {
		log.Printf("metrics: corrupt series for %s, treating as empty: %v", name, err)
		return nil
	}
	return samples
}

func (s *Store) writeSeries(name string, samples []domain.MetricSample) error {
	if samples == nil {
		samples = []domain.MetricSample{}
	}
	data, err := json.Marshal(samples)
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath(name), data, 0644)
}

// Append adds one sample to the series. Every pruneEvery-th append also
// drops samples older than the retention window before writing.
func (s *Store) Append(name string, sample domain.MetricSample) {
	l := s.lockFor(name)
	l.Lock()
	defer l.Unlock()

	samples := append(s.readSeries(name), sample)

	if len(samples)%pruneEvery == 0 {
		cutoff := float64(time.Now().Unix()) - s.maxAge.Seconds()
		samples = keepNewer(samples, cutoff)
	}

	if err := s.writeSeries(name, samples); err != nil {
		log.Printf("metrics: error writing series for %s: %v", name, err)
	}
}

// Load returns the on-disk samples for a server, optionally bounded to
// [start, end] inclusive; zero disables a bound. Missing or corrupt files
// yield an empty result.
func (s *Store) Load(name string, start, end float64) []domain.MetricSample {
	l := s.lockFor(name)
	l.Lock()
	defer l.Unlock()

	samples := s.readSeries(name)
	if start == 0 && end == 0 {
		return samples
	}

	out := make([]domain.MetricSample, 0, len(samples))
	for _, sample := range samples {
		if start != 0 && sample.Timestamp < start {
			continue
		}
		if end != 0 && sample.Timestamp > end {
			continue
		}
		out = append(out, sample)
	}
	return out
}

// Prune rewrites the series keeping only samples newer than now-maxAge.
// Nothing is written when nothing aged out.
func (s *Store) Prune(name string) {
	s.PruneWithAge(name, s.maxAge)
}

func (s *Store) PruneWithAge(name string, maxAge time.Duration) {
	l := s.lockFor(name)
	l.Lock()
	defer l.Unlock()

	samples := s.readSeries(name)
	if samples == nil {
		return
	}

	cutoff := float64(time.Now().Unix()) - maxAge.Seconds()
	kept := keepNewer(samples, cutoff)
	if len(kept) == len(samples) {
		return
	}

	if err := s.writeSeries(name, kept); err != nil {
		log.Printf("metrics: error pruning series for %s: %v", name, err)
	}
}

// PruneAll applies retention to every series file in the directory.
func (s *Store) PruneAll() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Printf("metrics: error listing metrics directory: %v", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		s.Prune(strings.TrimSuffix(entry.Name(), ".json"))
	}
}

// Delete removes the series file. Idempotent.
func (s *Store) Delete(name string) {
	l := s.lockFor(name)
	l.Lock()
	defer l.Unlock()

	if err := os.Remove(s.filePath(name)); err != nil && !os.IsNotExist(err) {
		log.Printf("metrics: error deleting series for %s: %v", name, err)
	}
}

func keepNewer(samples []domain.MetricSample, cutoff float64) []domain.MetricSample {
	kept := samples[:0:0]
	for _, sample := range samples {
		if sample.Timestamp >= cutoff {
			kept = append(kept, sample)
		}
	}
	return kept
}

func safeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
}
