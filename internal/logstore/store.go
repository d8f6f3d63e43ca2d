// Package logstore keeps one append-only, timestamped text log per server.
package logstore

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Log lines are stamped in a fixed UTC+7 zone regardless of the host zone.
var logZone = time.FixedZone("UTC+7", 7*60*60)

type Store struct {
	dir   string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating logs directory: %w", err)
	}
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *Store) filePath(name string) string {
	return filepath.Join(s.dir, safeFileName(name)+".log")
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

// Append writes one line, prefixed with a fresh timestamp. I/O failures
// are logged and swallowed; a log line is never worth crashing over.
func (s *Store) Append(name, line string) {
	l := s.lockFor(name)
	l.Lock()
	defer l.Unlock()

	f, err := os.OpenFile(s.filePath(name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("logstore: error opening log for %s: %v", name, err)
		return
	}
	defer f.Close()

	stamp := time.Now().In(logZone).Format("2006-01-02 15:04:05")
	if _, err := fmt.Fprintf(f, "%s %s\n", stamp, line); err != nil {
		log.Printf("logstore: error writing log for %s: %v", name, err)
	}
}

// Load returns the stored lines for a server, oldest first. When maxLines
// is positive only the last maxLines lines are returned. A missing or
// unreadable file yields an empty slice.
func (s *Store) Load(name string, maxLines int) []string {
	l := s.lockFor(name)
	l.Lock()
	defer l.Unlock()

	data, err := os.ReadFile(s.filePath(name))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("logstore: error reading log for %s: %v", name, err)
		}
		return nil
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines
}

// Clear removes the log file. Removing a file that does not exist is fine.
func (s *Store) Clear(name string) {
	l := s.lockFor(name)
	l.Lock()
	defer l.Unlock()

	if err := os.Remove(s.filePath(name)); err != nil && !os.IsNotExist(err) {
		log.Printf("logstore: error clearing log for %s: %v", name, err)
	}
}

// Delete is called when a server configuration is removed.
func (s *Store) Delete(name string) {
	s.Clear(name)
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
