package runner

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"sync"
	"time"
	"unicode"
)

const drainInterval = 50 * time.Millisecond

// LogFunc receives one completed log line and whether it came from stderr.
type LogFunc func(line string, isError bool)

// LogReader drains a process's stdout and stderr into line events without
// ever blocking its owner. One pump goroutine per stream performs the
// blocking reads into shared buffers; a drain goroutine cuts completed
// lines out of the buffers on a short interval and emits them.
//
// Stop is synchronous: once it returns, no further events are emitted.
// The pumps themselves may stay blocked on a read until the pipes close
// (they do when the process dies), but they only ever touch the buffers.
type LogReader struct {
	emit LogFunc

	mu     sync.Mutex
	outBuf []byte
	errBuf []byte

	pumps       sync.WaitGroup
	streamsDone chan struct{}
	stopCh      chan struct{}
	drained     chan struct{}
	stopOnce    sync.Once
}

func NewLogReader(stdout, stderr io.Reader, emit LogFunc) *LogReader {
	r := &LogReader{
		emit:        emit,
		streamsDone: make(chan struct{}),
		stopCh:      make(chan struct{}),
		drained:     make(chan struct{}),
	}

	r.pumps.Add(2)
	go r.pump(stdout, &r.outBuf)
	go r.pump(stderr, &r.errBuf)
	go func() {
		r.pumps.Wait()
		close(r.streamsDone)
	}()
	go r.drainLoop()

	return r
}

// StreamsDone is closed once both pipes reached EOF.
func (r *LogReader) StreamsDone() <-chan struct{} {
	return r.streamsDone
}

// Stop tells the drain loop to exit and blocks until it has. The final
// drain pass flushes any buffered complete lines plus trailing partial
// data, so nothing already read is lost.
func (r *LogReader) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	<-r.drained
}

func (r *LogReader) pump(stream io.Reader, buf *[]byte) {
	defer r.pumps.Done()

	reader := bufio.NewReader(stream)
	for {
		chunk, err := reader.ReadBytes('\n')
		if len(chunk) > 0 {
			r.mu.Lock()
			*buf = append(*buf, chunk...)
			r.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (r *LogReader) drainLoop() {
	defer close(r.drained)

	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.drainOnce(true)
			return
		case <-r.streamsDone:
			r.drainOnce(true)
			return
		case <-ticker.C:
			r.drainOnce(false)
		}
	}
}

// drainOnce emits completed lines from both buffers. With flushPartial it
// also emits trailing data that never got a line break (stream closed
// mid-line).
func (r *LogReader) drainOnce(flushPartial bool) {
	type pending struct {
		line    string
		isError bool
	}
	var out []pending

	r.mu.Lock()
	for _, stream := range []struct {
		buf     *[]byte
		isError bool
	}{{&r.outBuf, false}, {&r.errBuf, true}} {
		for {
			idx := bytes.IndexByte(*stream.buf, '\n')
			if idx < 0 {
				break
			}
			line := decodeLine((*stream.buf)[:idx])
			*stream.buf = (*stream.buf)[idx+1:]
			if line != "" {
				out = append(out, pending{line, stream.isError})
			}
		}
		if flushPartial && len(*stream.buf) > 0 {
			line := decodeLine(*stream.buf)
			*stream.buf = nil
			if line != "" {
				out = append(out, pending{line, stream.isError})
			}
		}
	}
	r.mu.Unlock()

	for _, p := range out {
		r.emit(p.line, p.isError)
	}
}

// decodeLine turns raw bytes into a trimmed string, replacing invalid
// UTF-8 rather than failing.
func decodeLine(raw []byte) string {
	line := strings.ToValidUTF8(string(raw), "�")
	return strings.TrimRightFunc(line, unicode.IsSpace)
}
