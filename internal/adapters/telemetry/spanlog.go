// Package telemetry implements ports.Tracer over OpenTelemetry and bridges finished spans into a
// progress recorder.
package telemetry

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultLineLimit is the number of complete lines that forces an event.
	DefaultLineLimit = 64
	// DefaultLineDelay bounds how long a complete line waits before it is emitted.
	DefaultLineDelay = 50 * time.Millisecond
)

var errSpanLogClosed = errors.New("span log is closed")

// SpanLog turns the bytes written to a span into log events made of whole lines. A trailing
// partial line is held back until it is terminated or the log is closed. It is safe for
// concurrent use.
type SpanLog struct {
	limit int
	delay time.Duration
	emit  func(string)

	mu      sync.Mutex
	lines   []string
	partial []byte
	timer   *time.Timer
	closed  bool
}

// NewSpanLog returns a log calling emit with each batch of lines. Non-positive limits select the
// defaults.
func NewSpanLog(limit int, delay time.Duration, emit func(string)) *SpanLog {
	if limit <= 0 {
		limit = DefaultLineLimit
	}
	if delay <= 0 {
		delay = DefaultLineDelay
	}
	return &SpanLog{limit: limit, delay: delay, emit: emit}
}

// Write splits p into lines. A batch is emitted once limit lines are pending, otherwise a timer
// emits it after delay.
func (l *SpanLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, errSpanLogClosed
	}

	rest := append(l.partial, p...)
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		l.lines = append(l.lines, string(rest[:i+1]))
		rest = rest[i+1:]
	}
	l.partial = bytes.Clone(rest)

	switch {
	case len(l.lines) >= l.limit:
		l.emitLocked(false)
	case len(l.lines) > 0 && l.timer == nil:
		l.timer = time.AfterFunc(l.delay, l.Flush)
	}
	return len(p), nil
}

// Flush emits every complete line.
func (l *SpanLog) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.emitLocked(false)
	}
}

// Close emits everything pending, including an unterminated line.
func (l *SpanLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.emitLocked(true)
	return nil
}

// emitLocked must be called with mu held.
func (l *SpanLog) emitLocked(withPartial bool) {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}

	msg := strings.Join(l.lines, "")
	l.lines = l.lines[:0]
	if withPartial {
		msg += string(l.partial)
		l.partial = nil
	}
	if msg != "" && l.emit != nil {
		l.emit(msg)
	}
}
