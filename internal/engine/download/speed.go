package download

import (
	"sync"
	"sync/atomic"
	"time"

	"go.trai.ch/depot/internal/core/domain"
)

// SpeedMeter counts transferred bytes and emits one sample per interval to its subscribers.
// Intervals without traffic emit nothing.
type SpeedMeter struct {
	interval time.Duration
	bytes    atomic.Int64

	mu     sync.Mutex
	subs   []func(domain.SpeedSample)
	ticker *time.Ticker
	stopCh chan struct{}
	closed bool
}

// NewSpeedMeter starts a meter. Call Close to stop its ticker.
func NewSpeedMeter(interval time.Duration) *SpeedMeter {
	if interval <= 0 {
		interval = domain.DefaultSpeedInterval
	}
	m := &SpeedMeter{
		interval: interval,
		ticker:   time.NewTicker(interval),
		stopCh:   make(chan struct{}),
	}
	go m.run()
	return m
}

// Write counts p as transferred.
func (m *SpeedMeter) Write(p []byte) (int, error) {
	m.bytes.Add(int64(len(p)))
	return len(p), nil
}

// Subscribe registers fn for every future sample. Subscribers must not block.
func (m *SpeedMeter) Subscribe(fn func(domain.SpeedSample)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Close stops the ticker and emits the remainder.
func (m *SpeedMeter) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.stopCh)
	m.mu.Unlock()

	m.emit()
	return nil
}

func (m *SpeedMeter) run() {
	for {
		select {
		case <-m.ticker.C:
			m.emit()
		case <-m.stopCh:
			m.ticker.Stop()
			return
		}
	}
}

func (m *SpeedMeter) emit() {
	n := m.bytes.Swap(0)
	if n == 0 {
		return
	}

	m.mu.Lock()
	subs := make([]func(domain.SpeedSample), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	sample := domain.SpeedSample{Bytes: n, Interval: m.interval}
	for _, fn := range subs {
		fn(sample)
	}
}
