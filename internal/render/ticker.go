package render

import (
	"sync"
	"time"
)

// Ticker schedules frames. The loop renders one frame per value received on
// C and calls Stop when it exits.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TimeTicker fires on the wall clock.
type TimeTicker struct {
	t *time.Ticker
}

// NewTimeTicker creates a wall clock ticker firing every d.
func NewTimeTicker(d time.Duration) *TimeTicker {
	return &TimeTicker{t: time.NewTicker(d)}
}

func (t *TimeTicker) C() <-chan time.Time { return t.t.C }

func (t *TimeTicker) Stop() { t.t.Stop() }

// ManualTicker delivers ticks only when Tick is called, so frames can be
// driven deterministically.
type ManualTicker struct {
	ch   chan time.Time
	done chan struct{}
	once sync.Once
}

// NewManualTicker creates a ManualTicker.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{
		ch:   make(chan time.Time),
		done: make(chan struct{}),
	}
}

func (m *ManualTicker) C() <-chan time.Time { return m.ch }

// Tick hands t to the loop and blocks until the loop accepts it. It returns
// false once the ticker is stopped. Because the loop accepts a tick only
// between frames, a returning Tick also means the previous frame finished.
func (m *ManualTicker) Tick(t time.Time) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.ch <- t:
		return true
	case <-m.done:
		return false
	}
}

// Stop makes every pending and future Tick return false.
func (m *ManualTicker) Stop() {
	m.once.Do(func() { close(m.done) })
}
