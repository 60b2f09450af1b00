package usecase

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

type StatusKind string

const (
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
	StatusInfo    StatusKind = "info"
)

type StatusMessage struct {
	Kind StatusKind
	Text string
}

// DefaultStatusTTL is how long a status message stays visible.
const DefaultStatusTTL = 3 * time.Second

// StatusBar holds at most one transient message. Showing a new message
// replaces the current one and re-arms the dismissal timer.
type StatusBar struct {
	mu       sync.Mutex
	clock    clock.Clock
	ttl      time.Duration
	current  *StatusMessage
	timer    clock.Timer
	seq      uint64
	disposed bool
	onChange func(*StatusMessage)
}

func NewStatusBar(clk clock.Clock, ttl time.Duration) *StatusBar {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusBar{clock: clk, ttl: ttl}
}

// OnChange registers a callback invoked with the new message, or nil when
// the message is dismissed. It runs without the bar's lock held.
func (b *StatusBar) OnChange(fn func(*StatusMessage)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

func (b *StatusBar) Show(kind StatusKind, text string) {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return
	}
	b.stopTimer()
	msg := &StatusMessage{Kind: kind, Text: text}
	b.current = msg
	b.seq++
	seq := b.seq
	b.timer = b.clock.AfterFunc(b.ttl, func() { b.expire(seq) })
	notify := b.onChange
	b.mu.Unlock()

	if notify != nil {
		notify(msg)
	}
}

// ClearErrors dismisses the current message if it is an error.
func (b *StatusBar) ClearErrors() {
	b.mu.Lock()
	if b.current == nil || b.current.Kind != StatusError {
		b.mu.Unlock()
		return
	}
	b.stopTimer()
	b.current = nil
	b.seq++
	notify := b.onChange
	b.mu.Unlock()

	if notify != nil {
		notify(nil)
	}
}

func (b *StatusBar) Current() (StatusMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return StatusMessage{}, false
	}
	return *b.current, true
}

// Dispose stops the pending timer. Later Show calls are ignored.
func (b *StatusBar) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopTimer()
	b.disposed = true
	b.current = nil
}

func (b *StatusBar) expire(seq uint64) {
	b.mu.Lock()
	if b.seq != seq || b.disposed {
		b.mu.Unlock()
		return
	}
	b.current = nil
	b.timer = nil
	notify := b.onChange
	b.mu.Unlock()

	if notify != nil {
		notify(nil)
	}
}

func (b *StatusBar) stopTimer() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
