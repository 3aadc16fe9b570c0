package debounce

import (
	"sync"
	"time"
)

// DefaultDelay applies when a negative delay is supplied.
const DefaultDelay = 500 * time.Millisecond

// Timer is the handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Option func(*options)

type options struct {
	clock Clock
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// Debouncer holds a raw value and an effective value. The effective value
// only follows the raw value once it has been left alone for the delay.
type Debouncer[T comparable] struct {
	mu       sync.Mutex
	clock    Clock
	delay    time.Duration
	onSettle func(T)

	value      T
	pending    T
	hasPending bool
	timer      Timer
	gen        uint64
	stopped    bool
}

// New builds a debouncer starting at initial. onSettle runs outside the
// debouncer lock every time the effective value changes.
func New[T comparable](delay time.Duration, initial T, onSettle func(T), opts ...Option) *Debouncer[T] {
	if delay < 0 {
		delay = DefaultDelay
	}
	o := options{clock: realClock{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Debouncer[T]{
		clock:    o.clock,
		delay:    delay,
		onSettle: onSettle,
		value:    initial,
	}
}

// Set records v and restarts the wait. Any previously pending value is dropped.
func (d *Debouncer[T]) Set(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopTimerLocked()
	d.gen++
	gen := d.gen
	d.pending = v
	d.hasPending = true
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Value returns the effective value.
func (d *Debouncer[T]) Value() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// Pending reports the value waiting for the delay, if any.
func (d *Debouncer[T]) Pending() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending, d.hasPending
}

// Flush settles the pending value now.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.stopped || !d.hasPending {
		d.mu.Unlock()
		return
	}
	d.stopTimerLocked()
	d.gen++
	d.settleLocked()
}

// Stop cancels any pending value. Nothing is emitted afterwards.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.hasPending = false
	d.gen++
	d.stopTimerLocked()
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen || !d.hasPending {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.settleLocked()
}

// settleLocked expects d.mu held and releases it.
func (d *Debouncer[T]) settleLocked() {
	next := d.pending
	changed := next != d.value
	d.value = next
	d.hasPending = false
	var zero T
	d.pending = zero
	cb := d.onSettle
	d.mu.Unlock()

	if changed && cb != nil {
		cb(next)
	}
}

func (d *Debouncer[T]) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
