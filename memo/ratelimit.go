package memo

import (
	"sync"
	"time"
)

// Debounce returns a wrapper that calls fn once calls stop arriving for wait.
// Each call restarts the wait and replaces the pending argument.
func Debounce[T any](fn func(T), wait time.Duration, opts ...Option) *Debounced[T] {
	return &Debounced[T]{
		fn:    fn,
		wait:  wait,
		clock: newOptions(opts).clock,
		m:     &sync.Mutex{},
	}
}

// Debounced is a debounced function
type Debounced[T any] struct {
	fn    func(T)
	wait  time.Duration
	clock Clock
	m     *sync.Mutex
	timer Timer
	seq   uint64
}

// Call schedules fn(arg) after the quiet period, cancelling any pending call
func (d *Debounced[T]) Call(arg T) {
	d.m.Lock()
	defer d.m.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = d.clock.AfterFunc(d.wait, func() {
		d.fire(seq, arg)
	})
}

// fire runs fn unless a newer call or Stop superseded seq
func (d *Debounced[T]) fire(seq uint64, arg T) {
	d.m.Lock()
	if seq != d.seq {
		d.m.Unlock()
		return
	}
	d.timer = nil
	d.m.Unlock()

	d.fn(arg)
}

// Pending reports whether a call is scheduled
func (d *Debounced[T]) Pending() bool {
	d.m.Lock()
	defer d.m.Unlock()
	return d.timer != nil
}

// Stop cancels the pending call, if any
func (d *Debounced[T]) Stop() {
	d.m.Lock()
	defer d.m.Unlock()

	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Throttle returns a wrapper that calls fn at most once per limit.
// The first call goes through immediately, calls inside the window are dropped.
func Throttle[T any](fn func(T), limit time.Duration, opts ...Option) *Throttled[T] {
	return &Throttled[T]{
		fn:    fn,
		limit: limit,
		clock: newOptions(opts).clock,
		m:     &sync.Mutex{},
	}
}

// Throttled is a throttled function
type Throttled[T any] struct {
	fn      func(T)
	limit   time.Duration
	clock   Clock
	m       *sync.Mutex
	last    time.Time
	started bool
}

// Call runs fn(arg) unless the previous call was less than limit ago.
// It reports whether fn ran.
func (t *Throttled[T]) Call(arg T) bool {
	t.m.Lock()
	now := t.clock.Now()
	if t.started && now.Sub(t.last) < t.limit {
		t.m.Unlock()
		return false
	}
	t.started = true
	t.last = now
	t.m.Unlock()

	t.fn(arg)
	return true
}
