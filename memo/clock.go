package memo

import "time"

// Clock is the time source of a cache or rate limiter
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending call scheduled by a Clock
type Timer interface {
	// Stop prevents the call from firing, it reports whether the call was still pending
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures a Cache, Debounced or Throttled
type Option func(*options)

type options struct {
	ttl   time.Duration
	clock Clock
}

func newOptions(opts []Option) *options {
	o := &options{
		ttl:   DefaultTTL,
		clock: realClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithTTL sets the default time to live of cache entries
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock sets the clock, mostly useful in tests
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}
