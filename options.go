package xeventq

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
)

// DefaultPoolSize is the number of preallocated queue nodes.
const DefaultPoolSize = 100

// options holds configuration for both Queue and Dispatcher; each takes the
// fields it understands.
type options struct {
	poolSize      int
	waker         Waker
	logger        *Logger
	warnRates     map[time.Duration]int
	compress      bool
	errorListener ErrorListener
	netBuffer     int
}

// Option configures a Queue, a Dispatcher or a NetConn.
type Option interface {
	apply(*options) error
}

type optionFunc func(*options) error

func (f optionFunc) apply(opts *options) error { return f(opts) }

// WithPoolSize sets the number of nodes preallocated for the reader. Zero
// sends every node to the heap.
func WithPoolSize(n int) Option {
	return optionFunc(func(opts *options) error {
		if n < 0 {
			return fmt.Errorf("xeventq: invalid pool size %d", n)
		}
		opts.poolSize = n
		return nil
	})
}

// WithWaker installs the capability the reader uses to wake the consumer's
// event loop after each batch.
func WithWaker(w Waker) Option {
	return optionFunc(func(opts *options) error {
		opts.waker = w
		return nil
	})
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(l *Logger) Option {
	return optionFunc(func(opts *options) error {
		opts.logger = l
		return nil
	})
}

// WithWarnRates limits how often each kind of warning is logged, e.g.
// {time.Second: 5, time.Minute: 20}. An empty map disables the limit.
func WithWarnRates(rates map[time.Duration]int) Option {
	return optionFunc(func(opts *options) error {
		if err := CheckWarnRates(rates); err != nil {
			return err
		}
		opts.warnRates = rates
		return nil
	})
}

// CheckWarnRates reports whether rates can limit warnings. Every count and
// duration must be positive, counts must grow with the duration, and the
// effective rate must shrink with it. An empty map is valid.
func CheckWarnRates(rates map[time.Duration]int) (err error) {
	if len(rates) == 0 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("xeventq: invalid warn rates %v", rates)
		}
	}()
	catrate.NewLimiter(rates)
	return nil
}

// WithCompression enables dropping motion and configure events superseded by
// a later event of the same kind. Enabled by default.
func WithCompression(enabled bool) Option {
	return optionFunc(func(opts *options) error {
		opts.compress = enabled
		return nil
	})
}

// WithErrorListener routes protocol errors to l instead of the log.
func WithErrorListener(l ErrorListener) Option {
	return optionFunc(func(opts *options) error {
		opts.errorListener = l
		return nil
	})
}

// WithNetBuffer sets how many decoded packets a NetConn holds before its
// read goroutine blocks.
func WithNetBuffer(n int) Option {
	return optionFunc(func(opts *options) error {
		if n < 1 {
			return fmt.Errorf("xeventq: invalid net buffer %d", n)
		}
		opts.netBuffer = n
		return nil
	})
}

func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		poolSize:  DefaultPoolSize,
		compress:  true,
		netBuffer: 256,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (o *options) log() xlog {
	x := xlog{l: o.logger}
	if len(o.warnRates) != 0 {
		x.limiter = catrate.NewLimiter(o.warnRates)
	}
	return x
}
