package xeventq

import (
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Logger is the structured logger accepted by WithLogger. Any logiface
// backend can be converted with its Logger method.
type Logger = logiface.Logger[logiface.Event]

// xlog is a wrapper around an optional Logger so we can limit how often a
// repeated warning is emitted. The zero value logs nothing.
type xlog struct {
	l       *Logger
	limiter *catrate.Limiter
}

func (x xlog) debug(category string) *logiface.Builder[logiface.Event] {
	return x.l.Debug().Str("category", category)
}

func (x xlog) info(category string) *logiface.Builder[logiface.Event] {
	return x.l.Info().Str("category", category)
}

func (x xlog) err(category string) *logiface.Builder[logiface.Event] {
	return x.l.Err().Str("category", category)
}

// warning returns nil, which logs nothing, once key exceeds the configured
// warning rates.
func (x xlog) warning(category string, key string) *logiface.Builder[logiface.Event] {
	if x.limiter != nil {
		if _, ok := x.limiter.Allow(category + ":" + key); !ok {
			return nil
		}
	}
	return x.l.Warning().Str("category", category)
}
