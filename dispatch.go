package xeventq

import "fmt"

// Listener receives every event that survives filtering and compression,
// exactly once, in queue order. Any response goes back out through the
// connection; nothing is returned to the dispatcher.
type Listener interface {
	HandleEvent(ev *Event, responseType uint8)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ev *Event, responseType uint8)

func (f ListenerFunc) HandleEvent(ev *Event, responseType uint8) { f(ev, responseType) }

// ErrorListener receives protocol errors delivered in the event stream.
type ErrorListener interface {
	HandleError(err *XError)
}

// ProcessFlags control which events TakeFirst and ProcessEvents return.
type ProcessFlags uint8

const (
	AllEvents ProcessFlags = 0
	// ExcludeUserInput sets input events aside until a call without it.
	ExcludeUserInput ProcessFlags = 1 << 0
)

// Dispatcher drains a Queue on the consumer goroutine and routes events to a
// Listener.
type Dispatcher struct {
	queue         *Queue
	listener      Listener
	errorListener ErrorListener
	compress      bool
	log           xlog

	// inputEvents holds user input set aside by ExcludeUserInput. Peeks
	// do not see it.
	inputEvents []*Event

	stats DispatchStats
}

// DispatchStats counts what a Dispatcher did with the events it took.
type DispatchStats struct {
	Dispatched uint64
	Compressed uint64
	Diverted   uint64
	Errors     uint64
}

// NewDispatcher creates a dispatcher that takes events from q and hands them
// to l.
func NewDispatcher(q *Queue, l Listener, opts ...Option) (*Dispatcher, error) {
	if q == nil {
		return nil, ErrNilQueue
	}
	if l == nil {
		return nil, ErrNilListener
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		queue:         q,
		listener:      l,
		errorListener: cfg.errorListener,
		compress:      cfg.compress,
		log:           cfg.log(),
	}, nil
}

// TakeFirst returns the next event to process, or nil.
//
// With ExcludeUserInput, input events are moved to a side buffer until a
// non-input event turns up or the queue is empty. Without it, the side
// buffer is served before the queue.
func (d *Dispatcher) TakeFirst(flags ProcessFlags) *Event {
	if flags&ExcludeUserInput != 0 {
		for {
			ev := d.queue.TakeFirst()
			if ev == nil {
				return nil
			}
			if ev.IsUserInput() {
				d.inputEvents = append(d.inputEvents, ev)
				d.stats.Diverted++
				continue
			}
			return ev
		}
	}
	if len(d.inputEvents) != 0 {
		ev := d.inputEvents[0]
		d.inputEvents[0] = nil
		d.inputEvents = d.inputEvents[1:]
		if len(d.inputEvents) == 0 {
			d.inputEvents = nil
		}
		return ev
	}
	return d.queue.TakeFirst()
}

// ProcessEvents dispatches everything currently available.
//
// A dead transport is fatal: the returned error wraps ErrConnectionBroken
// and nothing is dispatched. Callers are expected to shut down.
func (d *Dispatcher) ProcessEvents(flags ProcessFlags) error {
	if err := d.queue.conn.Err(); err != nil {
		d.log.err("dispatch").Err(err).Log("the X11 connection broke, did the X11 server die?")
		return fmt.Errorf("%w: %w", ErrConnectionBroken, err)
	}

	d.queue.Flush()
	for ev := d.TakeFirst(flags); ev != nil; ev = d.TakeFirst(flags) {
		if ev.Class() == ClassError {
			d.handleError(ev)
			ev.Release()
			continue
		}
		if d.compress && d.compressEvent(ev) {
			d.stats.Compressed++
			ev.Release()
			continue
		}
		d.dispatch(ev)
		d.queue.Flush()
	}
	return nil
}

func (d *Dispatcher) dispatch(ev *Event) {
	d.listener.HandleEvent(ev, ev.ResponseType())
	d.stats.Dispatched++
	if !ev.kept {
		ev.Release()
	}
}

func (d *Dispatcher) handleError(ev *Event) {
	d.stats.Errors++
	xerr := DecodeXError(ev)
	if xerr == nil {
		d.log.warning("dispatch", "short-error").
			Int("length", len(ev.Raw)).
			Log("dropping truncated x protocol error")
		return
	}
	if d.errorListener != nil {
		d.errorListener.HandleError(xerr)
		return
	}
	d.log.warning("dispatch", fmt.Sprintf("xerror-%d-%d", xerr.MajorOpcode, xerr.Code)).
		Err(xerr).
		Log("unhandled x protocol error")
}

// compressEvent reports whether a later queued event supersedes ev, so that
// ev can be dropped. Only the flushed range is considered.
func (d *Dispatcher) compressEvent(ev *Event) bool {
	atoms := d.queue.atoms
	switch ev.ResponseType() {
	case MotionNotify:
		return d.queue.Peek(PeekRetainMatch, func(_ *Event, t uint8) bool {
			return t == MotionNotify
		}) != nil

	case ConfigureNotify:
		window := ev.configureWindow()
		return d.queue.Peek(PeekRetainMatch, func(next *Event, t uint8) bool {
			return t == ConfigureNotify && next.configureWindow() == window
		}) != nil

	case GenericEvent:
		switch {
		case atoms.isXIType(ev, XIMotion):
			source := ev.xiSourceID()
			return d.queue.Peek(PeekRetainMatch, func(next *Event, _ uint8) bool {
				return atoms.isXIType(next, XIMotion) && next.xiSourceID() == source
			}) != nil

		case atoms.isXIType(ev, XITouchUpdate):
			touch := ev.xiDetail()
			return d.queue.Peek(PeekRetainMatch, func(next *Event, _ uint8) bool {
				return atoms.isXIType(next, XITouchUpdate) && next.xiDetail() == touch
			}) != nil
		}
	}
	return false
}

// Pending reports how many input events are set aside.
func (d *Dispatcher) Pending() int { return len(d.inputEvents) }

// Stats returns the dispatch counters.
func (d *Dispatcher) Stats() DispatchStats { return d.stats }
