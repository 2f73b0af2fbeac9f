package xeventq

// Waker wakes the consumer's event loop. The reader calls Wake after each
// batch of events; implementations must not block.
type Waker interface {
	Wake()
}

// WakerFunc adapts a function to Waker.
type WakerFunc func()

func (f WakerFunc) Wake() { f() }

// ChanWaker coalesces wakeups into a channel with room for one token.
type ChanWaker struct {
	c chan struct{}
}

// NewChanWaker returns a waker whose channel holds at most one pending wake.
func NewChanWaker() *ChanWaker {
	return &ChanWaker{c: make(chan struct{}, 1)}
}

func (w *ChanWaker) Wake() {
	select {
	case w.c <- struct{}{}:
	default:
	}
}

// C receives a value after one or more Wake calls.
func (w *ChanWaker) C() <-chan struct{} { return w.c }

// wakerBox lets the queue swap the waker atomically; an interface value
// cannot be stored in an atomic.Pointer directly.
type wakerBox struct {
	w Waker
}
