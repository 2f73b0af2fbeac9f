package xeventq

// Conn is the wire connection the reader goroutine drains.
//
// WaitForEvent blocks until a packet arrives and returns an error once the
// transport is dead. PollForEvent never blocks and returns (nil, nil) when
// nothing is pending. Err reports a latched transport failure without
// touching the stream. SendClientMessage sends a ClientMessage of type typ
// to a window owned by this connection, so that it comes back through the
// same stream; it is how the queue unblocks its own reader.
type Conn interface {
	WaitForEvent() (*Event, error)
	PollForEvent() (*Event, error)
	Err() error
	SendClientMessage(typ uint32, data [5]uint32) error
	Atoms() Atoms
}
