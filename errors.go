package xeventq

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueClosed is returned by operations on a queue that was closed.
	ErrQueueClosed = errors.New("xeventq: queue closed")
	// ErrQueueRunning is returned by Start on a queue whose reader already
	// runs.
	ErrQueueRunning = errors.New("xeventq: reader already started")
	// ErrUnknownPeeker is returned when a peeker id was never registered or
	// was removed.
	ErrUnknownPeeker = errors.New("xeventq: unknown peeker id")
	// ErrPeekerRequired is returned when PeekFromCachedIndex is requested
	// without a peeker id.
	ErrPeekerRequired = errors.New("xeventq: cached index requires a peeker id")
	// ErrConnectionBroken wraps the transport error of a dead connection.
	// There is no recovery: the owner is expected to shut down.
	ErrConnectionBroken = errors.New("xeventq: connection broken")
	ErrNilConn          = errors.New("xeventq: nil connection")
	ErrNilQueue         = errors.New("xeventq: nil queue")
	ErrNilListener      = errors.New("xeventq: nil listener")
	// ErrConnClosed is latched by a NetConn that was closed by its owner.
	ErrConnClosed = errors.New("xeventq: connection closed")
	// ErrBadPacket is latched by a NetConn that read a malformed packet.
	ErrBadPacket = errors.New("xeventq: malformed packet")
)

// XError is a protocol error packet, delivered in the event stream with
// response type 0.
type XError struct {
	Code        uint8
	Sequence    uint16
	BadValue    uint32
	MinorOpcode uint16
	MajorOpcode uint8
}

// DecodeXError reads an error packet. It returns nil if ev is not one.
func DecodeXError(ev *Event) *XError {
	if ev == nil || len(ev.Raw) < 11 || ev.ResponseType() != ResponseError {
		return nil
	}
	return &XError{
		Code:        ev.Raw[1],
		Sequence:    get16(ev.Raw[2:]),
		BadValue:    get32(ev.Raw[4:]),
		MinorOpcode: get16(ev.Raw[8:]),
		MajorOpcode: ev.Raw[10],
	}
}

func (e *XError) Error() string {
	return fmt.Sprintf("x protocol error: code %d, sequence %d, bad value %d, major %d, minor %d",
		e.Code, e.Sequence, e.BadValue, e.MajorOpcode, e.MinorOpcode)
}
