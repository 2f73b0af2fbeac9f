package xeventq

import (
	"fmt"
	"sync"
)

// Core protocol response types the queue and dispatcher look at. Everything
// else passes through untouched.
const (
	ResponseError   = 0
	ResponseReply   = 1
	KeyPress        = 2
	KeyRelease      = 3
	ButtonPress     = 4
	ButtonRelease   = 5
	MotionNotify    = 6
	EnterNotify     = 7
	LeaveNotify     = 8
	ConfigureNotify = 22
	ClientMessage   = 33
	GenericEvent    = 35
)

// XInput2 event types, carried in the event_type field of a GenericEvent
// whose extension byte is the XInputExtension major opcode.
const (
	XIButtonPress   = 4
	XIButtonRelease = 5
	XIMotion        = 6
	XIEnter         = 7
	XILeave         = 8
	XIPropertyEvent = 12
	XITouchBegin    = 18
	XITouchUpdate   = 19
	XITouchEnd      = 20
)

// sendEventMask is set in the response type of events generated by a
// SendEvent request.
const sendEventMask = 0x80

// eventSize is the size of every core event, error and reply header.
const eventSize = 32

// Class is the result of decoding an event once, when it crosses from the
// wire into the queue. Downstream code switches on it instead of looking at
// raw bytes again.
type Class uint8

const (
	ClassOther Class = iota
	ClassInput
	ClassError
	ClassShutdown
)

func (c Class) String() string {
	switch c {
	case ClassOther:
		return "Other"
	case ClassInput:
		return "Input"
	case ClassError:
		return "Error"
	case ClassShutdown:
		return "Shutdown"
	default:
		return fmt.Sprintf("Class(%d)", uint8(c))
	}
}

// InputKind refines ClassInput.
type InputKind uint8

const (
	InputNone InputKind = iota
	InputKey
	InputButton
	InputMotion
	InputCrossing
	InputTouch
	InputProximity
	InputCloseRequest
)

func (k InputKind) String() string {
	switch k {
	case InputNone:
		return "None"
	case InputKey:
		return "Key"
	case InputButton:
		return "Button"
	case InputMotion:
		return "Motion"
	case InputCrossing:
		return "Crossing"
	case InputTouch:
		return "Touch"
	case InputProximity:
		return "Proximity"
	case InputCloseRequest:
		return "CloseRequest"
	default:
		return fmt.Sprintf("InputKind(%d)", uint8(k))
	}
}

// eventBufPool recycles the 32 byte buffers NetConn reads packets into.
var eventBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, eventSize)
		return &b
	},
}

func getEventBuf() []byte {
	b := eventBufPool.Get().(*[]byte)
	return (*b)[:eventSize]
}

func putEventBuf(b []byte) {
	if cap(b) != eventSize {
		return
	}
	clear(b[:eventSize])
	eventBufPool.Put(&b)
}

// Event is one protocol message as it arrived on the wire. The first byte is
// the response type; the high bit marks events generated by SendEvent.
//
// An Event is owned by exactly one party at a time: the wire, the queue, or
// whoever took it out of the queue. The Dispatcher releases every event after
// its listener returns, unless the listener called Keep.
type Event struct {
	Raw []byte

	class  Class
	kind   InputKind
	pooled bool
	kept   bool
}

// NewEvent wraps raw without copying it.
func NewEvent(raw []byte) *Event {
	return &Event{Raw: raw}
}

// ResponseType returns the discriminant with the SendEvent bit cleared.
func (e *Event) ResponseType() uint8 {
	if len(e.Raw) == 0 {
		return ResponseError
	}
	return e.Raw[0] &^ sendEventMask
}

// SendEvent reports whether the event was generated by a SendEvent request.
func (e *Event) SendEvent() bool {
	return len(e.Raw) != 0 && e.Raw[0]&sendEventMask != 0
}

// Sequence is the low 16 bits of the sequence number of the last request
// the server processed before generating the event.
func (e *Event) Sequence() uint16 { return field16(e.Raw, 2) }

func (e *Event) Class() Class         { return e.class }
func (e *Event) InputKind() InputKind { return e.kind }

// IsUserInput reports whether the event was classified as user input.
func (e *Event) IsUserInput() bool { return e.class == ClassInput }

// Keep transfers ownership of the event to the caller; a Dispatcher will not
// release it after dispatch.
func (e *Event) Keep() { e.kept = true }

// Release gives the event buffer back. The event must not be used afterwards.
func (e *Event) Release() {
	if e.pooled {
		putEventBuf(e.Raw)
		e.pooled = false
	}
	e.Raw = nil
}

func (e *Event) String() string {
	t := e.ResponseType()
	if t == GenericEvent {
		return fmt.Sprintf("GenericEvent{extension: %d, type: %d, seq: %d, class: %s}",
			field8(e.Raw, 1), field16(e.Raw, 8), e.Sequence(), e.class)
	}
	return fmt.Sprintf("Event{type: %d, send: %t, seq: %d, class: %s, kind: %s}",
		t, e.SendEvent(), e.Sequence(), e.class, e.kind)
}

func field8(buf []byte, off int) uint8 {
	if len(buf) <= off {
		return 0
	}
	return buf[off]
}

// genericType returns the extension opcode and event type of a GenericEvent.
func (e *Event) genericType() (extension uint8, evtype uint16, ok bool) {
	if e.ResponseType() != GenericEvent || len(e.Raw) < 10 {
		return 0, 0, false
	}
	return e.Raw[1], get16(e.Raw[8:]), true
}

// XI device events share a layout: deviceid at 10, detail at 16, the event
// window at 24 and sourceid at 52 (wire offsets, no full_sequence field).
func (e *Event) xiDetail() uint32   { return field32(e.Raw, 16) }
func (e *Event) xiSourceID() uint16 { return field16(e.Raw, 52) }

// configureWindow is the event window of a ConfigureNotify.
func (e *Event) configureWindow() uint32 { return field32(e.Raw, 4) }

// Atoms carries the connection specific values needed to classify events.
type Atoms struct {
	// CloseConnection is the private atom whose ClientMessage stops the
	// reader goroutine.
	CloseConnection uint32
	WMProtocols     uint32
	WMDeleteWindow  uint32
	// XInputOpcode is the XInputExtension major opcode, 0 if absent.
	XInputOpcode uint8
}

// Classify decodes ev once and records the result on it.
func (a Atoms) Classify(ev *Event) Class {
	ev.class, ev.kind = a.classify(ev)
	return ev.class
}

func (a Atoms) classify(ev *Event) (Class, InputKind) {
	switch ev.ResponseType() {
	case ResponseError:
		return ClassError, InputNone
	case KeyPress, KeyRelease:
		return ClassInput, InputKey
	case ButtonPress, ButtonRelease:
		return ClassInput, InputButton
	case MotionNotify:
		return ClassInput, InputMotion
	case EnterNotify, LeaveNotify:
		return ClassInput, InputCrossing
	case ClientMessage:
		typ := field32(ev.Raw, 8)
		if a.CloseConnection != 0 && typ == a.CloseConnection {
			return ClassShutdown, InputNone
		}
		// WM_DELETE_WINDOW is a close button press as far as the user is
		// concerned.
		if field8(ev.Raw, 1) == 32 && a.WMProtocols != 0 && typ == a.WMProtocols &&
			field32(ev.Raw, 12) == a.WMDeleteWindow {
			return ClassInput, InputCloseRequest
		}
	case GenericEvent:
		ext, evtype, ok := ev.genericType()
		if !ok || a.XInputOpcode == 0 || ext != a.XInputOpcode {
			break
		}
		switch evtype {
		case XIButtonPress, XIButtonRelease:
			return ClassInput, InputButton
		case XIMotion:
			return ClassInput, InputMotion
		case XIEnter, XILeave:
			return ClassInput, InputCrossing
		case XITouchBegin, XITouchUpdate, XITouchEnd:
			return ClassInput, InputTouch
		case XIPropertyEvent:
			// wacom reports tool proximity this way
			return ClassInput, InputProximity
		}
	}
	return ClassOther, InputNone
}

// isXIType reports whether ev is an XInput2 event of the given type.
func (a Atoms) isXIType(ev *Event, evtype uint16) bool {
	ext, t, ok := ev.genericType()
	return ok && a.XInputOpcode != 0 && ext == a.XInputOpcode && t == evtype
}
