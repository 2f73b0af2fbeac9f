// Package xgbwire connects an xeventq.Queue to a real X server through
// github.com/BurntSushi/xgb.
//
// xgb already runs its own read goroutine and decodes events; Conn turns
// them back into wire bytes so the queue sees the same packets it would read
// from a raw stream, and turns xgb errors into error packets.
package xgbwire

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BurntSushi/xeventq"
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// CloseConnectionAtom is interned to stop a queue's reader.
const CloseConnectionAtom = "_XEVENTQ_CLOSE_CONNECTION"

// ErrClosed is returned once xgb reports that the connection went away.
var ErrClosed = errors.New("xgbwire: connection closed")

// Conn implements xeventq.Conn.
type Conn struct {
	X *xgb.Conn

	atoms  xeventq.Atoms
	window xproto.Window
	screen *xproto.ScreenInfo

	errMu sync.Mutex
	err   error
}

// Dial connects to display, or $DISPLAY if empty.
func Dial(display string) (*Conn, error) {
	X, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, err
	}
	c, err := New(X)
	if err != nil {
		X.Close()
		return nil, err
	}
	return c, nil
}

// New prepares X for use with a queue: it interns the atoms the queue
// classifies by, looks up XInputExtension, and creates the InputOnly window
// close-connection messages are sent to.
func New(X *xgb.Conn) (*Conn, error) {
	c := &Conn{X: X}

	var err error
	if c.atoms.CloseConnection, err = c.intern(CloseConnectionAtom); err != nil {
		return nil, err
	}
	if c.atoms.WMProtocols, err = c.intern("WM_PROTOCOLS"); err != nil {
		return nil, err
	}
	if c.atoms.WMDeleteWindow, err = c.intern("WM_DELETE_WINDOW"); err != nil {
		return nil, err
	}

	const xinput = "XInputExtension"
	ext, err := xproto.QueryExtension(X, uint16(len(xinput)), xinput).Reply()
	if err != nil {
		return nil, fmt.Errorf("xgbwire: query %s: %w", xinput, err)
	}
	if ext.Present {
		c.atoms.XInputOpcode = ext.MajorOpcode
	}

	c.screen = xproto.Setup(X).DefaultScreen(X)
	if c.window, err = xproto.NewWindowId(X); err != nil {
		return nil, err
	}
	err = xproto.CreateWindowChecked(X, 0, c.window, c.screen.Root,
		0, 0, 1, 1, 0,
		xproto.WindowClassInputOnly, c.screen.RootVisual,
		0, nil).Check()
	if err != nil {
		return nil, fmt.Errorf("xgbwire: create close-connection window: %w", err)
	}
	return c, nil
}

func (c *Conn) intern(name string) (uint32, error) {
	reply, err := xproto.InternAtom(c.X, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("xgbwire: intern %s: %w", name, err)
	}
	return uint32(reply.Atom), nil
}

// Screen is the default screen of the connection.
func (c *Conn) Screen() *xproto.ScreenInfo { return c.screen }

func (c *Conn) Atoms() xeventq.Atoms { return c.atoms }

func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

// WaitForEvent blocks in xgb. xgb returns neither an event nor an error
// once its connection is gone.
func (c *Conn) WaitForEvent() (*xeventq.Event, error) {
	ev, xerr := c.X.WaitForEvent()
	if ev == nil && xerr == nil {
		c.fail(ErrClosed)
		return nil, ErrClosed
	}
	return convert(ev, xerr), nil
}

func (c *Conn) PollForEvent() (*xeventq.Event, error) {
	ev, xerr := c.X.PollForEvent()
	if ev == nil && xerr == nil {
		return nil, nil
	}
	return convert(ev, xerr), nil
}

func convert(ev xgb.Event, xerr xgb.Error) *xeventq.Event {
	if xerr != nil {
		return xeventq.NewEvent(errorBytes(xerr))
	}
	return xeventq.NewEvent(ev.Bytes())
}

// errorBytes rebuilds an error packet. xgb only keeps the error code in the
// type of the decoded error; extension errors are left with code 0.
func errorBytes(xerr xgb.Error) []byte {
	buf := make([]byte, 32)
	buf[1] = errorCode(xerr)
	seq := xerr.SequenceId()
	buf[2] = byte(seq)
	buf[3] = byte(seq >> 8)
	bad := xerr.BadId()
	buf[4] = byte(bad)
	buf[5] = byte(bad >> 8)
	buf[6] = byte(bad >> 16)
	buf[7] = byte(bad >> 24)
	return buf
}

func (c *Conn) SendClientMessage(typ uint32, data [5]uint32) error {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: c.window,
		Type:   xproto.Atom(typ),
		Data:   xproto.ClientMessageDataUnionData32New(data[:]),
	}
	err := xproto.SendEventChecked(c.X, false, c.window,
		xproto.EventMaskNoEvent, string(ev.Bytes())).Check()
	if err != nil {
		return fmt.Errorf("xgbwire: send client message: %w", err)
	}
	return nil
}

// Close destroys the close-connection window and closes the connection.
// Close the queue first.
func (c *Conn) Close() {
	xproto.DestroyWindow(c.X, c.window)
	c.X.Close()
}

func errorCode(xerr xgb.Error) uint8 {
	switch xerr.(type) {
	case xproto.RequestError:
		return xproto.BadRequest
	case xproto.ValueError:
		return xproto.BadValue
	case xproto.WindowError:
		return xproto.BadWindow
	case xproto.PixmapError:
		return xproto.BadPixmap
	case xproto.AtomError:
		return xproto.BadAtom
	case xproto.CursorError:
		return xproto.BadCursor
	case xproto.FontError:
		return xproto.BadFont
	case xproto.MatchError:
		return xproto.BadMatch
	case xproto.DrawableError:
		return xproto.BadDrawable
	case xproto.AccessError:
		return xproto.BadAccess
	case xproto.AllocError:
		return xproto.BadAlloc
	case xproto.ColormapError:
		return xproto.BadColormap
	case xproto.GContextError:
		return xproto.BadGContext
	case xproto.IDChoiceError:
		return xproto.BadIDChoice
	case xproto.NameError:
		return xproto.BadName
	case xproto.LengthError:
		return xproto.BadLength
	case xproto.ImplementationError:
		return xproto.BadImplementation
	}
	return 0
}
