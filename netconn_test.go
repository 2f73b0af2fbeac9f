package xeventq

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWindow = 0x2a00001

func newTestNetConn(t *testing.T, name string, opts ...Option) (*dNC, *NetConn) {
	t.Helper()
	s := newDummyNetConn(name, newDummyXServerReplier())
	c, err := NewNetConn(s, testWindow, testAtoms, opts...)
	if err != nil {
		s.Close()
		t.Fatalf("NewNetConn error: %v", err)
	}
	return s, c
}

func waitEvent(t *testing.T, c Conn) *Event {
	t.Helper()
	type result struct {
		ev  *Event
		err error
	}
	res := make(chan result, 1)
	go func() {
		ev, err := c.WaitForEvent()
		res <- result{ev, err}
	}()
	select {
	case r := <-res:
		require.NoError(t, r.err)
		require.NotNil(t, r.ev)
		return r.ev
	case <-time.After(time.Second):
		t.Fatal("WaitForEvent not responded for 1s")
		return nil
	}
}

func TestNetConnOpenClose(t *testing.T) {
	defer leaksMonitor("open-close").checkTesting(t)

	_, c := newTestNetConn(t, "open-close")

	closeErr := make(chan error)
	go func() {
		closeErr <- c.Close()
	}()
	closeTimeout := time.Second
	select {
	case err := <-closeErr:
		assert.NoError(t, err)
	case <-time.After(closeTimeout):
		t.Fatalf("*NetConn.Close() not responded for %v", closeTimeout)
	}

	ev, err := c.WaitForEvent()
	assert.Nil(t, ev)
	assert.ErrorIs(t, err, ErrConnClosed)
	assert.ErrorIs(t, c.Err(), ErrConnClosed)
	assert.NoError(t, c.Close(), "second Close")
}

func TestNewNetConnNil(t *testing.T) {
	_, err := NewNetConn(nil, testWindow, testAtoms)
	assert.ErrorIs(t, err, ErrNilConn)
}

func TestNetConnFraming(t *testing.T) {
	defer leaksMonitor("framing").checkTesting(t)

	s, c := newTestNetConn(t, "framing")
	defer c.Close()

	reply := make([]byte, eventSize+8)
	reply[0] = ResponseReply
	put32(reply[4:], 2)
	for i := range reply[eventSize:] {
		reply[eventSize+i] = 0xff
	}
	generic := xiEvent(XIMotion, 0, 3, 2)

	var stream []byte
	stream = append(stream, keyPress(1)...)
	stream = append(stream, reply...)
	stream = append(stream, generic...)
	stream = append(stream, errorPacket(3, 4, 12)...)
	require.NoError(t, s.Inject(stream))

	ev := waitEvent(t, c)
	assert.Equal(t, keyPress(1), ev.Raw)
	ev.Release()

	ev = waitEvent(t, c)
	assert.Equal(t, generic, ev.Raw, "generic event extended by its length field")
	assert.Len(t, ev.Raw, len(generic))

	ev = waitEvent(t, c)
	xerr := DecodeXError(ev)
	require.NotNil(t, xerr)
	assert.Equal(t, uint8(3), xerr.Code)
	assert.Equal(t, uint16(4), xerr.Sequence)
	assert.Equal(t, uint8(12), xerr.MajorOpcode)

	ev, err := c.PollForEvent()
	assert.Nil(t, ev)
	assert.NoError(t, err)
	assert.NoError(t, c.Err())
}

func TestNetConnSendClientMessage(t *testing.T) {
	defer leaksMonitor("client-message").checkTesting(t)

	_, c := newTestNetConn(t, "client-message")
	defer c.Close()

	require.NoError(t, c.SendClientMessage(testAtoms.CloseConnection, [5]uint32{9}))

	ev := waitEvent(t, c)
	assert.True(t, ev.SendEvent())
	assert.Equal(t, uint8(ClientMessage), ev.ResponseType())
	assert.Equal(t, uint32(testWindow), get32(ev.Raw[4:]))
	assert.Equal(t, uint32(9), get32(ev.Raw[12:]))
	assert.Equal(t, ClassShutdown, testAtoms.Classify(ev))
}

func TestNetConnReadError(t *testing.T) {
	defer leaksMonitor("read-error").checkTesting(t)

	var buf bytes.Buffer
	logger := stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(&buf))).Logger()

	s, c := newTestNetConn(t, "read-error", WithLogger(logger))
	require.NoError(t, s.ReadError())

	ev, err := c.WaitForEvent()
	assert.Nil(t, ev)
	assert.ErrorIs(t, err, dNCErrRead)
	assert.ErrorIs(t, c.Err(), dNCErrRead)
	assert.Contains(t, buf.String(), "x protocol read error")

	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Err(), dNCErrRead, "first error is kept")
}

func TestNetConnOversizedGenericEvent(t *testing.T) {
	defer leaksMonitor("oversized").checkTesting(t)

	s, c := newTestNetConn(t, "oversized")
	defer c.Close()

	huge := xiEvent(XIMotion, 0, 3, 2)[:eventSize]
	put32(huge[4:], maxGenericExtra/4+1)
	require.NoError(t, s.Inject(append(keyPress(1), huge...)))

	ev := waitEvent(t, c)
	assert.Equal(t, keyPress(1), ev.Raw)

	ev, err := c.WaitForEvent()
	assert.Nil(t, ev)
	assert.ErrorIs(t, err, ErrBadPacket)
	assert.ErrorIs(t, c.Err(), ErrBadPacket)
}

func TestNetConnWriteError(t *testing.T) {
	defer leaksMonitor("write-error").checkTesting(t)

	s, c := newTestNetConn(t, "write-error")
	defer c.Close()
	require.NoError(t, s.WriteError())

	err := c.SendClientMessage(testAtoms.CloseConnection, [5]uint32{})
	assert.ErrorIs(t, err, dNCErrWrite)
	assert.ErrorIs(t, c.Err(), dNCErrWrite)
}

// TestNetConnQueueShutdown runs a queue over the dummy server: the
// close-connection message travels through the server and back.
func TestNetConnQueueShutdown(t *testing.T) {
	defer leaksMonitor("queue-shutdown").checkTesting(t)

	s, c := newTestNetConn(t, "queue-shutdown")
	defer c.Close()

	w := NewChanWaker()
	q, err := NewQueue(c, WithWaker(w))
	require.NoError(t, err)
	require.NoError(t, q.Start())

	require.NoError(t, s.Inject(append(keyPress(1), motion(2)...)))
	select {
	case <-w.C():
	case <-time.After(time.Second):
		t.Fatal("waker not called for 1s")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Close(ctx))
	assert.Equal(t, ReaderStopped, q.Stats().State)

	var seqs []uint16
	for ev := q.TakeFirst(); ev != nil; ev = q.TakeFirst() {
		assert.NotEqual(t, ClassShutdown, ev.Class())
		seqs = append(seqs, ev.Sequence())
	}
	assert.Equal(t, []uint16{1, 2}, seqs)
}
