package xeventq

import (
	"bytes"
	"errors"
	"testing"

	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatched struct {
	typ uint8
	seq uint16
}

// recorder copies what it needs out of each event: the dispatcher releases
// events once the listener returns.
type recorder struct {
	got  []dispatched
	keep bool
	kept []*Event
}

func (r *recorder) HandleEvent(ev *Event, responseType uint8) {
	r.got = append(r.got, dispatched{responseType, ev.Sequence()})
	if r.keep {
		ev.Keep()
		r.kept = append(r.kept, ev)
	}
}

func (r *recorder) seqs() []uint16 {
	var s []uint16
	for _, d := range r.got {
		s = append(s, d.seq)
	}
	return s
}

type errorRecorder []*XError

func (r *errorRecorder) HandleError(err *XError) { *r = append(*r, err) }

func newTestDispatcher(t *testing.T, opts ...Option) (*fakeConn, *Queue, *Dispatcher, *recorder) {
	t.Helper()
	conn := newFakeConn()
	q, err := NewQueue(conn, opts...)
	require.NoError(t, err)
	r := &recorder{}
	d, err := NewDispatcher(q, r, opts...)
	require.NoError(t, err)
	return conn, q, d, r
}

func TestNewDispatcherErrors(t *testing.T) {
	_, err := NewDispatcher(nil, &recorder{})
	assert.ErrorIs(t, err, ErrNilQueue)

	q := newTestQueue(t)
	_, err = NewDispatcher(q, nil)
	assert.ErrorIs(t, err, ErrNilListener)

	_, err = NewDispatcher(q, &recorder{}, WithPoolSize(-1))
	assert.Error(t, err)
}

func TestDispatchMotionCompression(t *testing.T) {
	_, q, d, r := newTestDispatcher(t)
	q.inject(motion(1), motion(2), motion(3))

	require.NoError(t, d.ProcessEvents(AllEvents))
	assert.Equal(t, []dispatched{{MotionNotify, 3}}, r.got, "only the most recent motion is dispatched")
	assert.Equal(t, uint64(2), d.Stats().Compressed)
	assert.Equal(t, uint64(1), d.Stats().Dispatched)
	assert.True(t, q.IsEmpty())
}

func TestDispatchCompressionDisabled(t *testing.T) {
	_, q, d, r := newTestDispatcher(t, WithCompression(false))
	q.inject(motion(1), motion(2), motion(3))

	require.NoError(t, d.ProcessEvents(AllEvents))
	assert.Equal(t, []uint16{1, 2, 3}, r.seqs())
	assert.Zero(t, d.Stats().Compressed)
}

func TestDispatchKeyPressNotCompressed(t *testing.T) {
	_, q, d, r := newTestDispatcher(t)
	q.inject(keyPress(1), keyPress(2), keyPress(3))

	require.NoError(t, d.ProcessEvents(AllEvents))
	assert.Equal(t, []uint16{1, 2, 3}, r.seqs())
}

func TestDispatchMotionAcrossOtherEvents(t *testing.T) {
	_, q, d, r := newTestDispatcher(t)
	q.inject(motion(1), keyPress(2), motion(3))

	require.NoError(t, d.ProcessEvents(AllEvents))
	assert.Equal(t, []uint16{2, 3}, r.seqs())
}

func TestDispatchConfigurePerWindow(t *testing.T) {
	_, q, d, r := newTestDispatcher(t)
	q.inject(
		configureNotify(1, 1),
		configureNotify(2, 2),
		configureNotify(1, 3),
	)

	require.NoError(t, d.ProcessEvents(AllEvents))
	assert.Equal(t, []uint16{2, 3}, r.seqs())
}

func TestDispatchXIMotionPerDevice(t *testing.T) {
	_, q, d, r := newTestDispatcher(t)
	q.inject(
		xiEvent(XIMotion, 0, 2, 1),
		xiEvent(XIMotion, 0, 3, 2),
		xiEvent(XIMotion, 0, 2, 3),
		xiEvent(XIButtonPress, 1, 2, 4),
		xiEvent(XIMotion, 0, 2, 5),
	)

	require.NoError(t, d.ProcessEvents(AllEvents))
	assert.Equal(t, []uint16{2, 4, 5}, r.seqs())
}

func TestDispatchXITouchPerTouch(t *testing.T) {
	_, q, d, r := newTestDispatcher(t)
	q.inject(
		xiEvent(XITouchUpdate, 5, 2, 1),
		xiEvent(XITouchUpdate, 6, 2, 2),
		xiEvent(XITouchUpdate, 5, 2, 3),
		xiEvent(XITouchEnd, 5, 2, 4),
	)

	require.NoError(t, d.ProcessEvents(AllEvents))
	assert.Equal(t, []uint16{2, 3, 4}, r.seqs())
}

func TestDispatchGenericOtherExtension(t *testing.T) {
	_, q, d, r := newTestDispatcher(t)
	a, b := xiEvent(XIMotion, 0, 2, 1), xiEvent(XIMotion, 0, 2, 2)
	a[1], b[1] = 77, 77
	evs := q.inject(a, b)
	assert.Equal(t, ClassOther, evs[0].Class())

	require.NoError(t, d.ProcessEvents(AllEvents))
	assert.Equal(t, []uint16{1, 2}, r.seqs())
}

func TestDispatchExcludeUserInput(t *testing.T) {
	_, q, d, r := newTestDispatcher(t)
	q.inject(
		keyPress(1),
		configureNotify(1, 2),
		clientMessage(testAtoms.WMProtocols, testAtoms.WMDeleteWindow, 3),
		motion(4),
		configureNotify(2, 5),
	)

	require.NoError(t, d.ProcessEvents(ExcludeUserInput))
	assert.Equal(t, []uint16{2, 5}, r.seqs())
	assert.Equal(t, 3, d.Pending())
	assert.Equal(t, uint64(3), d.Stats().Diverted)

	// diverted input comes first once input is allowed again
	q.inject(keyPress(6))
	r.got = nil
	require.NoError(t, d.ProcessEvents(AllEvents))
	assert.Equal(t, []uint16{1, 3, 4, 6}, r.seqs())
	assert.Zero(t, d.Pending())
}

func TestDispatchCloseRequestIsInput(t *testing.T) {
	q := newTestQueue(t)
	evs := q.inject(
		clientMessage(testAtoms.WMProtocols, testAtoms.WMDeleteWindow, 1),
		clientMessage(testAtoms.WMProtocols, 0x999, 2),
	)
	assert.Equal(t, ClassInput, evs[0].Class())
	assert.Equal(t, InputCloseRequest, evs[0].InputKind())
	assert.Equal(t, ClassOther, evs[1].Class())
}

func TestDispatchErrorListener(t *testing.T) {
	var errs errorRecorder
	_, q, d, r := newTestDispatcher(t, WithErrorListener(&errs))
	q.inject(keyPress(1), errorPacket(3, 2, 12), keyPress(3))

	require.NoError(t, d.ProcessEvents(AllEvents))
	assert.Equal(t, []uint16{1, 3}, r.seqs())
	require.Len(t, errs, 1)
	assert.Equal(t, uint8(3), errs[0].Code)
	assert.Equal(t, uint16(2), errs[0].Sequence)
	assert.Equal(t, uint32(0xdead), errs[0].BadValue)
	assert.Equal(t, uint8(12), errs[0].MajorOpcode)
	assert.Equal(t, uint64(1), d.Stats().Errors)
}

func TestDispatchErrorLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(&buf))).Logger()
	_, q, d, r := newTestDispatcher(t, WithLogger(logger))
	q.inject(errorPacket(3, 2, 12))

	require.NoError(t, d.ProcessEvents(AllEvents))
	assert.Empty(t, r.got)
	assert.Contains(t, buf.String(), "unhandled x protocol error")
}

func TestDispatchShortErrorLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(&buf))).Logger()
	var errs errorRecorder
	_, q, d, r := newTestDispatcher(t, WithLogger(logger), WithErrorListener(&errs))
	q.inject([]byte{ResponseError, 3, 2, 0, 0xad, 0xde}, keyPress(2))

	require.NoError(t, d.ProcessEvents(AllEvents))
	assert.Equal(t, []uint16{2}, r.seqs())
	assert.Empty(t, errs, "truncated errors never reach the listener")
	assert.Equal(t, uint64(1), d.Stats().Errors)
	assert.Contains(t, buf.String(), "dropping truncated x protocol error")
}

func TestDispatchConnectionBroken(t *testing.T) {
	conn, q, d, r := newTestDispatcher(t)
	q.inject(keyPress(1))

	cause := errors.New("broken pipe")
	conn.fail(cause)

	err := d.ProcessEvents(AllEvents)
	assert.ErrorIs(t, err, ErrConnectionBroken)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, r.got)
}

func TestDispatchKeep(t *testing.T) {
	_, q, d, r := newTestDispatcher(t)
	r.keep = true
	q.inject(keyPress(1))

	require.NoError(t, d.ProcessEvents(AllEvents))
	require.Len(t, r.kept, 1)
	assert.Equal(t, keyPress(1), r.kept[0].Raw, "kept events are not released")
}

func TestDispatchReleases(t *testing.T) {
	_, q, d, _ := newTestDispatcher(t)
	evs := q.inject(keyPress(1))

	require.NoError(t, d.ProcessEvents(AllEvents))
	assert.Nil(t, evs[0].Raw)
}
