//go:build linux

package xeventq

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// EventfdWaker wakes a poll based event loop through an eventfd. Register
// Fd for reading and call Drain when it becomes readable.
type EventfdWaker struct {
	fd int
}

// NewEventfdWaker opens a non-blocking eventfd. Close releases it.
func NewEventfdWaker() (*EventfdWaker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &EventfdWaker{fd: fd}, nil
}

func (w *EventfdWaker) Fd() int { return w.fd }

// Wake adds one to the eventfd counter. EAGAIN on a saturated counter is
// ignored; the loop is awake anyway.
func (w *EventfdWaker) Wake() {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, _ = unix.Write(w.fd, buf[:])
}

// Drain resets the counter and returns the number of wakes since the last
// Drain, or 0 if there were none.
func (w *EventfdWaker) Drain() uint64 {
	var buf [8]byte
	n, err := unix.Read(w.fd, buf[:])
	if err != nil || n != len(buf) {
		return 0
	}
	return binary.NativeEndian.Uint64(buf[:])
}

func (w *EventfdWaker) Close() error {
	return unix.Close(w.fd)
}
