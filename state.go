package xeventq

import "sync/atomic"

// ReaderState is the lifecycle of a queue's reader goroutine.
//
//	ReaderIdle -> ReaderRunning    [Start]
//	ReaderRunning -> ReaderClosing [close-connection message read]
//	ReaderRunning -> ReaderStopped [transport failure]
//	ReaderClosing -> ReaderStopped [batch finished]
type ReaderState uint32

const (
	ReaderIdle ReaderState = iota
	ReaderRunning
	ReaderClosing
	ReaderStopped
)

func (s ReaderState) String() string {
	switch s {
	case ReaderIdle:
		return "Idle"
	case ReaderRunning:
		return "Running"
	case ReaderClosing:
		return "Closing"
	case ReaderStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

type readerState struct {
	v atomic.Uint32
}

func (s *readerState) Load() ReaderState { return ReaderState(s.v.Load()) }

func (s *readerState) Store(state ReaderState) { s.v.Store(uint32(state)) }

func (s *readerState) TryTransition(from, to ReaderState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
