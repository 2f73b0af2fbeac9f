package xeventq

import "fmt"

// PeekMode selects what Peek does with a matching event.
type PeekMode uint8

const (
	// PeekRetainMatch returns the first match and leaves it queued.
	PeekRetainMatch PeekMode = iota
	// PeekRemoveMatch returns the first match and removes it from the
	// queue. Its node stays linked, empty, until TakeFirst passes it.
	PeekRemoveMatch
	// PeekRemoveMatchContinue removes and releases every match.
	PeekRemoveMatchContinue
)

// PeekFunc is called with a queued event and its response type.
type PeekFunc func(ev *Event, responseType uint8) bool

// Peek flushes and scans the queue from the head up to the flushed tail.
//
// In PeekRemoveMatchContinue mode it always returns nil; use RemoveAll to
// learn how many events were dropped.
//
// match must not call TakeFirst or process events: nodes it would dequeue
// are still being walked.
func (q *Queue) Peek(mode PeekMode, match PeekFunc) *Event {
	ev, _ := q.peek(mode, match)
	return ev
}

// RemoveAll drops every flushed event matching match and reports how many.
func (q *Queue) RemoveAll(match PeekFunc) int {
	_, n := q.peek(PeekRemoveMatchContinue, match)
	return n
}

func (q *Queue) peek(mode PeekMode, match PeekFunc) (*Event, int) {
	q.Flush()
	if q.IsEmpty() {
		return nil, 0
	}
	removed := 0
	for n := q.list.head; ; n = n.next {
		if ev := n.event; ev != nil && match(ev, ev.ResponseType()) {
			switch mode {
			case PeekRetainMatch:
				return ev, 0
			case PeekRemoveMatch:
				n.event = nil
				return ev, 1
			default:
				n.event = nil
				ev.Release()
				removed++
			}
		}
		if n == q.list.flushedTail {
			break
		}
	}
	return nil, removed
}

// PeekerID identifies a registered peeker, see NewPeeker.
type PeekerID int32

// NoPeeker is passed to PeekQueue by callers without a registered id.
const NoPeeker PeekerID = -1

// PeekOptions modify PeekQueue.
type PeekOptions uint8

const (
	PeekDefault PeekOptions = 0
	// PeekFromCachedIndex resumes after the node where the previous
	// PeekQueue call with the same id stopped, unless TakeFirst ran since.
	PeekFromCachedIndex PeekOptions = 1
)

// NewPeeker registers a peeker id whose position PeekQueue can remember.
func (q *Queue) NewPeeker() PeekerID {
	id := q.peekerSource
	q.peekerSource++
	q.peekers[id] = nil
	return id
}

// RemovePeeker unregisters id. It returns false for an unknown id.
func (q *Queue) RemovePeeker(id PeekerID) bool {
	if _, ok := q.peekers[id]; !ok {
		q.log.warning("peek", "remove-unknown").
			Int("peeker_id", int(id)).
			Log("failed to remove unknown peeker id")
		return false
	}
	delete(q.peekers, id)
	if len(q.peekers) == 0 {
		// once empty, ids can be reused
		q.peekerSource = 0
		q.peekerCacheDirty = false
	}
	return true
}

// PeekQueue calls fn for each flushed event until it returns true, and
// reports whether it did.
//
// Unlike Peek, fn may process events itself (e.g. a nested event loop); the
// walk stops as soon as the queue was modified under it, and the cached
// position is then left alone.
func (q *Queue) PeekQueue(fn func(ev *Event) bool, opts PeekOptions, id PeekerID) (bool, error) {
	hasID := id != NoPeeker
	if hasID {
		if _, ok := q.peekers[id]; !ok {
			q.log.warning("peek", "unknown").
				Int("peeker_id", int(id)).
				Log("failed to find index for unknown peeker id")
			return false, fmt.Errorf("%w: %d", ErrUnknownPeeker, id)
		}
	}
	useCache := opts&PeekFromCachedIndex != 0
	if useCache && !hasID {
		q.log.warning("peek", "cache-without-id").Log("PeekFromCachedIndex requires peeker id")
		return false, ErrPeekerRequired
	}
	if hasID && q.peekerCacheDirty {
		for k := range q.peekers {
			q.peekers[k] = nil
		}
		q.peekerCacheDirty = false
	}

	q.Flush()
	if q.IsEmpty() {
		return false, nil
	}

	start := q.list.head
	if useCache {
		if cached := q.peekers[id]; cached != nil {
			if cached == q.list.flushedTail {
				// no new events since the last call
				return false, nil
			}
			start = cached.next
		}
	}

	q.queueModified = false
	result := false
	n := start
	for {
		if ev := n.event; ev != nil && fn(ev) {
			result = true
			break
		}
		if q.queueModified || n == q.list.flushedTail {
			break
		}
		n = n.next
	}

	if hasID && n != start && !q.queueModified {
		// fn may have removed the id
		if _, ok := q.peekers[id]; ok {
			q.peekers[id] = n
		}
	}
	return result, nil
}
