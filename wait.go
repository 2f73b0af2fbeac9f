package xeventq

import "time"

// WaitForNewEvents blocks until the reader publishes events past the
// current flushed tail, the reader stops, or timeout elapses. It flushes
// before returning and reports whether the flushed tail advanced.
//
// Callers must re-check the queue afterwards; a true result does not promise
// that TakeFirst yields anything a peek has not already consumed.
func (q *Queue) WaitForNewEvents(timeout time.Duration) bool {
	q.newEventsMu.Lock()
	since := q.list.flushedTail
	q.Flush()
	if q.list.flushedTail != since {
		q.newEventsMu.Unlock()
		return true
	}
	signal := q.newEvents
	q.newEventsMu.Unlock()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-signal:
	case <-q.done:
	case <-t.C:
	}

	q.Flush()
	return q.list.flushedTail != since
}
