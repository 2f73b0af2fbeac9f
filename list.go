package xeventq

import "sync/atomic"

// list is a single producer, single consumer append-only list. The only
// cross goroutine handoff is tail: the reader links a node and then stores
// it, the consumer loads it into flushedTail and may then walk every node
// up to and including flushedTail without further synchronization.
type list struct {
	// consumer side
	head        *node
	flushedTail *node

	tail atomic.Pointer[node]

	// reader side
	last *node
}

// init links the dead sentinel node as both head and tail, so an empty list
// never has a nil head.
func (l *list) init(sentinel *node) {
	l.head = sentinel
	l.flushedTail = sentinel
	l.last = sentinel
	l.tail.Store(sentinel)
}

// append is called only by the reader. It never touches a node before
// l.last.
func (l *list) append(n *node) {
	l.last.next = n
	l.last = n
	l.tail.Store(n)
}

// flush extends the consumer's traversal boundary to the published tail.
func (l *list) flush() {
	l.flushedTail = l.tail.Load()
}

// isEmpty is relative to the last flush. head and flushedTail may be equal
// while still holding an event, since the tail node is never dequeued
// before a newer tail is flushed.
func (l *list) isEmpty() bool {
	return l.head == l.flushedTail && l.head.event == nil
}

// takeFirst removes and returns the first event up to flushedTail, or nil.
//
// The flushedTail node is never unlinked here: the reader may be setting its
// next field right now. Its event is cleared instead, and the node itself is
// dequeued by a later call once a newer tail has been flushed.
func (l *list) takeFirst(pool *nodePool) *Event {
	for !l.isEmpty() {
		ev := l.head.event
		if l.head == l.flushedTail {
			l.head.event = nil
			return ev
		}
		old := l.head
		l.head = old.next
		pool.release(old)
		if ev != nil {
			return ev
		}
	}
	return nil
}
