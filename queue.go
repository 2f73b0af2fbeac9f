// Copyright 2009 The XGB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xeventq

import (
	"context"
	"sync"
	"sync/atomic"
)

// A Queue moves events from a Conn to a single consumer goroutine.
//
// One reader goroutine, started by Start, blocks on the connection and
// appends to a lock-free list. Every other method (TakeFirst, Flush, Peek,
// PeekQueue, WaitForNewEvents, Drain) belongs to the consumer and must be
// called from one goroutine at a time.
type Queue struct {
	conn  Conn
	atoms Atoms
	pool  *nodePool
	list  list
	log   xlog
	waker atomic.Pointer[wakerBox]

	state         readerState
	closeDetected bool // reader only
	done          chan struct{}
	lifecycleMu   sync.Mutex
	closed        bool

	// newEventsMu is held by the reader while it appends a batch; waiters
	// in WaitForNewEvents receive from newEvents, which the reader closes
	// and replaces after each batch.
	newEventsMu sync.Mutex
	newEvents   chan struct{}

	peekers          map[PeekerID]*node
	peekerSource     PeekerID
	peekerCacheDirty bool
	queueModified    bool

	enqueued atomic.Uint64
}

// QueueStats is a snapshot of a queue's counters.
type QueueStats struct {
	// Enqueued counts events appended by the reader.
	Enqueued uint64
	// HeapNodes counts nodes allocated because the pool was exhausted.
	HeapNodes uint64
	// PoolRefills counts times the reader reclaimed nodes restored by the
	// consumer.
	PoolRefills uint64
	State       ReaderState
}

// NewQueue creates a queue reading from conn. The reader goroutine is not
// started until Start.
func NewQueue(conn Conn, opts ...Option) (*Queue, error) {
	if conn == nil {
		return nil, ErrNilConn
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	q := &Queue{
		conn:      conn,
		atoms:     conn.Atoms(),
		pool:      newNodePool(cfg.poolSize),
		log:       cfg.log(),
		done:      make(chan struct{}),
		newEvents: make(chan struct{}),
		peekers:   make(map[PeekerID]*node),
	}
	if cfg.waker != nil {
		q.waker.Store(&wakerBox{w: cfg.waker})
	}
	q.list.init(q.pool.acquire(nil))
	return q, nil
}

// Start launches the reader goroutine.
func (q *Queue) Start() error {
	q.lifecycleMu.Lock()
	defer q.lifecycleMu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if !q.state.TryTransition(ReaderIdle, ReaderRunning) {
		return ErrQueueRunning
	}
	go q.run()
	return nil
}

// Close stops the reader and waits for it to exit, or for ctx.
//
// The waker is dropped first, so the consumer's loop is not poked while it
// is being torn down. The reader is then unblocked by sending the private
// close-connection message to ourselves through the connection: it arrives
// behind everything already in flight, so every event received before it is
// still available to TakeFirst after Close returns.
func (q *Queue) Close(ctx context.Context) error {
	q.lifecycleMu.Lock()
	if q.closed {
		q.lifecycleMu.Unlock()
		return ErrQueueClosed
	}
	q.closed = true
	started := q.state.Load() != ReaderIdle
	q.lifecycleMu.Unlock()

	q.waker.Store(nil)
	if !started {
		q.state.Store(ReaderStopped)
		close(q.done)
		return nil
	}

	select {
	case <-q.done:
		// reader already gone, e.g. after a transport failure
	default:
		if err := q.conn.SendClientMessage(q.atoms.CloseConnection, [5]uint32{}); err != nil {
			q.log.err("queue").Err(err).Log("failed to send close-connection message")
		}
	}

	select {
	case <-q.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	q.Flush()
	return nil
}

// Done is closed when the reader goroutine has exited.
func (q *Queue) Done() <-chan struct{} { return q.done }

// SetWaker replaces the waker; nil disconnects it.
func (q *Queue) SetWaker(w Waker) {
	if w == nil {
		q.waker.Store(nil)
		return
	}
	q.waker.Store(&wakerBox{w: w})
}

func (q *Queue) wake() {
	if b := q.waker.Load(); b != nil {
		b.w.Wake()
	}
}

// Flush makes events published by the reader since the last Flush visible
// to TakeFirst and Peek.
func (q *Queue) Flush() { q.list.flush() }

// IsEmpty reports whether nothing is left up to the last Flush.
func (q *Queue) IsEmpty() bool { return q.list.isEmpty() }

// TakeFirst removes and returns the oldest flushed event, or nil.
func (q *Queue) TakeFirst() *Event {
	ev := q.list.takeFirst(q.pool)
	q.queueModified = true
	q.peekerCacheDirty = true
	return ev
}

// Drain discards every event left in the queue and returns how many there
// were. It is meant for teardown, after Close.
func (q *Queue) Drain() int {
	q.Flush()
	n := 0
	for ev := q.TakeFirst(); ev != nil; ev = q.TakeFirst() {
		ev.Release()
		n++
	}
	q.log.debug("queue").
		Int("drained", n).
		Int("heap_nodes", int(q.pool.onHeap.Load())).
		Log("queue drained")
	return n
}

// Stats returns a snapshot of the queue counters and reader state.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Enqueued:    q.enqueued.Load(),
		HeapNodes:   q.pool.onHeap.Load(),
		PoolRefills: q.pool.refills.Load(),
		State:       q.state.Load(),
	}
}
