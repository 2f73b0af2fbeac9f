package xeventq

import "sync/atomic"

// node is one slot of the event list. A node whose event is nil was either
// consumed in place by a peek or is the deferred tail; it stays linked until
// the consumer physically dequeues it.
type node struct {
	event    *Event
	next     *node
	fromHeap bool
}

// nodePool hands the reader goroutine a node per received event.
//
// The ring is written only by the reader. The consumer returns ring nodes in
// the same order they were handed out, so the reader never has to know which
// slots are free: it only needs a count, which it refills from restored.
// restored is the sole synchronization point between the two sides and is
// independent of the list's tail, so a stalled consumer degrades the reader
// to heap allocation instead of blocking it.
type nodePool struct {
	ring  []node
	index int // reader only
	free  int // reader only

	restored atomic.Int64

	onHeap  atomic.Uint64
	refills atomic.Uint64
}

func newNodePool(size int) *nodePool {
	return &nodePool{
		ring: make([]node, size),
		free: size,
	}
}

// acquire is called only by the reader.
func (p *nodePool) acquire(ev *Event) *node {
	if p.free == 0 {
		// out of nodes, check if the consumer has restored any
		if p.free = int(p.restored.Swap(0)); p.free != 0 {
			p.refills.Add(1)
		}
	}
	if p.free != 0 {
		p.free--
		if p.index == len(p.ring) {
			p.index = 0
		}
		n := &p.ring[p.index]
		p.index++
		n.event = ev
		n.next = nil
		n.fromHeap = false
		return n
	}
	p.onHeap.Add(1)
	return &node{event: ev, fromHeap: true}
}

// release is called only by the consumer, for nodes the reader has already
// linked past.
func (p *nodePool) release(n *node) {
	n.event = nil
	if n.fromHeap {
		n.next = nil
		return
	}
	p.restored.Add(1)
}
