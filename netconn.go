// Copyright 2009 The XGB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xeventq

import (
	"fmt"
	"io"
	"net"
	"sync"
)

const (
	opcodeSendEvent = 25
	sendEventLength = 11 // in 4 byte units

	// maxGenericExtra is the largest GenericEvent tail accepted, the core
	// maximum request length.
	maxGenericExtra = 0xffff * 4
)

// NetConn is a Conn over an X11 byte stream whose setup handshake has
// already completed. Packets are little endian.
//
// A read goroutine frames the stream into 32 byte packets, extends
// GenericEvent packets by their length field, and hands events and errors
// to a buffered channel. Replies are not routed and are discarded.
type NetConn struct {
	conn   net.Conn
	window uint32
	atoms  Atoms
	log    xlog

	events chan *Event
	done   chan struct{}

	errMu     sync.Mutex
	err       error
	writeLock sync.Mutex
	closeOnce sync.Once
}

// NewNetConn starts reading c. window is a window created by this client;
// SendClientMessage targets it so the server echoes the message back to us.
func NewNetConn(c net.Conn, window uint32, atoms Atoms, opts ...Option) (*NetConn, error) {
	if c == nil {
		return nil, ErrNilConn
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	nc := &NetConn{
		conn:   c,
		window: window,
		atoms:  atoms,
		log:    cfg.log(),
		events: make(chan *Event, cfg.netBuffer),
		done:   make(chan struct{}),
	}
	go nc.readLoop()
	return nc, nil
}

func (c *NetConn) Atoms() Atoms { return c.atoms }

// Err returns the first transport error, or nil.
func (c *NetConn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *NetConn) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

// Close shuts the stream down. Pending WaitForEvent calls return
// ErrConnClosed once buffered packets are consumed.
func (c *NetConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.fail(ErrConnClosed)
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *NetConn) readLoop() {
	defer close(c.events)
	for {
		buf := getEventBuf()
		if _, err := io.ReadFull(c.conn, buf); err != nil {
			putEventBuf(buf)
			c.readFailed(err)
			return
		}

		pooled := true
		switch {
		case buf[0] == ResponseReply:
			// no cookies here; skip the reply body
			size := int64(get32(buf[4:])) * 4
			putEventBuf(buf)
			if size > 0 {
				if _, err := io.CopyN(io.Discard, c.conn, size); err != nil {
					c.readFailed(err)
					return
				}
			}
			c.log.debug("wire").Log("discarding reply")
			continue

		case buf[0]&^sendEventMask == GenericEvent:
			if size := int(get32(buf[4:])) * 4; size > 0 {
				if size > maxGenericExtra {
					putEventBuf(buf)
					c.readFailed(fmt.Errorf("%w: generic event length %d", ErrBadPacket, size))
					return
				}
				bigbuf := make([]byte, eventSize+size)
				copy(bigbuf, buf)
				putEventBuf(buf)
				if _, err := io.ReadFull(c.conn, bigbuf[eventSize:]); err != nil {
					c.readFailed(err)
					return
				}
				buf = bigbuf
				pooled = false
			}
		}

		select {
		case c.events <- &Event{Raw: buf, pooled: pooled}:
		case <-c.done:
			putEventBuf(buf)
			return
		}
	}
}

func (c *NetConn) readFailed(err error) {
	select {
	case <-c.done:
		// closed by us
	default:
		c.log.err("wire").Err(err).Log("x protocol read error")
	}
	c.fail(err)
}

func (c *NetConn) WaitForEvent() (*Event, error) {
	ev, ok := <-c.events
	if !ok {
		return nil, c.Err()
	}
	return ev, nil
}

func (c *NetConn) PollForEvent() (*Event, error) {
	select {
	case ev, ok := <-c.events:
		if !ok {
			return nil, c.Err()
		}
		return ev, nil
	default:
		return nil, nil
	}
}

// SendClientMessage writes a SendEvent request carrying a format 32
// ClientMessage addressed to our own window, with an empty event mask so
// the server delivers it to the window's creator: us.
func (c *NetConn) SendClientMessage(typ uint32, data [5]uint32) error {
	req := make([]byte, sendEventLength*4)
	req[0] = opcodeSendEvent
	req[1] = 0 // propagate
	put16(req[2:], sendEventLength)
	put32(req[4:], c.window)
	put32(req[8:], 0) // event mask

	ev := req[12:]
	ev[0] = ClientMessage
	ev[1] = 32
	put32(ev[4:], c.window)
	put32(ev[8:], typ)
	for i, v := range data {
		put32(ev[12+i*4:], v)
	}

	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	if _, err := c.conn.Write(req); err != nil {
		c.fail(err)
		return fmt.Errorf("xeventq: send client message: %w", err)
	}
	return nil
}
