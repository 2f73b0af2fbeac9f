/*
Package xeventq moves X11 events from the connection to the goroutine that
processes them, without taking a lock per event.

A Queue owns one reader goroutine. The reader blocks on a Conn for the next
event, collects whatever else is already available, appends the batch to a
single producer, single consumer list and wakes the consumer's event loop
through a Waker. The consumer flushes the list, takes events in arrival
order, and may peek at or remove queued events before taking them.

Dispatcher sits on top of a Queue for the common case: it hands every event
to a Listener, drops motion and configure events that a later queued event
supersedes, routes protocol errors to an ErrorListener, and can set user
input aside while the application is not ready for it.

Two Conn implementations are provided. NetConn frames an established X11
byte stream itself. Package xgbwire adapts a github.com/BurntSushi/xgb
connection, which is what most programs want.

# Example

This is a terse example that connects to X, starts a queue and dispatches
events whenever the reader wakes us up. An example with a window and
configuration can be found in cmd/xeventq-dump.

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/BurntSushi/xeventq"
		"github.com/BurntSushi/xeventq/xgbwire"
	)

	func main() {
		c, err := xgbwire.Dial("")
		if err != nil {
			log.Fatal(err)
		}
		defer c.Close()

		waker := xeventq.NewChanWaker()
		q, err := xeventq.NewQueue(c, xeventq.WithWaker(waker))
		if err != nil {
			log.Fatal(err)
		}
		d, err := xeventq.NewDispatcher(q, xeventq.ListenerFunc(
			func(ev *xeventq.Event, responseType uint8) {
				fmt.Println(ev)
			}))
		if err != nil {
			log.Fatal(err)
		}
		if err := q.Start(); err != nil {
			log.Fatal(err)
		}
		defer q.Close(context.Background())

		for range waker.C() {
			if err := d.ProcessEvents(xeventq.AllEvents); err != nil {
				log.Fatal(err)
			}
		}
	}

# Shutting down

Close stops the reader by sending a private ClientMessage to a window owned
by the connection. It arrives after every event the server sent before it,
so nothing received up to that point is lost; Drain discards the rest.

# Ownership

An Event belongs to whoever last took it: the queue while it is queued, the
caller after TakeFirst, the listener during dispatch. The Dispatcher releases
each event after its listener returns unless the listener calls Keep.
Peek callbacks must not take events from the queue; PeekQueue callbacks may.
*/
package xeventq
