package xeventq

// run is the reader goroutine. It blocks for one event, then takes whatever
// else is already available without blocking, and publishes the batch.
func (q *Queue) run() {
	defer close(q.done)
	defer q.state.Store(ReaderStopped)

	q.log.debug("reader").Log("reader started")
	for !q.closeDetected {
		ev, err := q.conn.WaitForEvent()
		if err != nil || ev == nil {
			q.log.err("reader").Err(err).Log("x protocol read error")
			break
		}

		// This lock can block only if someone is in WaitForNewEvents.
		q.newEventsMu.Lock()
		q.enqueue(ev)
		for !q.closeDetected {
			ev, err = q.conn.PollForEvent()
			if err != nil {
				// surfaced again by the next WaitForEvent
				break
			}
			if ev == nil {
				break
			}
			q.enqueue(ev)
		}
		close(q.newEvents)
		q.newEvents = make(chan struct{})
		q.newEventsMu.Unlock()
		q.wake()
	}

	if !q.closeDetected {
		// The connection died under us. Wake the consumer so it notices
		// through Conn.Err.
		q.wake()
	}
	q.log.debug("reader").
		Bool("close_detected", q.closeDetected).
		Log("reader stopped")
}

func (q *Queue) enqueue(ev *Event) {
	if q.atoms.Classify(ev) == ClassShutdown {
		q.closeDetected = true
		q.state.Store(ReaderClosing)
		ev.Release()
		return
	}
	q.list.append(q.pool.acquire(ev))
	q.enqueued.Add(1)
}
