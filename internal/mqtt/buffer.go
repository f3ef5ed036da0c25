package mqtt

// outMsg is one serialized message waiting for delivery to the broker.
type outMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outQueue is a fixed-capacity FIFO of outbound messages. The control
// loop enqueues; the publisher's drainer empties it when the connection
// is up. When full, the oldest message is dropped: stale generator
// transitions are worth less than current ones, and the queue must
// never grow while a broker outage outlasts the daemon's patience.
// Not safe for concurrent use — the publisher holds its own lock.
type outQueue struct {
	logf func(format string, args ...any)

	buf     []outMsg
	head    int // next write position
	count   int
	dropped int // messages dropped since the last drain
}

func newOutQueue(capacity int, logf func(format string, args ...any)) *outQueue {
	return &outQueue{
		logf: logf,
		buf:  make([]outMsg, capacity),
	}
}

func (q *outQueue) push(m outMsg) {
	if q.count == len(q.buf) {
		if q.dropped == 0 {
			q.logf("mqtt: outbound queue full (%d messages), dropping oldest", len(q.buf))
		}
		q.dropped++
		// Overwrite oldest: head is already pointing at it.
		q.buf[q.head] = m
		q.head = (q.head + 1) % len(q.buf)
		return
	}
	q.buf[q.head] = m
	q.head = (q.head + 1) % len(q.buf)
	q.count++
}

// drain returns the queued messages oldest-first and empties the queue.
func (q *outQueue) drain() []outMsg {
	if q.count == 0 {
		return nil
	}

	out := make([]outMsg, q.count)
	start := (q.head - q.count + len(q.buf)) % len(q.buf)
	for i := 0; i < q.count; i++ {
		out[i] = q.buf[(start+i)%len(q.buf)]
	}

	if q.dropped > 0 {
		q.logf("mqtt: delivering %d queued messages, %d dropped during backlog", q.count, q.dropped)
	}
	q.count = 0
	q.head = 0
	q.dropped = 0
	return out
}

func (q *outQueue) pending() int {
	return q.count
}
