package mqtt

import "log"

// bufferedMsg is a serialized publish waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO of publishes held while the broker is
// unreachable. When full, the oldest message is overwritten.
// Not safe for concurrent use; RealPublisher holds its mutex.
type outbox struct {
	buf     []bufferedMsg
	head    int // oldest message
	count   int
	dropped int // overwritten since the outbox was last empty
}

func newOutbox(capacity int) *outbox {
	return &outbox{buf: make([]bufferedMsg, capacity)}
}

func (o *outbox) push(msg bufferedMsg) {
	tail := (o.head + o.count) % len(o.buf)
	o.buf[tail] = msg
	if o.count < len(o.buf) {
		o.count++
		return
	}
	// Full: tail was the oldest slot.
	o.head = (o.head + 1) % len(o.buf)
	if o.dropped == 0 {
		log.Printf("mqtt: outbox full (%d messages), dropping oldest", len(o.buf))
	}
	o.dropped++
}

// front returns the oldest message without removing it.
func (o *outbox) front() (bufferedMsg, bool) {
	if o.count == 0 {
		return bufferedMsg{}, false
	}
	return o.buf[o.head], true
}

// pop removes the oldest message.
func (o *outbox) pop() {
	if o.count == 0 {
		return
	}
	o.buf[o.head] = bufferedMsg{}
	o.head = (o.head + 1) % len(o.buf)
	o.count--
	if o.count == 0 {
		o.head = 0
	}
}

// takeDropped returns and clears the overwrite count.
func (o *outbox) takeDropped() int {
	n := o.dropped
	o.dropped = 0
	return n
}

func (o *outbox) len() int {
	return o.count
}
