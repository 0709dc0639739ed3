package mqtt

import "log"

// queuedMsg is a message held for delivery after reconnection.
type queuedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox keeps the most recent messages published while disconnected.
// Telemetry goes stale quickly, so on overflow the oldest entry is dropped.
// Not safe for concurrent use; the caller must synchronize.
type outbox struct {
	msgs    []queuedMsg
	limit   int
	dropped int
}

func newOutbox(limit int) *outbox {
	if limit < 1 {
		limit = 1
	}
	return &outbox{limit: limit}
}

func (o *outbox) add(m queuedMsg) {
	if len(o.msgs) == o.limit {
		if o.dropped == 0 {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", o.limit)
		}
		o.dropped++
		copy(o.msgs, o.msgs[1:])
		o.msgs = o.msgs[:len(o.msgs)-1]
	}
	o.msgs = append(o.msgs, m)
}

// take returns the queued messages oldest first and empties the outbox,
// along with how many were dropped since the last take.
func (o *outbox) take() ([]queuedMsg, int) {
	msgs, dropped := o.msgs, o.dropped
	o.msgs = nil
	o.dropped = 0
	return msgs, dropped
}

func (o *outbox) size() int {
	return len(o.msgs)
}
