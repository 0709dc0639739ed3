package mqtt

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Base is the topic base used when formatting messages.
	Base string

	// Telemetry contains every telemetry set that was published.
	Telemetry []Telemetry

	// Messages contains the topic/payload pairs in publish order.
	Messages []Message

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// GPS contains every position published as [lat, lon].
	GPS [][2]float64

	// PublishError, if set, will be returned by PublishTelemetry and PublishGPS.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// OnOverride receives commands passed to Deliver.
	OnOverride OverrideHandler

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	// Gate, if set, makes every publish wait until it is closed.
	Gate chan struct{}
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher(base string) *FakePublisher {
	return &FakePublisher{Base: base}
}

// PublishTelemetry records the readings and their formatted messages.
func (f *FakePublisher) PublishTelemetry(t Telemetry) error {
	f.wait()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Telemetry = append(f.Telemetry, t)
	f.Messages = append(f.Messages, FormatTelemetry(f.Base, t)...)
	return nil
}

// PublishGPS records the position.
func (f *FakePublisher) PublishGPS(lat, lon float64) error {
	f.wait()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.GPS = append(f.GPS, [2]float64{lat, lon})
	f.Messages = append(f.Messages, Message{Topic(f.Base, TopicGPS), FormatGPS(lat, lon)})
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.wait()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

func (f *FakePublisher) wait() {
	if f.Gate != nil {
		<-f.Gate
	}
}

// Deliver simulates a message arriving on the motor topic.
// Returns true if it was a valid command and was handed to OnOverride.
func (f *FakePublisher) Deliver(payload []byte) bool {
	pos, ok := ParseOverride(payload)
	if !ok || f.OnOverride == nil {
		return false
	}
	f.OnOverride(pos)
	return true
}

// LastPayload returns the most recent payload published on topic name.
func (f *FakePublisher) LastPayload(name string) (string, bool) {
	topic := Topic(f.Base, name)
	for i := len(f.Messages) - 1; i >= 0; i-- {
		if f.Messages[i].Topic == topic {
			return string(f.Messages[i].Payload), true
		}
	}
	return "", false
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.Telemetry = nil
	f.Messages = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.GPS = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
