package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	TopicBase  string
	BufferSize int

	// OnOverride, if set, is called for each valid command on the motor topic.
	OnOverride OverrideHandler
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are queued and sent on reconnect.
type RealPublisher struct {
	client paho.Client
	base   string

	mu     sync.Mutex
	outbox *outbox
}

// NewRealPublisher creates a publisher and starts connecting to the broker.
// A broker that is not reachable yet is not an error: the client keeps
// retrying in the background and messages are queued meanwhile.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	p := &RealPublisher{
		base:   o.TopicBase,
		outbox: newOutbox(o.BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(Topic(o.TopicBase, TopicSystem), string(will), 1, false).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		}).
		SetOnConnectHandler(func(c paho.Client) {
			log.Printf("mqtt: connected to %s", o.Broker)
			if o.OnOverride != nil {
				p.subscribe(c, o.OnOverride)
			}
			p.flush()
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) subscribe(c paho.Client, handle OverrideHandler) {
	topic := Topic(p.base, TopicMotor)
	token := c.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		pos, ok := ParseOverride(msg.Payload())
		if !ok {
			return
		}
		log.Printf("mqtt: override %s from %s", pos, msg.Topic())
		handle(pos)
	})
	// Called from the connect handler; waiting here would stall the client.
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("mqtt: subscribe %s: %v", topic, token.Error())
		}
	}()
}

// flush sends everything queued while disconnected.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	msgs, dropped := p.outbox.take()
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	log.Printf("mqtt: sending %d queued messages (%d dropped)", len(msgs), dropped)
	for _, m := range msgs {
		// Non-blocking: paho queues internally once connected.
		p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.outbox.add(queuedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishTelemetry sends each reading to its topic (QoS 0, not retained).
func (p *RealPublisher) PublishTelemetry(t Telemetry) error {
	var errs []error
	for _, m := range FormatTelemetry(p.base, t) {
		if err := p.publish(m.Topic, 0, false, m.Payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishGPS sends the station position (retained).
func (p *RealPublisher) PublishGPS(lat, lon float64) error {
	return p.publish(Topic(p.base, TopicGPS), 1, true, FormatGPS(lat, lon))
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(Topic(p.base, TopicSystem), 1, event.Retained, payload)
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
