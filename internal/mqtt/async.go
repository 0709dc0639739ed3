package mqtt

import (
	"errors"
	"log"
	"sync"
	"time"
)

// ErrQueueFull is returned when a publish is dropped because the worker is
// still busy with earlier ones.
var ErrQueueFull = errors.New("mqtt: publish queue full")

// ErrClosed is returned for publishes after Close.
var ErrClosed = errors.New("mqtt: publisher closed")

type job struct {
	name string
	send func() error
}

// AsyncPublisher hands every publish to a single worker goroutine so the
// caller never waits on the broker. Publishes are sent in order; when the
// queue is full new ones are dropped and ErrQueueFull is returned.
type AsyncPublisher struct {
	next Publisher
	jobs chan job
	done chan struct{}

	// DrainTimeout bounds how long Close waits for queued publishes.
	DrainTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewAsyncPublisher starts the worker. depth is the queue length (minimum 1).
func NewAsyncPublisher(next Publisher, depth int) *AsyncPublisher {
	if depth < 1 {
		depth = 1
	}
	a := &AsyncPublisher{
		next:         next,
		jobs:         make(chan job, depth),
		done:         make(chan struct{}),
		DrainTimeout: 5 * time.Second,
	}
	go a.work()
	return a
}

func (a *AsyncPublisher) work() {
	defer close(a.done)
	for j := range a.jobs {
		if err := j.send(); err != nil {
			log.Printf("mqtt: publish %s: %v", j.name, err)
		}
	}
}

func (a *AsyncPublisher) enqueue(j job) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.jobs <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// PublishTelemetry queues one set of readings.
func (a *AsyncPublisher) PublishTelemetry(t Telemetry) error {
	return a.enqueue(job{"telemetry", func() error { return a.next.PublishTelemetry(t) }})
}

// PublishGPS queues the station position.
func (a *AsyncPublisher) PublishGPS(lat, lon float64) error {
	return a.enqueue(job{"gps", func() error { return a.next.PublishGPS(lat, lon) }})
}

// PublishSystem queues a lifecycle event.
func (a *AsyncPublisher) PublishSystem(event SystemEvent) error {
	return a.enqueue(job{event.Event, func() error { return a.next.PublishSystem(event) }})
}

// Close stops accepting publishes, waits up to DrainTimeout for the queue to
// empty and closes the wrapped publisher.
func (a *AsyncPublisher) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.jobs)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
	case <-time.After(a.DrainTimeout):
		log.Printf("mqtt: %d publishes still queued at close", len(a.jobs))
	}
	return a.next.Close()
}
