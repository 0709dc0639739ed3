package gpio

import (
	"errors"
	"sync"
	"time"
)

// FakeLine is a test double that returns scripted line levels.
type FakeLine struct {
	// Levels contains scripted values to return (true = high).
	// Each call to Read() consumes the next level.
	Levels []bool

	// index tracks current position in Levels
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeLine creates a FakeLine with the given levels.
func NewFakeLine(levels ...bool) *FakeLine {
	return &FakeLine{Levels: levels}
}

// Read returns the next scripted level.
// If levels are exhausted, returns the last level repeatedly.
func (f *FakeLine) Read() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Levels) == 0 {
		return false, errors.New("no levels configured")
	}

	level := f.Levels[f.index]
	if f.index < len(f.Levels)-1 {
		f.index++
	}

	return level, nil
}

// Close marks the line as closed.
func (f *FakeLine) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the line to the beginning of levels.
func (f *FakeLine) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeEdgeWatcher delivers edges injected by tests.
type FakeEdgeWatcher struct {
	mu      sync.Mutex
	handle  EdgeHandler
	closed  bool
	Emitted int
}

// NewFakeEdgeWatcher creates a watcher feeding handle.
func NewFakeEdgeWatcher(handle EdgeHandler) *FakeEdgeWatcher {
	return &FakeEdgeWatcher{handle: handle}
}

// Emit delivers an edge at ts. Edges after Close are dropped.
func (f *FakeEdgeWatcher) Emit(ts time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.Emitted++
	f.handle(ts)
}

// Close stops delivery.
func (f *FakeEdgeWatcher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeEdgeWatcher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
