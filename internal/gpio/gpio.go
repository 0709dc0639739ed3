// Package gpio provides GPIO input reading with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// LineReader reads a single digital input.
type LineReader interface {
	// Read returns the raw level of the line (true = high).
	// Interpretation (which level means wet) is left to the caller.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// EdgeHandler receives the monotonic timestamp of a qualifying edge.
// It is called from the watcher's own goroutine and must not block.
type EdgeHandler func(ts time.Duration)

// EdgeWatcher delivers edges to an EdgeHandler until closed.
type EdgeWatcher interface {
	Close() error
}

// Default line offsets (BCM numbering).
const (
	DefaultRainLine = 26 // rain module D0
	DefaultHallLine = 12 // anemometer hall sensor
)

const consumer = "weather-station"
