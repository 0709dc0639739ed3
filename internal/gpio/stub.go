//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealLine is not available on non-Linux platforms.
type RealLine struct{}

// NewRealLine returns an error on non-Linux platforms.
func NewRealLine(chip string, offset int) (*RealLine, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealLine) Read() (bool, error) {
	return false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealLine) Close() error {
	return nil
}

// RealEdgeWatcher is not available on non-Linux platforms.
type RealEdgeWatcher struct{}

// NewRealEdgeWatcher returns an error on non-Linux platforms.
func NewRealEdgeWatcher(chip string, offset int, handle EdgeHandler) (*RealEdgeWatcher, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (w *RealEdgeWatcher) Close() error {
	return nil
}
