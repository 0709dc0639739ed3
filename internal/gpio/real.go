//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealLine reads a digital input from actual hardware using Linux GPIO character device.
type RealLine struct {
	line *gpiocdev.Line
}

// NewRealLine requests offset on chip as an input with pull-up. Rain modules
// have an open-collector D0, so the line idles high.
func NewRealLine(chip string, offset int) (*RealLine, error) {
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("request line %s:%d: %w", chip, offset, err)
	}
	return &RealLine{line: line}, nil
}

// Read returns the raw level of the line.
func (r *RealLine) Read() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read line: %w", err)
	}
	return v == 1, nil
}

// Close releases the line.
// Reconfigures it to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (r *RealLine) Close() error {
	return closeLine(r.line)
}

// RealEdgeWatcher forwards falling edges of a line to a handler. The kernel
// timestamps each edge, so the handler sees edge time rather than delivery time.
type RealEdgeWatcher struct {
	line *gpiocdev.Line
}

// NewRealEdgeWatcher requests offset on chip with falling-edge detection and
// calls handle for every edge event.
func NewRealEdgeWatcher(chip string, offset int, handle EdgeHandler) (*RealEdgeWatcher, error) {
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithConsumer(consumer),
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			handle(evt.Timestamp)
		}))
	if err != nil {
		return nil, fmt.Errorf("request edge line %s:%d: %w", chip, offset, err)
	}
	return &RealEdgeWatcher{line: line}, nil
}

// Close stops edge delivery and releases the line.
func (w *RealEdgeWatcher) Close() error {
	return closeLine(w.line)
}

func closeLine(line *gpiocdev.Line) error {
	if line == nil {
		return nil
	}
	var errs []error
	if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure line: %w", err))
	}
	if err := line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close line: %w", err))
	}
	return errors.Join(errs...)
}
