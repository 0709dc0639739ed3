// Package adc reads the rain module's analog output.
// The real implementation drives an ADS1115 over I2C with periph.io.
// The fake implementation allows testing without hardware.
package adc

import (
	"fmt"
	"time"
)

// MaxRaw is the top of the 12-bit count range all readers report in.
const MaxRaw = 4095

// Reader reads one raw analog conversion.
type Reader interface {
	// ReadRaw returns a reading in 0..MaxRaw.
	ReadRaw() (uint16, error)

	// Close releases the bus.
	Close() error
}

// ReadN takes n readings, sleeping gap between them, and returns them all.
func ReadN(r Reader, n int, gap time.Duration) ([]uint16, error) {
	out := make([]uint16, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 && gap > 0 {
			time.Sleep(gap)
		}
		v, err := r.ReadRaw()
		if err != nil {
			return nil, fmt.Errorf("read %d/%d: %w", i+1, n, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Average takes n readings gap apart and returns their mean.
func Average(r Reader, n int, gap time.Duration) (float64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("average of %d samples", n)
	}
	samples, err := ReadN(r, n, gap)
	if err != nil {
		return 0, err
	}
	var sum uint32
	for _, s := range samples {
		sum += uint32(s)
	}
	return float64(sum) / float64(n), nil
}
