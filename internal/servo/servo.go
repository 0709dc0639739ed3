// Package servo positions the rain cover servo.
// The real implementation drives a hardware PWM pin through periph.io.
// The fake implementation records the angles it was given.
package servo

import (
	"fmt"
	"time"
)

// Actuator moves the servo to an angle in degrees.
type Actuator interface {
	SetAngle(deg int) error
	Close() error
}

// Pulse timing of a hobby servo (SG90).
const (
	Period   = 20 * time.Millisecond // 50Hz
	MinPulse = 500 * time.Microsecond
	MaxPulse = 2400 * time.Microsecond
	MaxAngle = 180
)

// PulseWidth maps an angle to the high time of one PWM period.
func PulseWidth(deg int) (time.Duration, error) {
	if deg < 0 || deg > MaxAngle {
		return 0, fmt.Errorf("angle %d out of range 0..%d", deg, MaxAngle)
	}
	span := MaxPulse - MinPulse
	return MinPulse + span*time.Duration(deg)/MaxAngle, nil
}
