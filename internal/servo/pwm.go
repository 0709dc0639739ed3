package servo

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// PWM drives a servo from a periph pin capable of hardware PWM.
type PWM struct {
	pin gpio.PinIO
}

// NewPWM looks up the named pin (e.g. "GPIO13") after initialising the host.
func NewPWM(name string) (*PWM, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("unknown pin %q", name)
	}
	return &PWM{pin: pin}, nil
}

// SetAngle outputs the pulse for deg at 50Hz.
func (p *PWM) SetAngle(deg int) error {
	width, err := PulseWidth(deg)
	if err != nil {
		return err
	}
	duty := gpio.Duty(int64(gpio.DutyMax) * int64(width) / int64(Period))
	if err := p.pin.PWM(duty, 50*physic.Hertz); err != nil {
		return fmt.Errorf("pwm %s: %w", p.pin, err)
	}
	return nil
}

// Close stops the PWM output.
func (p *PWM) Close() error {
	return p.pin.Halt()
}
