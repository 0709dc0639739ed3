package env

import (
	"errors"
	"fmt"
	"log"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// BME280 reads a Bosch BME280 over I2C.
type BME280 struct {
	dev *bmxx80.Dev
	bus i2c.BusCloser
}

// NewBME280 opens busName and probes addrs in order, keeping the first
// device that answers.
func NewBME280(busName string, addrs []uint16) (*BME280, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	var errs []error
	for _, addr := range addrs {
		dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
		if err != nil {
			errs = append(errs, fmt.Errorf("0x%02x: %w", addr, err))
			continue
		}
		log.Printf("BME280 found at 0x%02x", addr)
		return &BME280{dev: dev, bus: bus}, nil
	}
	bus.Close()
	return nil, fmt.Errorf("no BME280 on bus %q: %w", busName, errors.Join(errs...))
}

// Sense reads the sensor. A failed read yields Unavailable.
func (b *BME280) Sense() Reading {
	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		log.Printf("BME280 read failed: %v", err)
		return Unavailable()
	}
	return FromEnv(e)
}

// Close halts the device and releases the bus.
func (b *BME280) Close() error {
	return errors.Join(b.dev.Halt(), b.bus.Close())
}

// FromEnv converts periph units to °C, %RH and hPa.
func FromEnv(e physic.Env) Reading {
	return Reading{
		TempC:       e.Temperature.Celsius(),
		Humidity:    float64(e.Humidity) / float64(physic.PercentRH),
		PressureHPa: float64(e.Pressure) / float64(100*physic.Pascal),
	}
}
