// Package env reads ambient temperature, humidity and pressure.
package env

import "math"

// Reading is one environmental measurement. Fields are NaN when the sensor
// is missing or the read failed.
type Reading struct {
	TempC       float64
	Humidity    float64 // %RH
	PressureHPa float64
}

// Unavailable is the reading reported without a working sensor.
func Unavailable() Reading {
	return Reading{TempC: math.NaN(), Humidity: math.NaN(), PressureHPa: math.NaN()}
}

// Valid reports whether the reading carries measurements.
func (r Reading) Valid() bool {
	return !math.IsNaN(r.TempC)
}

// Sensor returns the latest reading.
type Sensor interface {
	Sense() Reading
	Close() error
}

// None is a Sensor for stations without one.
type None struct{}

// Sense returns Unavailable.
func (None) Sense() Reading { return Unavailable() }

// Close does nothing.
func (None) Close() error { return nil }
