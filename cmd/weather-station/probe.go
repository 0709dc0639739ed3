package main

import (
	"fmt"
	"io"

	"github.com/sweeney/weather-station/internal/adc"
	"github.com/sweeney/weather-station/internal/config"
	"github.com/sweeney/weather-station/internal/env"
	"github.com/sweeney/weather-station/internal/gpio"
)

// printSensors prints one reading of every input. The servo is not touched.
func printSensors(w io.Writer, cfg *config.Config, analog adc.Reader, rainLine gpio.LineReader, ambient env.Sensor) error {
	raw, err := adc.Average(analog, cfg.Rain.TickSamples, cfg.Rain.TickSampleGap)
	if err != nil {
		return fmt.Errorf("read adc: %w", err)
	}
	high, err := rainLine.Read()
	if err != nil {
		return fmt.Errorf("read rain line: %w", err)
	}
	level := "LOW"
	if high {
		level = "HIGH"
	}
	r := ambient.Sense()

	fmt.Fprintf(w, "rain: raw=%.0f line=%s\n", raw, level)
	fmt.Fprintf(w, "env: temperature=%.2f humidity=%.2f pressure=%.2f\n", r.TempC, r.Humidity, r.PressureHPa)
	return nil
}
