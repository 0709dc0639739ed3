package adc

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	pointerConv   = 0x00
	pointerConfig = 0x01

	fullScaleVolts = 4.096 // PGA setting used below
	supplyVolts    = 3.3   // rain module output swings 0..VCC
)

// ADS1115 reads one single-ended channel of an ADS1115 in single-shot mode.
type ADS1115 struct {
	dev     *i2c.Dev
	bus     i2c.BusCloser
	channel int
}

// NewADS1115 opens the I2C bus and returns a reader for channel (0..3).
func NewADS1115(busName string, addr uint16, channel int) (*ADS1115, error) {
	if _, err := configWord(channel); err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	return &ADS1115{
		dev:     &i2c.Dev{Addr: addr, Bus: bus},
		bus:     bus,
		channel: channel,
	}, nil
}

// ReadRaw starts a conversion, waits for it and returns it scaled to 0..MaxRaw.
func (a *ADS1115) ReadRaw() (uint16, error) {
	cfg, err := configWord(a.channel)
	if err != nil {
		return 0, err
	}
	if err := a.dev.Tx([]byte{pointerConfig, byte(cfg >> 8), byte(cfg)}, nil); err != nil {
		return 0, fmt.Errorf("write config: %w", err)
	}

	// 860 SPS -> ~1.2ms per conversion.
	time.Sleep(2 * time.Millisecond)

	buf := make([]byte, 2)
	if err := a.dev.Tx([]byte{pointerConv}, buf); err != nil {
		return 0, fmt.Errorf("read conversion: %w", err)
	}
	return scale(int16(buf[0])<<8 | int16(buf[1])), nil
}

// Close releases the I2C bus.
func (a *ADS1115) Close() error {
	if a.bus != nil {
		return a.bus.Close()
	}
	return nil
}

// configWord builds the config register for a single-shot conversion of a
// single-ended channel at ±4.096V and 860 SPS, comparator disabled.
func configWord(channel int) (uint16, error) {
	if channel < 0 || channel > 3 {
		return 0, fmt.Errorf("invalid channel %d", channel)
	}
	var cfg uint16 = 0x8000 // OS = 1 (start single conversion)
	cfg |= uint16(0x4+channel) << 12
	cfg |= 0x1 << 9 // PGA ±4.096V
	cfg |= 1 << 8   // single-shot mode
	cfg |= 0x7 << 5 // 860 SPS
	cfg |= 0x3      // comparator disabled
	return cfg, nil
}

// scale maps a conversion code to 12-bit counts of the module supply.
func scale(code int16) uint16 {
	if code <= 0 {
		return 0
	}
	volts := float64(code) * fullScaleVolts / 32768.0
	v := volts / supplyVolts * MaxRaw
	if v >= MaxRaw {
		return MaxRaw
	}
	return uint16(v + 0.5)
}
