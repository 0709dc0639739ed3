// Package config loads the station configuration from a YAML file and
// command-line flags. Flags override values present in the file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/weather-station/internal/gpio"
	"github.com/sweeney/weather-station/internal/logic"
)

// Config represents the daemon configuration.
type Config struct {
	Station  StationConfig        `yaml:"station"`
	Poll     time.Duration        `yaml:"poll"`
	HTTP     string               `yaml:"http"`
	Rain     logic.WetnessParams  `yaml:"rain"`
	Actuator logic.ActuatorParams `yaml:"actuator"`
	Wind     logic.WindParams     `yaml:"wind"`
	Pins     PinConfig            `yaml:"pins"`
	I2C      I2CConfig            `yaml:"i2c"`
	MQTT     MQTTConfig           `yaml:"mqtt"`
}

// StationConfig identifies the station.
type StationConfig struct {
	ID        string  `yaml:"id"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// PinConfig holds the GPIO wiring (BCM numbering).
type PinConfig struct {
	Chip      string `yaml:"chip"`
	RainLine  int    `yaml:"rain_line"`  // rain module D0
	HallLine  int    `yaml:"hall_line"`  // anemometer hall sensor
	ServoName string `yaml:"servo_name"` // periph pin name with hardware PWM
}

// I2CConfig holds the I2C bus and device addresses.
type I2CConfig struct {
	Bus            string   `yaml:"bus"`
	ADS1115Address uint16   `yaml:"ads1115_address"`
	ADS1115Channel int      `yaml:"ads1115_channel"`
	BME280Address  []uint16 `yaml:"bme280_addresses"` // tried in order
}

// MQTTConfig holds the broker connection and topics.
type MQTTConfig struct {
	Broker          string        `yaml:"broker"`
	ClientID        string        `yaml:"client_id"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	TopicBase       string        `yaml:"topic_base"`
	PublishInterval time.Duration `yaml:"publish_interval"`
	Heartbeat       time.Duration `yaml:"heartbeat"` // 0 disables
	BufferSize      int           `yaml:"buffer_size"`
}

// Default returns the configuration of the reference station.
func Default() *Config {
	return &Config{
		Station: StationConfig{
			ID:        "weather_station_01",
			Latitude:  51.81208300695626,
			Longitude: 4.516824735424278,
		},
		Poll:     80 * time.Millisecond,
		HTTP:     ":80",
		Rain:     logic.DefaultWetnessParams(),
		Actuator: logic.DefaultActuatorParams(),
		Wind:     logic.DefaultWindParams(),
		Pins: PinConfig{
			Chip:      "gpiochip0",
			RainLine:  gpio.DefaultRainLine,
			HallLine:  gpio.DefaultHallLine,
			ServoName: "GPIO13",
		},
		I2C: I2CConfig{
			Bus:            "1",
			ADS1115Address: 0x48,
			ADS1115Channel: 0,
			BME280Address:  []uint16{0x76, 0x77},
		},
		MQTT: MQTTConfig{
			Broker:          "tcp://localhost:1883",
			ClientID:        "weather_station_01",
			TopicBase:       "homestations/1053258/1",
			PublishInterval: 10 * time.Second,
			Heartbeat:       15 * time.Minute,
			BufferSize:      100,
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults; fields missing from the file keep their default values.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.ensureDefaults()
	return cfg, nil
}

// Flags holds the command-line overrides.
type Flags struct {
	Path       string
	Poll       time.Duration
	Broker     string
	HTTP       string
	PrintState bool
}

// RegisterFlags defines the daemon flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Path, "config", "/etc/weather-station.yaml", "Path to YAML config file")
	fs.DurationVar(&f.Poll, "poll", 0, "Control loop period (overrides config)")
	fs.StringVar(&f.Broker, "broker", "", "MQTT broker address (overrides config)")
	fs.StringVar(&f.HTTP, "http", "", `HTTP status address (overrides config, "off" disables)`)
	fs.BoolVar(&f.PrintState, "print-state", false, "Print one reading of every sensor and exit")
	return f
}

// FromFlags loads the file named by f.Path and applies the flag overrides.
func FromFlags(f *Flags) (*Config, error) {
	cfg, err := Load(f.Path)
	if err != nil {
		return nil, err
	}
	if f.Poll > 0 {
		cfg.Poll = f.Poll
	}
	if f.Broker != "" {
		cfg.MQTT.Broker = f.Broker
	}
	switch f.HTTP {
	case "":
	case "off":
		cfg.HTTP = ""
	default:
		cfg.HTTP = f.HTTP
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration values the control loop cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Poll <= 0 {
		errs = append(errs, errors.New("poll must be > 0"))
	}
	if c.Rain.TickSamples <= 0 {
		errs = append(errs, errors.New("rain.tick_samples must be > 0"))
	}
	if c.Rain.WetRelaxDivisor < 1 {
		errs = append(errs, errors.New("rain.wet_relax_divisor must be >= 1"))
	}
	if c.Rain.MinDenominator <= 0 {
		errs = append(errs, errors.New("rain.min_denominator must be > 0"))
	}
	switch c.Rain.Polarity {
	case "", logic.ActiveLow, logic.ActiveHigh:
	default:
		errs = append(errs, fmt.Errorf("rain.polarity: unknown value %q", c.Rain.Polarity))
	}
	// Commands on the motor topic are "0"/"1"; published angles must never look like one.
	for _, a := range []int{c.Actuator.DryAngle, c.Actuator.WetAngle} {
		if a < 2 || a > 180 {
			errs = append(errs, fmt.Errorf("actuator angle %d out of range 2..180", a))
		}
	}
	if c.Wind.PulsesPerRevolution <= 0 {
		errs = append(errs, errors.New("wind.pulses_per_revolution must be > 0"))
	}
	if c.Wind.Window <= 0 {
		errs = append(errs, errors.New("wind.window must be > 0"))
	}
	if c.MQTT.TopicBase == "" {
		errs = append(errs, errors.New("mqtt.topic_base must be set"))
	}
	if c.MQTT.PublishInterval <= 0 {
		errs = append(errs, errors.New("mqtt.publish_interval must be > 0"))
	}
	if c.MQTT.Heartbeat < 0 {
		errs = append(errs, errors.New("mqtt.heartbeat must be >= 0"))
	}
	return errors.Join(errs...)
}

// ensureDefaults fills zero values left by a partial config file.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Poll == 0 {
		c.Poll = def.Poll
	}
	if c.Station.ID == "" {
		c.Station.ID = def.Station.ID
	}

	r, dr := &c.Rain, def.Rain
	if r.BootSamples == 0 {
		r.BootSamples = dr.BootSamples
	}
	if r.PolaritySamples == 0 {
		r.PolaritySamples = dr.PolaritySamples
	}
	if r.TickSamples == 0 {
		r.TickSamples = dr.TickSamples
	}
	if r.SaturationLevel == 0 {
		r.SaturationLevel = dr.SaturationLevel
	}
	if r.FallbackDryRef == 0 {
		r.FallbackDryRef = dr.FallbackDryRef
	}
	if r.MinDenominator == 0 {
		r.MinDenominator = dr.MinDenominator
	}
	if r.DryRefWeight == 0 {
		r.DryRefWeight = dr.DryRefWeight
	}
	if r.WetRelaxDivisor == 0 {
		r.WetRelaxDivisor = dr.WetRelaxDivisor
	}

	if c.Wind.PulsesPerRevolution == 0 {
		c.Wind.PulsesPerRevolution = def.Wind.PulsesPerRevolution
	}
	if c.Wind.Window == 0 {
		c.Wind.Window = def.Wind.Window
	}

	if c.Pins.Chip == "" {
		c.Pins.Chip = def.Pins.Chip
	}
	if c.I2C.Bus == "" {
		c.I2C.Bus = def.I2C.Bus
	}
	if len(c.I2C.BME280Address) == 0 {
		c.I2C.BME280Address = def.I2C.BME280Address
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = c.Station.ID
	}
	if c.MQTT.TopicBase == "" {
		c.MQTT.TopicBase = def.MQTT.TopicBase
	}
	if c.MQTT.PublishInterval == 0 {
		c.MQTT.PublishInterval = def.MQTT.PublishInterval
	}
	if c.MQTT.BufferSize == 0 {
		c.MQTT.BufferSize = def.MQTT.BufferSize
	}
}
