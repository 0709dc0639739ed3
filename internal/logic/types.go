// Package logic contains the pure control logic of the weather station:
// wetness estimation, actuator scheduling and pulse-to-speed conversion.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time / time.Duration parameters.
package logic

import "time"

// Polarity describes which level of the rain module's digital line means wet.
type Polarity string

const (
	ActiveLow  Polarity = "ACTIVE_LOW"  // line pulled low when wet (typical module)
	ActiveHigh Polarity = "ACTIVE_HIGH" // line driven high when wet
)

// Wet interprets a raw line level under the polarity.
func (p Polarity) Wet(lineHigh bool) bool {
	if p == ActiveHigh {
		return lineHigh
	}
	return !lineHigh
}

// Position is the commanded position of the two-position actuator.
type Position string

const (
	PositionDry Position = "DRY"
	PositionWet Position = "WET"
)

// Source tells who commanded an actuator move.
type Source string

const (
	SourceBoot     Source = "BOOT"
	SourceAuto     Source = "AUTO"
	SourceOverride Source = "OVERRIDE"
)

// Command is an actuator move to be written to the hardware.
type Command struct {
	Time     time.Time
	Position Position
	Angle    int
	Source   Source
}

// WetnessParams holds the rain sensor thresholds. Raw values are ADC counts.
type WetnessParams struct {
	BootSamples       int           `yaml:"boot_samples"`
	BootSampleGap     time.Duration `yaml:"boot_sample_gap"`
	PolaritySamples   int           `yaml:"polarity_samples"`
	PolaritySampleGap time.Duration `yaml:"polarity_sample_gap"`
	TickSamples       int           `yaml:"tick_samples"`
	TickSampleGap     time.Duration `yaml:"tick_sample_gap"`

	SaturationLevel   float64 `yaml:"saturation_level"`   // boot average at or above this is not trusted
	FallbackDryRef    float64 `yaml:"fallback_dry_ref"`   // used when the boot average saturates
	PolarityTolerance float64 `yaml:"polarity_tolerance"` // max |avg - dryRef| to call the plate dry at boot
	WetMargin         float64 `yaml:"wet_margin"`         // initial wetRef = dryRef - WetMargin
	TriggerDrop       float64 `yaml:"trigger_drop"`       // raw + TriggerDrop < dryRef => wet
	DryHysteresis     float64 `yaml:"dry_hysteresis"`     // dryRef only drifts toward readings within this band above it
	MinDenominator    float64 `yaml:"min_denominator"`
	DryRefWeight      float64 `yaml:"dry_ref_weight"`    // EMA weight of the old dryRef
	WetRelaxDivisor   float64 `yaml:"wet_relax_divisor"` // wetRef moves 1/divisor of the gap per dry tick
	EaseWet           float64 `yaml:"ease_wet"`
	EaseDry           float64 `yaml:"ease_dry"`

	// Polarity is detected once at boot unless set in the config file.
	Polarity Polarity `yaml:"polarity,omitempty"`
}

// DefaultWetnessParams returns the thresholds tuned for a 12-bit rain module.
func DefaultWetnessParams() WetnessParams {
	return WetnessParams{
		BootSamples:       30,
		BootSampleGap:     8 * time.Millisecond,
		PolaritySamples:   12,
		PolaritySampleGap: 4 * time.Millisecond,
		TickSamples:       4,
		TickSampleGap:     2 * time.Millisecond,
		SaturationLevel:   4000,
		FallbackDryRef:    3500,
		PolarityTolerance: 150,
		WetMargin:         80,
		TriggerDrop:       90,
		DryHysteresis:     80,
		MinDenominator:    80,
		DryRefWeight:      199,
		WetRelaxDivisor:   300,
		EaseWet:           0.65,
		EaseDry:           0.25,
	}
}

// ActuatorParams holds the servo angles and timing guards.
type ActuatorParams struct {
	DryAngle    int           `yaml:"dry_angle"`
	WetAngle    int           `yaml:"wet_angle"`
	WetDebounce time.Duration `yaml:"wet_debounce"`  // continuous wet before moving to wet
	DryDebounce time.Duration `yaml:"dry_debounce"`  // continuous dry before moving to dry
	MinWetDwell time.Duration `yaml:"min_wet_dwell"` // minimum time at wet before leaving
	MinDryDwell time.Duration `yaml:"min_dry_dwell"` // minimum time at dry before leaving
}

// DefaultActuatorParams returns the SG90 cover defaults.
func DefaultActuatorParams() ActuatorParams {
	return ActuatorParams{
		DryAngle:    100,
		WetAngle:    5,
		WetDebounce: 800 * time.Millisecond,
		DryDebounce: 1200 * time.Millisecond,
		MinWetDwell: 10 * time.Second,
		MinDryDwell: 5 * time.Second,
	}
}

// Angle returns the servo angle for a position.
func (p ActuatorParams) Angle(pos Position) int {
	if pos == PositionWet {
		return p.WetAngle
	}
	return p.DryAngle
}

// WindParams holds the anemometer calibration.
type WindParams struct {
	PulsesPerRevolution int           `yaml:"pulses_per_revolution"`
	MinPulseInterval    time.Duration `yaml:"min_pulse_interval"`
	Window              time.Duration `yaml:"window"`
	MinRPM              float64       `yaml:"min_rpm"` // below this the cups are treated as still
	SpeedSlope          float64       `yaml:"speed_slope"`
	SpeedOffset         float64       `yaml:"speed_offset"`
}

// DefaultWindParams returns the calibration for a single-magnet cup anemometer.
func DefaultWindParams() WindParams {
	return WindParams{
		PulsesPerRevolution: 1,
		MinPulseInterval:    20 * time.Millisecond,
		Window:              10 * time.Second,
		MinRPM:              10,
		SpeedSlope:          0.0063,
		SpeedOffset:         1.9973,
	}
}

// WetnessInput is one tick of rain sensor readings.
type WetnessInput struct {
	Samples  []uint16 // repeated analog reads, averaged by Update
	LineHigh bool     // raw digital line level
	Time     time.Time
}

// WetnessSample is the derived output of one estimator tick.
type WetnessSample struct {
	Time           time.Time
	Raw            float64
	IsWetHardware  bool
	IsWetByDrop    bool
	IsWet          bool
	DisplayPercent float64
}

// Calibration is a copy of the estimator's learned references.
type Calibration struct {
	DryRef   float64
	WetRef   float64
	Polarity Polarity
}

// WindSample is the output of one completed wind window.
type WindSample struct {
	Time  time.Time
	RPM   float64
	Speed float64 // m/s
}

// TransitionCounts tracks actuator moves since startup.
type TransitionCounts struct {
	ToWet     int
	ToDry     int
	Overrides int
}
