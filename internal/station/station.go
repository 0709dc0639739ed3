// Package station wires the sensors and the servo to the control logic.
// Bootstrap performs the one-shot boot calibration; Tick runs one control
// period. The run loop and the integration tests share both.
package station

import (
	"log"
	"time"

	"github.com/sweeney/weather-station/internal/adc"
	"github.com/sweeney/weather-station/internal/env"
	"github.com/sweeney/weather-station/internal/gpio"
	"github.com/sweeney/weather-station/internal/logic"
	"github.com/sweeney/weather-station/internal/servo"
	"github.com/sweeney/weather-station/internal/status"
)

// Params groups the tunables of the three control components.
type Params struct {
	Rain     logic.WetnessParams
	Actuator logic.ActuatorParams
	Wind     logic.WindParams
}

// Hardware holds the station's devices.
type Hardware struct {
	ADC   adc.Reader
	Rain  gpio.LineReader
	Servo servo.Actuator
	Env   env.Sensor
}

// Station owns the estimator, scheduler and wind meter. Apart from the
// pulse counter it must only be used from one goroutine.
type Station struct {
	hw    Hardware
	p     Params
	est   *logic.WetnessEstimator
	sched *logic.Scheduler
	wind  *logic.WindMeter
	env   env.Reading

	readErrors int
	degraded   bool // last tick had no valid reading
}

// Result is the outcome of one tick.
type Result struct {
	Sample  logic.WetnessSample
	Command *logic.Command // nil when the servo did not move
	Wind    logic.WindSample
	Err     error // sensor read failure; the tick was treated as dry
}

// Bootstrap calibrates the rain sensor from boot-time readings, puts the
// servo at the dry position and starts the first wind window. The plate is
// assumed dry while this runs. Sensor failures here fall back to defaults
// and are logged; they are never fatal.
func Bootstrap(p Params, hw Hardware, now time.Time) *Station {
	bootAvg, err := adc.Average(hw.ADC, p.Rain.BootSamples, p.Rain.BootSampleGap)
	if err != nil {
		log.Printf("rain: boot read failed, using fallback: %v", err)
		bootAvg = p.Rain.SaturationLevel
	}
	dryRef, ok := logic.SeedDryRef(p.Rain, bootAvg)
	if !ok {
		log.Printf("rain: WARNING boot average %.0f not usable, dryRef=%.0f", bootAvg, dryRef)
	}

	detect := p.Rain.Polarity == ""
	var avg float64
	if detect {
		avg, err = adc.Average(hw.ADC, p.Rain.PolaritySamples, p.Rain.PolaritySampleGap)
		if err != nil {
			log.Printf("rain: polarity read failed: %v", err)
			avg = p.Rain.SaturationLevel
		}
	}

	// Sampled right after the polarity average so both describe the same moment.
	lineHigh, err := hw.Rain.Read()
	if err != nil {
		log.Printf("rain: boot line read failed, assuming idle (high): %v", err)
		lineHigh = true
	}

	if detect {
		p.Rain.Polarity = logic.DetectPolarity(p.Rain, dryRef, avg, lineHigh)
		log.Printf("rain: polarity detected=%s avg=%.0f line_high=%v", p.Rain.Polarity, avg, lineHigh)
	} else {
		log.Printf("rain: polarity configured=%s", p.Rain.Polarity)
	}

	s := &Station{
		hw:    hw,
		p:     p,
		est:   logic.NewWetnessEstimator(p.Rain, dryRef, lineHigh, now),
		sched: logic.NewScheduler(p.Actuator, now),
		wind:  logic.NewWindMeter(p.Wind, now),
		env:   env.Unavailable(),
	}
	cal := s.est.Calibration()
	log.Printf("rain: calibrated dryRef=%.1f wetRef=%.1f wet=%v", cal.DryRef, cal.WetRef, s.est.IsWet())

	s.apply(s.sched.Boot())
	return s
}

// PulseCounter returns the counter the anemometer edge watcher feeds.
func (s *Station) PulseCounter() *logic.PulseCounter {
	return s.wind.Counter()
}

// Tick runs one control period: sample the rain sensor, classify, step the
// scheduler, write any servo move and poll the wind meter.
func (s *Station) Tick(now time.Time) Result {
	var r Result

	samples, err := adc.ReadN(s.hw.ADC, s.p.Rain.TickSamples, s.p.Rain.TickSampleGap)
	var lineHigh bool
	if err == nil {
		lineHigh, err = s.hw.Rain.Read()
	}

	wet := false
	if err != nil {
		s.readErrors++
		if s.readErrors == 1 || s.readErrors%100 == 0 {
			log.Printf("rain: read failed (%d so far), treating tick as dry: %v", s.readErrors, err)
		}
		r.Err = err
		s.degraded = true
		r.Sample = s.wetness()
		r.Sample.Time = now
	} else {
		if s.readErrors > 0 {
			log.Printf("rain: reads recovered after %d failures", s.readErrors)
			s.readErrors = 0
		}
		s.degraded = false
		r.Sample = s.est.Update(logic.WetnessInput{Samples: samples, LineHigh: lineHigh, Time: now})
		wet = r.Sample.IsWet
	}

	if cmd := s.sched.Step(wet, now); cmd != nil {
		s.apply(*cmd)
		r.Command = cmd
	}

	r.Wind = s.wind.Sample(now)
	return r
}

// Override moves the servo to pos immediately.
func (s *Station) Override(pos logic.Position, now time.Time) logic.Command {
	cmd := s.sched.Override(pos, now)
	s.apply(cmd)
	return cmd
}

// SenseEnv refreshes the ambient reading.
func (s *Station) SenseEnv() env.Reading {
	s.env = s.hw.Env.Sense()
	return s.env
}

// State returns the station state for the status tracker.
func (s *Station) State() status.Station {
	return status.Station{
		Ready:       true,
		Wetness:     s.wetness(),
		Calibration: s.est.Calibration(),
		Position:    s.sched.Position(),
		Angle:       s.sched.Angle(),
		LastMove:    s.sched.LastChange(),
		Wind:        s.wind.Last(),
		Pulses:      s.wind.Counter().Pending(),
		Env:         s.env,
		Counts:      s.sched.Counts(),
	}
}

// wetness is the estimator's last sample, reported dry while reads fail.
func (s *Station) wetness() logic.WetnessSample {
	w := s.est.Last()
	if s.degraded {
		w.IsWet, w.IsWetHardware, w.IsWetByDrop = false, false, false
	}
	return w
}

func (s *Station) apply(cmd logic.Command) {
	log.Printf("servo: %s -> %s angle=%d", cmd.Source, cmd.Position, cmd.Angle)
	if err := s.hw.Servo.SetAngle(cmd.Angle); err != nil {
		log.Printf("servo: set angle %d: %v", cmd.Angle, err)
	}
}
