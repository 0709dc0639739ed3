package logic

import (
	"math"
	"time"
)

// SeedDryRef turns the boot-time average of the analog input into the initial
// dry reference. A saturated average is not trusted: ok is false and the
// fallback reference is returned instead.
func SeedDryRef(p WetnessParams, bootAverage float64) (dryRef float64, ok bool) {
	if bootAverage >= p.SaturationLevel || math.IsNaN(bootAverage) {
		return p.FallbackDryRef, false
	}
	return bootAverage, true
}

// initialWetRef places wetRef a margin below dryRef without going non-positive.
func initialWetRef(p WetnessParams, dryRef float64) float64 {
	switch {
	case dryRef > p.WetMargin:
		return dryRef - p.WetMargin
	case dryRef > 20:
		return dryRef - 20
	default:
		return dryRef
	}
}

// DetectPolarity infers the digital line polarity from a second boot average.
// When that average sits close to dryRef the plate is known dry, so whatever
// level the line shows is its dry level. Otherwise the typical active-low
// module is assumed.
func DetectPolarity(p WetnessParams, dryRef, average float64, lineHigh bool) Polarity {
	if average < p.SaturationLevel && math.Abs(average-dryRef) < p.PolarityTolerance {
		if lineHigh {
			return ActiveLow
		}
		return ActiveHigh
	}
	return ActiveLow
}

// WetnessEstimator tracks adaptive dry/wet references and classifies each tick.
type WetnessEstimator struct {
	p WetnessParams

	dryRef float64
	wetRef float64

	displayPercent float64
	isWet          bool
	lastChange     time.Time
	last           WetnessSample
}

// NewWetnessEstimator creates an estimator seeded with dryRef. p.Polarity must
// already be set; lineHigh is the digital line level at boot and gives the
// initial classification.
func NewWetnessEstimator(p WetnessParams, dryRef float64, lineHigh bool, now time.Time) *WetnessEstimator {
	if p.Polarity == "" {
		p.Polarity = ActiveLow
	}
	e := &WetnessEstimator{
		p:          p,
		dryRef:     dryRef,
		wetRef:     initialWetRef(p, dryRef),
		isWet:      p.Polarity.Wet(lineHigh),
		lastChange: now,
	}
	e.last = WetnessSample{Time: now, Raw: math.NaN(), IsWetHardware: e.isWet, IsWet: e.isWet}
	return e
}

// Update runs one estimator tick and returns the classification.
func (e *WetnessEstimator) Update(in WetnessInput) WetnessSample {
	raw := mean(in.Samples)
	if math.IsNaN(raw) {
		// Nothing to learn from; keep the references and report the last state.
		s := e.last
		s.Time = in.Time
		return s
	}

	hwWet := e.p.Polarity.Wet(in.LineHigh)
	dropWet := raw+e.p.TriggerDrop < e.dryRef
	wet := hwWet || dropWet

	if wet {
		if raw < e.wetRef {
			e.wetRef = raw
		}
	} else {
		e.wetRef += (e.dryRef - e.wetRef) / e.p.WetRelaxDivisor
	}

	if !wet && raw > e.dryRef && raw-e.dryRef < e.p.DryHysteresis {
		e.dryRef = (e.p.DryRefWeight*e.dryRef + raw) / (e.p.DryRefWeight + 1)
	}

	denom := math.Max(e.dryRef-e.wetRef, e.p.MinDenominator)
	target := clamp(100*(e.dryRef-raw)/denom, 0, 100)

	ease := e.p.EaseDry
	if wet {
		ease = e.p.EaseWet
	}
	e.displayPercent += (target - e.displayPercent) * ease

	if wet != e.isWet {
		e.isWet = wet
		e.lastChange = in.Time
	}

	e.last = WetnessSample{
		Time:           in.Time,
		Raw:            raw,
		IsWetHardware:  hwWet,
		IsWetByDrop:    dropWet,
		IsWet:          wet,
		DisplayPercent: e.displayPercent,
	}
	return e.last
}

// IsWet returns the current classification.
func (e *WetnessEstimator) IsWet() bool {
	return e.isWet
}

// DisplayPercent returns the smoothed wetness percentage.
func (e *WetnessEstimator) DisplayPercent() float64 {
	return e.displayPercent
}

// LastChange returns when the classification last flipped (or boot time).
func (e *WetnessEstimator) LastChange() time.Time {
	return e.lastChange
}

// Last returns the most recent sample.
func (e *WetnessEstimator) Last() WetnessSample {
	return e.last
}

// Calibration returns a copy of the learned references.
func (e *WetnessEstimator) Calibration() Calibration {
	return Calibration{DryRef: e.dryRef, WetRef: e.wetRef, Polarity: e.p.Polarity}
}

func mean(samples []uint16) float64 {
	if len(samples) == 0 {
		return math.NaN()
	}
	var sum uint32
	for _, s := range samples {
		sum += uint32(s)
	}
	return float64(sum) / float64(len(samples))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
