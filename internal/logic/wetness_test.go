package logic

import (
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// newDryEstimator returns an active-low estimator seeded at dryRef with the
// line reading dry (high).
func newDryEstimator(t *testing.T, dryRef float64) *WetnessEstimator {
	t.Helper()
	p := DefaultWetnessParams()
	p.Polarity = ActiveLow
	return NewWetnessEstimator(p, dryRef, true, t0)
}

func tick(i int) time.Time {
	return t0.Add(time.Duration(i) * 80 * time.Millisecond)
}

func TestSeedDryRef(t *testing.T) {
	p := DefaultWetnessParams()

	tests := []struct {
		name   string
		avg    float64
		want   float64
		wantOK bool
	}{
		{"normal", 3612, 3612, true},
		{"just below saturation", 3999, 3999, true},
		{"saturated", 4000, 3500, false},
		{"full scale", 4095, 3500, false},
		{"nan", math.NaN(), 3500, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SeedDryRef(p, tt.avg)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("SeedDryRef(%v) = (%v, %v), want (%v, %v)", tt.avg, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestInitialWetRef(t *testing.T) {
	p := DefaultWetnessParams()

	tests := []struct {
		dryRef float64
		want   float64
	}{
		{3500, 3420},
		{81, 1},
		{80, 60},
		{50, 30},
		{20, 20},
		{5, 5},
	}
	for _, tt := range tests {
		if got := initialWetRef(p, tt.dryRef); got != tt.want {
			t.Errorf("initialWetRef(%v) = %v, want %v", tt.dryRef, got, tt.want)
		}
	}
}

func TestNewWetnessEstimatorReferences(t *testing.T) {
	e := newDryEstimator(t, 3500)
	cal := e.Calibration()
	if cal.DryRef != 3500 {
		t.Errorf("dryRef: got %v, want 3500", cal.DryRef)
	}
	if cal.WetRef != 3420 {
		t.Errorf("wetRef: got %v, want 3420", cal.WetRef)
	}
	if cal.Polarity != ActiveLow {
		t.Errorf("polarity: got %s, want %s", cal.Polarity, ActiveLow)
	}
	if e.IsWet() {
		t.Error("expected dry at boot with line high and active-low polarity")
	}
	if !e.LastChange().Equal(t0) {
		t.Errorf("LastChange: got %v, want %v", e.LastChange(), t0)
	}
}

func TestNewWetnessEstimatorInitialWetFromLine(t *testing.T) {
	p := DefaultWetnessParams()
	p.Polarity = ActiveLow
	e := NewWetnessEstimator(p, 3500, false, t0)
	if !e.IsWet() {
		t.Error("expected wet at boot with line low and active-low polarity")
	}

	p.Polarity = ActiveHigh
	e = NewWetnessEstimator(p, 3500, false, t0)
	if e.IsWet() {
		t.Error("expected dry at boot with line low and active-high polarity")
	}
}

func TestDetectPolarity(t *testing.T) {
	p := DefaultWetnessParams()

	tests := []struct {
		name     string
		avg      float64
		lineHigh bool
		want     Polarity
	}{
		{"dry plate, line high", 3510, true, ActiveLow},
		{"dry plate, line low", 3490, false, ActiveHigh},
		{"edge of tolerance", 3649, false, ActiveHigh},
		{"outside tolerance", 3650, false, ActiveLow},
		{"wet plate", 2500, false, ActiveLow},
		{"saturated", 4050, false, ActiveLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectPolarity(p, 3500, tt.avg, tt.lineHigh); got != tt.want {
				t.Errorf("DetectPolarity = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPolarityWet(t *testing.T) {
	if !ActiveLow.Wet(false) || ActiveLow.Wet(true) {
		t.Error("active-low: low should be wet, high dry")
	}
	if !ActiveHigh.Wet(true) || ActiveHigh.Wet(false) {
		t.Error("active-high: high should be wet, low dry")
	}
}

func TestDropThresholdBoundary(t *testing.T) {
	tests := []struct {
		raw  uint16
		want bool
	}{
		{3500, false},
		{3411, false},
		{3410, false}, // 3410 + 90 == 3500, not strictly below
		{3409, true},
		{3200, true},
	}
	for _, tt := range tests {
		e := newDryEstimator(t, 3500)
		s := e.Update(WetnessInput{Samples: []uint16{tt.raw}, LineHigh: true, Time: tick(1)})
		if s.IsWetByDrop != tt.want {
			t.Errorf("raw %d: IsWetByDrop = %v, want %v", tt.raw, s.IsWetByDrop, tt.want)
		}
		if s.IsWetHardware {
			t.Errorf("raw %d: hardware line is dry, got IsWetHardware", tt.raw)
		}
		if s.IsWet != tt.want {
			t.Errorf("raw %d: IsWet = %v, want %v", tt.raw, s.IsWet, tt.want)
		}
	}
}

func TestDropSequenceFromBoot(t *testing.T) {
	e := newDryEstimator(t, 3500)
	if e.Calibration().WetRef != 3420 {
		t.Fatalf("wetRef: got %v, want 3420", e.Calibration().WetRef)
	}

	raws := []uint16{3500, 3500, 3200}
	want := []bool{false, false, true}
	for i, raw := range raws {
		s := e.Update(WetnessInput{Samples: []uint16{raw}, LineHigh: true, Time: tick(i + 1)})
		if s.IsWetByDrop != want[i] {
			t.Errorf("step %d raw %d: IsWetByDrop = %v, want %v", i, raw, s.IsWetByDrop, want[i])
		}
	}
	if got := e.Calibration().WetRef; got != 3200 {
		t.Errorf("wetRef after drop: got %v, want 3200", got)
	}
}

func TestHardwareLineAloneIsWet(t *testing.T) {
	e := newDryEstimator(t, 3500)
	s := e.Update(WetnessInput{Samples: []uint16{3480}, LineHigh: false, Time: tick(1)})
	if !s.IsWetHardware || s.IsWetByDrop || !s.IsWet {
		t.Errorf("got hw=%v drop=%v wet=%v, want hw=true drop=false wet=true", s.IsWetHardware, s.IsWetByDrop, s.IsWet)
	}
}

func TestSamplesAreAveraged(t *testing.T) {
	e := newDryEstimator(t, 3500)
	s := e.Update(WetnessInput{Samples: []uint16{3400, 3420, 3440, 3460}, LineHigh: true, Time: tick(1)})
	if s.Raw != 3430 {
		t.Errorf("Raw: got %v, want 3430", s.Raw)
	}
}

func TestWetRefNonIncreasingAndPercentRisesWhileWet(t *testing.T) {
	e := newDryEstimator(t, 3500)

	prevWetRef := e.Calibration().WetRef
	prevPct := e.DisplayPercent()
	for i := 1; i <= 20; i++ {
		s := e.Update(WetnessInput{Samples: []uint16{3000}, LineHigh: false, Time: tick(i)})
		if !s.IsWet {
			t.Fatalf("step %d: expected wet", i)
		}
		wetRef := e.Calibration().WetRef
		if wetRef > prevWetRef {
			t.Errorf("step %d: wetRef increased from %v to %v", i, prevWetRef, wetRef)
		}
		if s.DisplayPercent < prevPct {
			t.Errorf("step %d: percent decreased from %v to %v", i, prevPct, s.DisplayPercent)
		}
		if s.DisplayPercent > 100 {
			t.Errorf("step %d: percent above 100: %v", i, s.DisplayPercent)
		}
		prevWetRef, prevPct = wetRef, s.DisplayPercent
	}
	if prevPct < 99.9 {
		t.Errorf("expected percent to approach 100, got %v", prevPct)
	}
}

func TestWetEaseIsFasterThanDry(t *testing.T) {
	e := newDryEstimator(t, 3500)
	s := e.Update(WetnessInput{Samples: []uint16{3000}, LineHigh: false, Time: tick(1)})
	if math.Abs(s.DisplayPercent-65) > 1e-9 {
		t.Fatalf("first wet tick: got %v, want 65", s.DisplayPercent)
	}

	// Back to dry at baseline: target 0, eases down by 25% of the gap.
	s = e.Update(WetnessInput{Samples: []uint16{3500}, LineHigh: true, Time: tick(2)})
	if math.Abs(s.DisplayPercent-65*0.75) > 1e-9 {
		t.Errorf("first dry tick: got %v, want %v", s.DisplayPercent, 65*0.75)
	}
}

func TestWetRefRelaxesWhileDry(t *testing.T) {
	e := newDryEstimator(t, 3500)
	e.Update(WetnessInput{Samples: []uint16{3000}, LineHigh: false, Time: tick(1)})
	if got := e.Calibration().WetRef; got != 3000 {
		t.Fatalf("wetRef after wet: got %v, want 3000", got)
	}

	e.Update(WetnessInput{Samples: []uint16{3500}, LineHigh: true, Time: tick(2)})
	want := 3000 + 500.0/300
	if got := e.Calibration().WetRef; math.Abs(got-want) > 1e-9 {
		t.Errorf("wetRef after one dry tick: got %v, want %v", got, want)
	}

	prev := e.Calibration().WetRef
	for i := 3; i < 500; i++ {
		e.Update(WetnessInput{Samples: []uint16{3500}, LineHigh: true, Time: tick(i)})
		got := e.Calibration().WetRef
		if got < prev || got > 3500 {
			t.Fatalf("tick %d: wetRef %v out of order (prev %v)", i, got, prev)
		}
		prev = got
	}
}

func TestDryRefDriftsUpSlowly(t *testing.T) {
	e := newDryEstimator(t, 3500)

	prev := e.Calibration().DryRef
	for i := 1; i <= 2000; i++ {
		e.Update(WetnessInput{Samples: []uint16{3550}, LineHigh: true, Time: tick(i)})
		got := e.Calibration().DryRef
		maxStep := (3550 - prev) / 200
		if got < prev {
			t.Fatalf("tick %d: dryRef decreased from %v to %v", i, prev, got)
		}
		if got-prev > maxStep+1e-9 {
			t.Fatalf("tick %d: dryRef stepped %v, max %v", i, got-prev, maxStep)
		}
		if got >= 3550 {
			t.Fatalf("tick %d: dryRef reached the reading: %v", i, got)
		}
		prev = got
	}
	if prev < 3549 {
		t.Errorf("expected dryRef to converge near 3550, got %v", prev)
	}
}

func TestDryRefIgnoresReadingsAboveBand(t *testing.T) {
	e := newDryEstimator(t, 3500)
	e.Update(WetnessInput{Samples: []uint16{3580}, LineHigh: true, Time: tick(1)})
	if got := e.Calibration().DryRef; got != 3500 {
		t.Errorf("dryRef moved on out-of-band reading: %v", got)
	}
}

func TestDryRefFrozenWhileWet(t *testing.T) {
	e := newDryEstimator(t, 3500)
	e.Update(WetnessInput{Samples: []uint16{3550}, LineHigh: false, Time: tick(1)})
	if got := e.Calibration().DryRef; got != 3500 {
		t.Errorf("dryRef moved while wet: %v", got)
	}
}

func TestPercentClampedAtZeroAboveBaseline(t *testing.T) {
	e := newDryEstimator(t, 3500)
	s := e.Update(WetnessInput{Samples: []uint16{3600}, LineHigh: true, Time: tick(1)})
	if s.DisplayPercent != 0 {
		t.Errorf("percent: got %v, want 0", s.DisplayPercent)
	}
}

func TestMinDenominator(t *testing.T) {
	p := DefaultWetnessParams()
	p.Polarity = ActiveLow
	p.WetMargin = 10
	e := NewWetnessEstimator(p, 3500, true, t0)

	// denom would be 10; clamped to 80. target = 100*40/80 = 50, wet ease 0.65.
	s := e.Update(WetnessInput{Samples: []uint16{3460}, LineHigh: false, Time: tick(1)})
	want := 50 * 0.65
	if math.Abs(s.DisplayPercent-want) > 1e-9 {
		t.Errorf("percent: got %v, want %v", s.DisplayPercent, want)
	}
}

func TestLastChangeRecordsTransitions(t *testing.T) {
	e := newDryEstimator(t, 3500)

	e.Update(WetnessInput{Samples: []uint16{3500}, LineHigh: true, Time: tick(1)})
	if !e.LastChange().Equal(t0) {
		t.Errorf("no transition yet: got %v, want %v", e.LastChange(), t0)
	}

	e.Update(WetnessInput{Samples: []uint16{3500}, LineHigh: false, Time: tick(2)})
	if !e.LastChange().Equal(tick(2)) {
		t.Errorf("dry->wet: got %v, want %v", e.LastChange(), tick(2))
	}

	e.Update(WetnessInput{Samples: []uint16{3500}, LineHigh: false, Time: tick(3)})
	if !e.LastChange().Equal(tick(2)) {
		t.Errorf("still wet: got %v, want %v", e.LastChange(), tick(2))
	}

	e.Update(WetnessInput{Samples: []uint16{3500}, LineHigh: true, Time: tick(4)})
	if !e.LastChange().Equal(tick(4)) {
		t.Errorf("wet->dry: got %v, want %v", e.LastChange(), tick(4))
	}
}

func TestUpdateWithoutSamplesKeepsState(t *testing.T) {
	e := newDryEstimator(t, 3500)
	e.Update(WetnessInput{Samples: []uint16{3000}, LineHigh: false, Time: tick(1)})
	before := e.Calibration()

	s := e.Update(WetnessInput{Samples: nil, LineHigh: true, Time: tick(2)})
	if e.Calibration() != before {
		t.Errorf("calibration changed without samples: %+v -> %+v", before, e.Calibration())
	}
	if !s.IsWet {
		t.Error("expected last classification to be reported")
	}
	if !s.Time.Equal(tick(2)) {
		t.Errorf("Time: got %v, want %v", s.Time, tick(2))
	}
}
