// Package status provides a thread-safe status tracker for the weather-station daemon.
// It is read by the HTTP handlers and by the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/weather-station/internal/env"
	"github.com/sweeney/weather-station/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	StationID string
	PollMs    int64
	PublishMs int64
	Broker    string
	TopicBase string
	HTTPPort  string
}

// Station is the control loop state copied in after every tick.
type Station struct {
	Ready       bool // boot calibration done
	Wetness     logic.WetnessSample
	Calibration logic.Calibration
	Position    logic.Position
	Angle       int
	LastMove    time.Time
	Wind        logic.WindSample
	Pulses      int64 // anemometer pulses counted in the open window
	Env         env.Reading
	Counts      logic.TransitionCounts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Station
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Station:   Station{Env: env.Unavailable()},
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the station state.
// Called from runLoop on every tick.
func (t *Tracker) Update(st Station) {
	t.mu.Lock()
	t.snap.Station = st
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
