// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/sweeney/weather-station/internal/logic"
)

// Topic names under the station's topic base.
const (
	TopicGPS         = "gps"
	TopicWindSpeed   = "windspeed"
	TopicRain        = "rain"
	TopicTemperature = "temperature"
	TopicHumidity    = "humidity"
	TopicAirPressure = "airpressure"
	TopicMotor       = "motor" // also carries override commands
	TopicUpdate      = "update"
	TopicSystem      = "system"
)

// Topic joins base and name.
func Topic(base, name string) string {
	return base + "/" + name
}

// Publisher publishes station data to MQTT.
type Publisher interface {
	// PublishTelemetry sends one set of readings, one topic per value.
	// Returns error if publishing fails (should not crash the process).
	PublishTelemetry(t Telemetry) error

	// PublishGPS sends the station position.
	PublishGPS(lat, lon float64) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// OverrideHandler receives a manual actuator command from the motor topic.
// It is called from the MQTT client's goroutine and must not block.
type OverrideHandler func(pos logic.Position)

// Telemetry is the set of values published every publish interval.
type Telemetry struct {
	WindSpeed   float64 // m/s
	Rain        bool
	TempC       float64 // NaN when no sensor
	Humidity    float64
	PressureHPa float64
	MotorAngle  int
}

// Message is one topic/payload pair.
type Message struct {
	Topic   string
	Payload []byte
}

// FormatTelemetry renders t as the station's plain-text topic payloads.
func FormatTelemetry(base string, t Telemetry) []Message {
	return []Message{
		{Topic(base, TopicWindSpeed), formatFloat(t.WindSpeed)},
		{Topic(base, TopicRain), []byte(strconv.FormatBool(t.Rain))},
		{Topic(base, TopicTemperature), formatFloat(t.TempC)},
		{Topic(base, TopicHumidity), formatFloat(t.Humidity)},
		{Topic(base, TopicAirPressure), formatFloat(t.PressureHPa)},
		{Topic(base, TopicMotor), []byte(strconv.Itoa(t.MotorAngle))},
		{Topic(base, TopicUpdate), []byte("updated")},
	}
}

// FormatGPS renders the position as "lat,lon".
func FormatGPS(lat, lon float64) []byte {
	return []byte(fmt.Sprintf("%.8f,%.8f", lat, lon))
}

// formatFloat renders v with two decimals; a missing value is "nan".
func formatFloat(v float64) []byte {
	if math.IsNaN(v) {
		return []byte("nan")
	}
	return []byte(fmt.Sprintf("%.2f", v))
}

// ParseOverride interprets a motor topic payload. "1" selects the wet
// position and "0" the dry one; anything else (including the angles the
// station publishes itself) is not a command.
func ParseOverride(payload []byte) (logic.Position, bool) {
	switch string(bytes.TrimSpace(payload)) {
	case "1":
		return logic.PositionWet, true
	case "0":
		return logic.PositionDry, true
	}
	return "", false
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
