package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Ready         bool         `json:"ready"`
	Rain          RainJSON     `json:"rain"`
	Actuator      ActuatorJSON `json:"actuator"`
	Wind          WindJSON     `json:"wind"`
	Environment   EnvJSON      `json:"environment"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Config        ConfigJSON   `json:"config"`
}

// RainJSON reports the wetness estimator. Numbers are null until measured.
type RainJSON struct {
	Wet         bool     `json:"wet"`
	WetHardware bool     `json:"wet_hardware"`
	WetByDrop   bool     `json:"wet_by_drop"`
	Percent     float64  `json:"percent"`
	Raw         *float64 `json:"raw"`
	DryRef      *float64 `json:"dry_ref"`
	WetRef      *float64 `json:"wet_ref"`
	Polarity    string   `json:"polarity"`
}

// ActuatorJSON reports the cover servo.
type ActuatorJSON struct {
	Position   string `json:"position"`
	Angle      int    `json:"angle"`
	LastMove   string `json:"last_move,omitempty"`
	MovesToWet int    `json:"moves_to_wet"`
	MovesToDry int    `json:"moves_to_dry"`
	Overrides  int    `json:"overrides"`
}

// WindJSON reports the last completed wind window.
type WindJSON struct {
	RPM           float64 `json:"rpm"`
	SpeedMS       float64 `json:"speed_ms"`
	SampledAt     string  `json:"sampled_at,omitempty"`
	PendingPulses int64   `json:"pending_pulses"`
}

// EnvJSON reports the ambient sensor; fields are null without a sensor.
type EnvJSON struct {
	Available    bool     `json:"available"`
	TemperatureC *float64 `json:"temperature_c"`
	HumidityPct  *float64 `json:"humidity_pct"`
	PressureHPa  *float64 `json:"pressure_hpa"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	StationID string `json:"station_id"`
	PollMs    int64  `json:"poll_ms"`
	PublishMs int64  `json:"publish_ms"`
	Broker    string `json:"broker"`
	TopicBase string `json:"topic_base"`
	HTTPPort  string `json:"http_port"`
}

// num maps NaN (no value) to null.
func num(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	st := snap.Station

	polarity := string(st.Calibration.Polarity)
	if polarity == "" {
		polarity = "UNKNOWN"
	}
	position := string(st.Position)
	if position == "" {
		position = "UNKNOWN"
	}

	inner := StatusInner{
		Ready: st.Ready,
		Rain: RainJSON{
			Wet:         st.Wetness.IsWet,
			WetHardware: st.Wetness.IsWetHardware,
			WetByDrop:   st.Wetness.IsWetByDrop,
			Percent:     math.Round(st.Wetness.DisplayPercent*10) / 10,
			Raw:         num(st.Wetness.Raw),
			Polarity:    polarity,
		},
		Actuator: ActuatorJSON{
			Position:   position,
			Angle:      st.Angle,
			LastMove:   timestamp(st.LastMove),
			MovesToWet: st.Counts.ToWet,
			MovesToDry: st.Counts.ToDry,
			Overrides:  st.Counts.Overrides,
		},
		Wind: WindJSON{
			RPM:           st.Wind.RPM,
			SpeedMS:       st.Wind.Speed,
			SampledAt:     timestamp(st.Wind.Time),
			PendingPulses: st.Pulses,
		},
		Environment: EnvJSON{
			Available:    st.Env.Valid(),
			TemperatureC: num(st.Env.TempC),
			HumidityPct:  num(st.Env.Humidity),
			PressureHPa:  num(st.Env.PressureHPa),
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			StationID: snap.Config.StationID,
			PollMs:    snap.Config.PollMs,
			PublishMs: snap.Config.PublishMs,
			Broker:    snap.Config.Broker,
			TopicBase: snap.Config.TopicBase,
			HTTPPort:  snap.Config.HTTPPort,
		},
	}
	if st.Ready {
		inner.Rain.DryRef = num(st.Calibration.DryRef)
		inner.Rain.WetRef = num(st.Calibration.WetRef)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
