package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/weather-station/internal/adc"
	"github.com/sweeney/weather-station/internal/config"
	"github.com/sweeney/weather-station/internal/env"
	"github.com/sweeney/weather-station/internal/gpio"
	"github.com/sweeney/weather-station/internal/logic"
	"github.com/sweeney/weather-station/internal/mqtt"
	"github.com/sweeney/weather-station/internal/servo"
	"github.com/sweeney/weather-station/internal/station"
	"github.com/sweeney/weather-station/internal/status"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
//
// runLoop reads the clock once at start, so without overrides tick i
// (0-based) sees start+(i+1)*step.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

type rig struct {
	cfg     *config.Config
	adc     *adc.FakeReader
	line    *gpio.FakeLine
	servo   *servo.FakeActuator
	env     *env.FakeSensor
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	st      *station.Station
}

func newRig(t *testing.T) *rig {
	t.Helper()
	cfg := config.Default()
	cfg.Rain.BootSampleGap = 0
	cfg.Rain.PolaritySampleGap = 0
	cfg.Rain.TickSampleGap = 0

	r := &rig{
		cfg:   cfg,
		adc:   adc.NewFakeReader(3500),
		line:  gpio.NewFakeLine(true),
		servo: servo.NewFakeActuator(),
		env:   env.NewFakeSensor(env.Reading{TempC: 9.5, Humidity: 88, PressureHPa: 1001.3}),
		pub:   mqtt.NewFakePublisher(cfg.MQTT.TopicBase),
	}
	r.tracker = status.NewTracker(t0, statusConfig(cfg))
	r.st = station.Bootstrap(
		station.Params{Rain: cfg.Rain, Actuator: cfg.Actuator, Wind: cfg.Wind},
		station.Hardware{ADC: r.adc, Rain: r.line, Servo: r.servo, Env: r.env},
		t0)
	return r
}

// run drives runLoop for nTicks 80ms ticks and then delivers signal.
func (r *rig) run(t *testing.T, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	overrides := make(chan logic.Position)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(r.st, r.pub, r.pub, r.tracker, r.cfg, fakeClock(t0, 80*time.Millisecond), tick, sig, overrides)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func parseStatus(t *testing.T, payload []byte) status.StatusInner {
	t.Helper()
	var sj status.StatusJSON
	if err := json.Unmarshal(payload, &sj); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	return sj.Status
}

func TestRunLoopStartupAndShutdown(t *testing.T) {
	r := newRig(t)

	if err := r.run(t, 0, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(r.pub.SystemEvents) != 2 {
		t.Fatalf("expected 2 system events, got %d", len(r.pub.SystemEvents))
	}
	startup, shutdown := r.pub.SystemEvents[0], r.pub.SystemEvents[1]
	if startup.Event != "STARTUP" || !startup.Retained {
		t.Errorf("unexpected startup event: %+v", startup)
	}
	if shutdown.Event != "SHUTDOWN" || shutdown.Reason != "SIGTERM" || !shutdown.Retained {
		t.Errorf("unexpected shutdown event: %+v", shutdown)
	}

	s := parseStatus(t, r.pub.SystemPayloads[0])
	if s.Event != "STARTUP" || !s.Ready {
		t.Errorf("startup payload: event=%q ready=%v", s.Event, s.Ready)
	}
	if s.Actuator.Position != "DRY" || s.Actuator.Angle != 100 {
		t.Errorf("startup actuator: %+v", s.Actuator)
	}
	if s.Environment.TemperatureC == nil || *s.Environment.TemperatureC != 9.5 {
		t.Errorf("startup should carry the first env reading, got %v", s.Environment.TemperatureC)
	}

	if len(r.pub.GPS) != 1 {
		t.Fatalf("expected GPS published once, got %d", len(r.pub.GPS))
	}
	if r.pub.GPS[0] != [2]float64{r.cfg.Station.Latitude, r.cfg.Station.Longitude} {
		t.Errorf("unexpected GPS: %v", r.pub.GPS[0])
	}
	if len(r.pub.Telemetry) != 0 {
		t.Errorf("expected no telemetry without ticks, got %d", len(r.pub.Telemetry))
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	r := newRig(t)

	if err := r.run(t, 3, syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	last := r.pub.SystemEvents[len(r.pub.SystemEvents)-1]
	if last.Event != "SHUTDOWN" || last.Reason != "SIGINT" {
		t.Errorf("unexpected last event: %+v", last)
	}
	if s := parseStatus(t, last.RawPayload); s.Reason != "SIGINT" {
		t.Errorf("shutdown payload reason: got %q", s.Reason)
	}
}

func TestRunLoopPublishesTelemetryEveryInterval(t *testing.T) {
	r := newRig(t)
	r.cfg.MQTT.PublishInterval = time.Second

	// Ticks at 80ms..2400ms: publishes at 1040ms and 2080ms.
	if err := r.run(t, 30, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(r.pub.Telemetry) != 2 {
		t.Fatalf("expected 2 telemetry sets, got %d", len(r.pub.Telemetry))
	}
	tm := r.pub.Telemetry[0]
	if tm.Rain || tm.MotorAngle != 100 {
		t.Errorf("unexpected telemetry: %+v", tm)
	}
	if tm.TempC != 9.5 || tm.Humidity != 88 || tm.PressureHPa != 1001.3 {
		t.Errorf("unexpected env telemetry: %+v", tm)
	}
	// One env read at startup plus one per publish.
	if r.env.Reads != 3 {
		t.Errorf("env reads: got %d, want 3", r.env.Reads)
	}
	if got, _ := r.pub.LastPayload(mqtt.TopicUpdate); got != "updated" {
		t.Errorf("update topic: got %q", got)
	}
}

func TestRunLoopMissingEnvSensor(t *testing.T) {
	r := newRig(t)
	r.env.Reading = env.Unavailable()
	r.cfg.MQTT.PublishInterval = time.Second

	if err := r.run(t, 15, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(r.pub.Telemetry) != 1 {
		t.Fatalf("expected 1 telemetry set, got %d", len(r.pub.Telemetry))
	}
	if !math.IsNaN(r.pub.Telemetry[0].TempC) {
		t.Errorf("expected NaN temperature, got %v", r.pub.Telemetry[0].TempC)
	}
	if got, _ := r.pub.LastPayload(mqtt.TopicTemperature); got != "nan" {
		t.Errorf("temperature payload: got %q, want nan", got)
	}
}

func TestRunLoopRainClosesCover(t *testing.T) {
	r := newRig(t)
	r.adc.Script(3000)

	// Wet from the first tick (80ms); the dry dwell from boot holds the move
	// to 5040ms, tick 62. The first publish is at 10000ms, tick 124.
	if err := r.run(t, 130, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(r.servo.Angles) != 2 || r.servo.Angles[1] != 5 {
		t.Fatalf("servo angles: got %v, want [100 5]", r.servo.Angles)
	}
	if len(r.pub.Telemetry) != 1 {
		t.Fatalf("expected 1 telemetry set, got %d", len(r.pub.Telemetry))
	}
	tm := r.pub.Telemetry[0]
	if !tm.Rain || tm.MotorAngle != 5 {
		t.Errorf("unexpected telemetry: %+v", tm)
	}

	snap := r.tracker.Snapshot()
	if snap.Position != logic.PositionWet || snap.Counts.ToWet != 1 {
		t.Errorf("tracker: position=%s counts=%+v", snap.Position, snap.Counts)
	}
	if want := t0.Add(5040 * time.Millisecond); !snap.LastMove.Equal(want) {
		t.Errorf("LastMove: got %v, want %v", snap.LastMove, want)
	}
}

func TestRunLoopOverride(t *testing.T) {
	r := newRig(t)
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	overrides := make(chan logic.Position)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(r.st, r.pub, r.pub, r.tracker, r.cfg, fakeClock(t0, 80*time.Millisecond), tick, sig, overrides)
	}()

	tick <- time.Time{}
	overrides <- logic.PositionWet
	// Dry plate, but the wet dwell restarted at the override.
	for i := 0; i < 20; i++ {
		tick <- time.Time{}
	}
	sig <- syscall.SIGTERM
	if err := <-errCh; err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(r.servo.Angles) != 2 || r.servo.Angles[1] != 5 {
		t.Fatalf("servo angles: got %v, want [100 5]", r.servo.Angles)
	}
	s := parseStatus(t, r.pub.SystemPayloads[len(r.pub.SystemPayloads)-1])
	if s.Actuator.Position != "WET" || s.Actuator.Overrides != 1 {
		t.Errorf("shutdown actuator: %+v", s.Actuator)
	}
}

func TestRunLoopKeepsControllingWhilePublishBlocks(t *testing.T) {
	r := newRig(t)
	r.adc.Script(3000)
	gate := make(chan struct{})
	r.pub.Gate = gate
	publisher := mqtt.NewAsyncPublisher(r.pub, 8)

	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(r.st, publisher, r.pub, r.tracker, r.cfg, fakeClock(t0, 80*time.Millisecond), tick, sig, make(chan logic.Position))
	}()

	// STARTUP is stuck at the broker for the whole run.
	for i := 0; i < 130; i++ {
		tick <- time.Time{}
	}
	sig <- syscall.SIGTERM
	if err := <-errCh; err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(r.servo.Angles) != 2 || r.servo.Angles[1] != 5 {
		t.Fatalf("servo angles: got %v, want [100 5]", r.servo.Angles)
	}
	if r.tracker.Snapshot().Position != logic.PositionWet {
		t.Error("tracker should report WET while publishing is stalled")
	}

	close(gate)
	if err := publisher.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(r.pub.SystemEvents) != 2 || r.pub.SystemEvents[1].Event != "SHUTDOWN" {
		t.Fatalf("system events after drain: %+v", r.pub.SystemEvents)
	}
	if len(r.pub.Telemetry) != 1 || !r.pub.Telemetry[0].Rain {
		t.Errorf("queued telemetry: %+v", r.pub.Telemetry)
	}
	if !r.pub.Closed {
		t.Error("wrapped publisher not closed")
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	r := newRig(t)
	r.cfg.MQTT.Heartbeat = time.Second

	if err := r.run(t, 30, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var heartbeats []mqtt.SystemEvent
	for _, e := range r.pub.SystemEvents {
		if e.Event == "HEARTBEAT" {
			heartbeats = append(heartbeats, e)
		}
	}
	if len(heartbeats) != 2 {
		t.Fatalf("expected 2 heartbeats, got %d", len(heartbeats))
	}
	if heartbeats[0].Retained {
		t.Error("heartbeat should not be retained")
	}
	if s := parseStatus(t, heartbeats[0].RawPayload); s.Event != "HEARTBEAT" {
		t.Errorf("heartbeat payload event: got %q", s.Event)
	}
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	r := newRig(t)
	r.cfg.MQTT.Heartbeat = 0

	if err := r.run(t, 30, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	for _, e := range r.pub.SystemEvents {
		if e.Event == "HEARTBEAT" {
			t.Fatal("heartbeat published while disabled")
		}
	}
}

func TestRunLoopPublishError(t *testing.T) {
	r := newRig(t)
	r.cfg.MQTT.PublishInterval = time.Second
	r.pub.PublishError = errors.New("broker down")
	r.pub.PublishSystemError = errors.New("broker down")

	// Publish failures must not stop the loop.
	if err := r.run(t, 30, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(r.pub.Telemetry) != 0 || len(r.pub.SystemEvents) != 0 {
		t.Error("failed publishes should not be recorded")
	}
	if r.env.Reads != 3 {
		t.Errorf("loop should keep running: env reads %d, want 3", r.env.Reads)
	}
}

func TestRunLoopTracksMQTTConnection(t *testing.T) {
	r := newRig(t)
	r.pub.Connected = true

	if err := r.run(t, 2, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if !r.tracker.Snapshot().MQTTConnected {
		t.Error("expected tracker to report MQTT connected")
	}
	if s := parseStatus(t, r.pub.SystemPayloads[0]); !s.MQTT.Connected {
		t.Error("startup payload should report MQTT connected")
	}
}

func TestRunLoopReadErrorKeepsRunning(t *testing.T) {
	r := newRig(t)
	r.adc.ReadError = errors.New("i2c nack")

	if err := r.run(t, 10, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(r.servo.Angles) != 1 {
		t.Errorf("servo should stay at boot position, got %v", r.servo.Angles)
	}
}

func TestPrintSensors(t *testing.T) {
	cfg := config.Default()
	cfg.Rain.TickSampleGap = 0
	var buf bytes.Buffer

	err := printSensors(&buf, cfg, adc.NewFakeReader(3000, 3002, 3004, 3006), gpio.NewFakeLine(false),
		env.NewFakeSensor(env.Reading{TempC: 21, Humidity: 40.5, PressureHPa: 1020}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "rain: raw=3003 line=LOW\nenv: temperature=21.00 humidity=40.50 pressure=1020.00\n"
	if buf.String() != want {
		t.Errorf("unexpected output:\ngot:  %q\nwant: %q", buf.String(), want)
	}
}

func TestPrintSensorsReadError(t *testing.T) {
	cfg := config.Default()
	cfg.Rain.TickSampleGap = 0
	reader := adc.NewFakeReader(3000)
	reader.ReadError = errors.New("i2c nack")

	if err := printSensors(&bytes.Buffer{}, cfg, reader, gpio.NewFakeLine(true), env.None{}); err == nil {
		t.Error("expected error")
	}
}
