// Command weather-station runs the rain cover control loop and publishes
// station telemetry to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
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
	"github.com/sweeney/weather-station/internal/web"
)

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := config.FromFlags(flags)
	if err != nil {
		log.Fatalf("fatal: config: %v", err)
	}
	if err := run(cfg, flags.PrintState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, printState bool) error {
	analog, err := adc.NewADS1115(cfg.I2C.Bus, cfg.I2C.ADS1115Address, cfg.I2C.ADS1115Channel)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer analog.Close()

	rainLine, err := gpio.NewRealLine(cfg.Pins.Chip, cfg.Pins.RainLine)
	if err != nil {
		return fmt.Errorf("init rain line: %w", err)
	}
	defer rainLine.Close()

	var ambient env.Sensor = env.None{}
	if bme, err := env.NewBME280(cfg.I2C.Bus, cfg.I2C.BME280Address); err != nil {
		log.Printf("env: %v; temperature, humidity and pressure will be reported as nan", err)
	} else {
		ambient = bme
	}
	defer ambient.Close()

	// Print state mode
	if printState {
		return printSensors(os.Stdout, cfg, analog, rainLine, ambient)
	}

	pwm, err := servo.NewPWM(cfg.Pins.ServoName)
	if err != nil {
		return fmt.Errorf("init servo: %w", err)
	}
	defer pwm.Close()

	st := station.Bootstrap(station.Params{
		Rain:     cfg.Rain,
		Actuator: cfg.Actuator,
		Wind:     cfg.Wind,
	}, station.Hardware{ADC: analog, Rain: rainLine, Servo: pwm, Env: ambient}, time.Now())

	hall, err := watchHall(cfg, st.PulseCounter())
	if err != nil {
		return fmt.Errorf("init hall sensor: %w", err)
	}
	defer hall.Close()

	// Overrides arrive on the MQTT client goroutine; the run loop owns the scheduler.
	overrides := make(chan logic.Position, 4)
	client, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		Username:   cfg.MQTT.Username,
		Password:   cfg.MQTT.Password,
		TopicBase:  cfg.MQTT.TopicBase,
		BufferSize: cfg.MQTT.BufferSize,
		OnOverride: func(pos logic.Position) {
			select {
			case overrides <- pos:
			default:
				log.Printf("override %s dropped: run loop busy", pos)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	// The loop must never wait on the broker.
	publisher := mqtt.NewAsyncPublisher(client, cfg.MQTT.BufferSize)
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP)
	}

	log.Printf("started: station=%s poll=%v publish=%v broker=%s topics=%s/#",
		cfg.Station.ID, cfg.Poll, cfg.MQTT.PublishInterval, cfg.MQTT.Broker, cfg.MQTT.TopicBase)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(st, publisher, client, tracker, cfg, time.Now, ticker.C, sigCh, overrides)
}

// watchHall feeds anemometer edges into counter until the watcher is closed.
func watchHall(cfg *config.Config, counter *logic.PulseCounter) (gpio.EdgeWatcher, error) {
	return gpio.NewRealEdgeWatcher(cfg.Pins.Chip, cfg.Pins.HallLine, func(ts time.Duration) {
		counter.Capture(ts)
	})
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		StationID: cfg.Station.ID,
		PollMs:    cfg.Poll.Milliseconds(),
		PublishMs: cfg.MQTT.PublishInterval.Milliseconds(),
		Broker:    cfg.MQTT.Broker,
		TopicBase: cfg.MQTT.TopicBase,
		HTTPPort:  cfg.HTTP,
	}
}

// runLoop drives the station until a signal arrives. The station must already
// be bootstrapped; runLoop announces startup and publishes the position once.
func runLoop(st *station.Station, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, cfg *config.Config, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, overrides <-chan logic.Position) error {
	startTime := now()
	lastPublish := startTime
	lastHeartbeat := startTime

	st.SenseEnv()
	refresh := func() {
		tracker.Update(st.State())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}
	systemEvent := func(at time.Time, event, reason string, retained bool) {
		refresh()
		snap := tracker.Snapshot()
		e := mqtt.SystemEvent{
			Timestamp:  at,
			Event:      event,
			Reason:     reason,
			Retained:   retained,
			RawPayload: status.FormatStatusEvent(snap, event, reason),
		}
		if err := publisher.PublishSystem(e); err != nil {
			log.Printf("failed to publish %s event: %v", event, err)
		} else {
			log.Printf("published %s event", event)
		}
	}

	systemEvent(startTime, "STARTUP", "", true)
	if err := publisher.PublishGPS(cfg.Station.Latitude, cfg.Station.Longitude); err != nil {
		log.Printf("gps publish error: %v", err)
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			systemEvent(now(), "SHUTDOWN", signalName, true)
			return nil

		case pos := <-overrides:
			st.Override(pos, now())
			refresh()

		case <-tick:
			t := now()
			st.Tick(t)

			if t.Sub(lastPublish) >= cfg.MQTT.PublishInterval {
				lastPublish = t
				st.SenseEnv()
				if err := publisher.PublishTelemetry(telemetry(st.State())); err != nil {
					// Don't crash on publish failure
					log.Printf("publish error: %v", err)
				}
			}

			if cfg.MQTT.Heartbeat > 0 && t.Sub(lastHeartbeat) >= cfg.MQTT.Heartbeat {
				lastHeartbeat = t
				state := st.State()
				log.Printf("heartbeat: uptime=%v position=%s to_wet=%d to_dry=%d overrides=%d",
					t.Sub(startTime).Truncate(time.Second), state.Position,
					state.Counts.ToWet, state.Counts.ToDry, state.Counts.Overrides)
				systemEvent(t, "HEARTBEAT", "", false)
			}

			// Update status tracker for HTTP consumers
			refresh()
		}
	}
}

func telemetry(s status.Station) mqtt.Telemetry {
	return mqtt.Telemetry{
		WindSpeed:   s.Wind.Speed,
		Rain:        s.Wetness.IsWet,
		TempC:       s.Env.TempC,
		Humidity:    s.Env.Humidity,
		PressureHPa: s.Env.PressureHPa,
		MotorAngle:  s.Angle,
	}
}
