package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/sweeney/shake-timer/internal/config"
	"github.com/sweeney/shake-timer/internal/gpio"
	"github.com/sweeney/shake-timer/internal/logic"
	"github.com/sweeney/shake-timer/internal/mqtt"
	"github.com/sweeney/shake-timer/internal/session"
	"github.com/sweeney/shake-timer/internal/status"
	"github.com/sweeney/shake-timer/internal/stopwatch"
	"github.com/sweeney/shake-timer/internal/web"
)

func runCmd(configPath *string) *cobra.Command {
	var login bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the stopwatch daemon",
		Long: `Runs the stopwatch headless. Shaking the device (samples arrive over MQTT)
or pressing the GPIO button starts and stops the timer; the status page offers
the same controls plus submit, delete and login.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return run(cfg, login)
		},
	}

	cmd.Flags().BoolVar(&login, "login", true, "Log in as the configured username at startup")

	return cmd
}

func run(cfg *config.Config, login bool) error {
	c, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	var button gpio.Reader
	if cfg.ButtonPin >= 0 {
		r, err := gpio.NewRealReader(cfg.ButtonPin)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer r.Close()
		button = r
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		Server:      cfg.Server,
		Username:    cfg.Username,
		PollMs:      cfg.Poll.Milliseconds(),
		DebounceMs:  cfg.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		FPS:         cfg.FPS,
		Threshold:   cfg.Threshold,
		Broker:      cfg.Broker,
		SensorTopic: cfg.SensorTopic,
		HTTPAddr:    cfg.HTTP,
	})

	if login && cfg.Username != "" {
		if err := c.login(context.Background(), cfg.Username); err != nil {
			log.Printf("%v; log in from the status page", err)
		}
	}
	tracker.Update(c.gate.LoggedIn(), c.sw.View())

	// Publish startup event with full status snapshot
	if c.status != nil {
		tracker.SetMQTTConnected(c.status.IsConnected())
	}
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := c.publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, c.sw, c.gate)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP)
	}

	log.Printf("started: server=%s broker=%s poll=%v debounce=%v threshold=%v heartbeat=%v",
		cfg.Server, cfg.Broker, cfg.Poll.Duration, cfg.Debounce.Duration, cfg.Threshold, cfg.Heartbeat.Duration)

	ticker := time.NewTicker(cfg.Poll.Duration)
	defer ticker.Stop()
	frames := time.NewTicker(cfg.FrameInterval())
	defer frames.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop{
		sw:         c.sw,
		gate:       c.gate,
		button:     button,
		publisher:  c.publisher,
		mqttStatus: c.status,
		tracker:    tracker,
		heartbeat:  cfg.Heartbeat.Duration,
		now:        time.Now,
		tick:       ticker.C,
		frame:      frames.C,
		sig:        sigCh,
	})
}

// loop holds what runLoop reads from and writes to.
type loop struct {
	sw         *stopwatch.Stopwatch
	gate       *session.Gate
	button     gpio.Reader // nil when no button is wired
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	heartbeat  time.Duration
	now        func() time.Time
	tick       <-chan time.Time // button poll and heartbeat check
	frame      <-chan time.Time // only read while the timer runs
	sig        <-chan os.Signal
}

func runLoop(l loop) error {
	startTime := l.now()
	hb := logic.NewHeartbeat(startTime)
	var btn logic.Button

	update := func() {
		l.tracker.Update(l.gate.LoggedIn(), l.sw.View())
		if l.mqttStatus != nil {
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		}
	}

	for {
		var frame <-chan time.Time
		if l.sw.Running() {
			frame = l.frame
		}

		select {
		case s := <-l.sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}

			// Events already emitted go out before the shutdown notice.
			drainEvents(l.sw, l.publisher)

			event := mqtt.SystemEvent{
				Timestamp: l.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			update()
			event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", signalName)
			if err := l.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			l.gate.Close()
			return nil

		case <-l.tick:
			t := l.now()
			if l.button != nil {
				pressed, err := l.button.Read()
				if err != nil {
					log.Printf("gpio read error: %v", err)
				} else if btn.Process(pressed) && !l.sw.Press() {
					log.Printf("button press ignored")
				}
			}

			if hbData := hb.Check(t, l.heartbeat, l.sw.Counts()); hbData != nil {
				log.Printf("heartbeat: uptime=%v accepted=%d dropped=%d crossings=%d submitted=%d",
					hbData.Uptime, hbData.Counts.Accepted, hbData.Counts.Dropped, hbData.Counts.Crossings, hbData.Counts.Submitted)
				update()
				hbEvent := mqtt.SystemEvent{
					Timestamp:  hbData.Timestamp,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", ""),
				}
				if err := l.publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

		case <-frame:
			l.sw.Frame()
			update()

		case <-l.sw.Changed():
			update()

		case event := <-l.sw.Events():
			publishEvent(l.publisher, event)
		}
	}
}

func publishEvent(publisher mqtt.Publisher, event logic.Event) {
	log.Printf("event: %s elapsed=%s", event.Type, logic.FormatSeconds(event.Elapsed))
	if err := publisher.Publish(event); err != nil {
		log.Printf("publish error: %v", err)
		// Don't crash on publish failure
	}
}

// drainEvents publishes whatever is queued without waiting for more.
func drainEvents(sw *stopwatch.Stopwatch, publisher mqtt.Publisher) {
	for {
		select {
		case event := <-sw.Events():
			publishEvent(publisher, event)
		default:
			return
		}
	}
}
