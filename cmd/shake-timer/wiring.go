package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sweeney/shake-timer/internal/api"
	"github.com/sweeney/shake-timer/internal/config"
	"github.com/sweeney/shake-timer/internal/logic"
	"github.com/sweeney/shake-timer/internal/mqtt"
	"github.com/sweeney/shake-timer/internal/records"
	"github.com/sweeney/shake-timer/internal/sensor"
	"github.com/sweeney/shake-timer/internal/session"
	"github.com/sweeney/shake-timer/internal/stopwatch"
	"golang.org/x/term"
)

// envPassword, if set, is used instead of prompting for a password.
const envPassword = "SHAKE_TIMER_PASSWORD"

// client is the assembled stopwatch client shared by the run and tui commands.
type client struct {
	sw        *stopwatch.Stopwatch
	gate      *session.Gate
	publisher mqtt.Publisher
	status    mqtt.ConnectionStatus // nil without a broker
}

// newClient builds the stopwatch, its record list and session gate, and the
// MQTT connection that carries sensor samples in and events out. Without a
// broker the sensor is unavailable and events are only logged.
func newClient(cfg *config.Config) (*client, error) {
	apiClient, err := api.NewClient(cfg.Server, cfg.RequestTimeout.Duration)
	if err != nil {
		return nil, err
	}

	c := &client{publisher: nopPublisher{}}

	var source sensor.Source
	if cfg.Broker != "" {
		var pub atomic.Pointer[mqtt.RealPublisher]
		mc, err := mqtt.Dial(cfg.Broker, "shake-timer-"+uuid.NewString()[:8], func() {
			if p := pub.Load(); p != nil {
				p.Flush()
			}
		})
		if err != nil {
			return nil, err
		}
		p := mqtt.NewRealPublisher(mc)
		pub.Store(p)
		c.publisher = p
		c.status = p
		source = sensor.NewMQTTSource(mc, cfg.SensorTopic)
	}

	c.sw = stopwatch.New(stopwatch.Config{
		Debounce:  cfg.Debounce.Duration,
		Threshold: cfg.Threshold,
	}, records.NewSync(apiClient), source, time.Now)
	c.gate = session.NewGate(apiClient, c.sw)
	return c, nil
}

// Close releases the sensor and disconnects from the broker.
func (c *client) Close() {
	c.gate.Close()
	if err := c.publisher.Close(); err != nil {
		log.Printf("mqtt close: %v", err)
	}
}

// nopPublisher stands in when no broker is configured. The run loop logs
// every event before publishing it.
type nopPublisher struct{}

func (nopPublisher) Publish(logic.Event) error            { return nil }
func (nopPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (nopPublisher) Close() error                         { return nil }

// credentials returns the login for username, taking the password from
// $SHAKE_TIMER_PASSWORD or prompting on the terminal.
func credentials(username string) (api.Credentials, error) {
	if username == "" {
		return api.Credentials{}, errors.New("no username: set username in the config or pass --user")
	}
	if pw, ok := os.LookupEnv(envPassword); ok {
		return api.Credentials{Username: username, Password: pw}, nil
	}
	pw, err := readPassword(fmt.Sprintf("password for %s: ", username))
	if err != nil {
		return api.Credentials{}, err
	}
	return api.Credentials{Username: username, Password: pw}, nil
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal to read a password from; set %s", envPassword)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// login logs c into the server as username. It is a no-op without a username.
func (c *client) login(ctx context.Context, username string) error {
	if username == "" {
		return nil
	}
	creds, err := credentials(username)
	if err != nil {
		return err
	}
	if err := c.gate.Login(ctx, creds); err != nil {
		return fmt.Errorf("login as %s: %w", username, err)
	}
	log.Printf("logged in as %s", username)
	return nil
}
