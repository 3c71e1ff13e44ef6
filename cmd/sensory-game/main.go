// Command sensory-game runs the sensory game device: it polls the sensors,
// drives the lights, sound and vibration motor, and publishes play to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/sensory-game/internal/config"
	"github.com/sweeney/sensory-game/internal/gpio"
	"github.com/sweeney/sensory-game/internal/logic"
	"github.com/sweeney/sensory-game/internal/mqtt"
	"github.com/sweeney/sensory-game/internal/report"
	"github.com/sweeney/sensory-game/internal/sim"
	"github.com/sweeney/sensory-game/internal/status"
	"github.com/sweeney/sensory-game/internal/store"
	"github.com/sweeney/sensory-game/internal/web"
)

func main() {
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config) error {
	hw, err := openHardware(cfg)
	if err != nil {
		return err
	}
	defer hw.Close()

	// Print state mode
	if cfg.PrintState {
		return printState(os.Stdout, hw.inputs)
	}

	// The simulator owns the terminal, so logs go to a file.
	if hw.sim != nil {
		logPath := filepath.Join(os.TempDir(), "sensory-game.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
		fmt.Fprintf(os.Stderr, "logging to %s\n", logPath)
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), cfg.Status())
	if net := config.ReadNetwork(); net != nil {
		tracker.SetNetwork(net)
	}

	// Session history
	var (
		recorder report.History
		recent   web.History
	)
	if cfg.DBPath != "" {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer db.Close()
		recorder, recent = db, db
		if high, err := db.HighScore(context.Background()); err != nil {
			log.Printf("history: read high score: %v", err)
		} else {
			tracker.SetHighScore(high)
		}
	}

	// Initialize MQTT
	var (
		publisher  mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
	)
	if cfg.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.Broker,
			ClientID: cfg.ClientID,
			Topics:   mqtt.NewTopics(cfg.TopicPrefix),
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
		tracker.SetMQTTConnected(p.IsConnected())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reporter := report.New(publisher, recorder, tracker)
	reportDone := make(chan struct{})
	go func() {
		defer close(reportDone)
		reporter.Run(ctx)
	}()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	hw.display = displays{hw.display, tracker}
	dev := newDevice(hw, deviceConfig{
		fullScale:   cfg.FullScale,
		analogEvery: int(cfg.AnalogPoll / cfg.Poll),
		random:      rand.New(rand.NewSource(seed)),
		listener:    reporter,
	})

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	publishSystem(publisher, mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	})

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, recent)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	var quit <-chan struct{}
	simDone := make(chan struct{})
	if hw.sim != nil {
		screen, err := sim.Open()
		if err != nil {
			return fmt.Errorf("open simulator: %w", err)
		}
		quit = hw.sim.Done()
		go func() {
			defer close(simDone)
			hw.sim.Run(ctx, screen)
		}()
	} else {
		close(simDone)
	}

	log.Printf("started: poll=%v analog=%v broker=%s heartbeat=%v sim=%v seed=%d",
		cfg.Poll, cfg.AnalogPoll, cfg.Broker, cfg.Heartbeat, cfg.Sim, seed)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	err = runLoop(dev, publisher, mqttStatus, tracker, cfg.Heartbeat, time.Now, ticker.C, sigCh, quit)

	// Let queued notices reach MQTT and history before the deferred closes.
	cancel()
	<-reportDone
	<-simDone
	if n := reporter.Dropped(); n > 0 {
		log.Printf("report: %d notices dropped", n)
	}
	return err
}

// runLoop owns the components: every Drain, Check and state read happens on
// this goroutine. It returns after publishing SHUTDOWN on a signal or when
// quit is closed.
func runLoop(dev *device, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, quit <-chan struct{}) error {
	dev.rt.Init()
	dev.rt.Drain()
	lastBeat := now()

	refresh := func() {
		if tracker == nil {
			return
		}
		tracker.Update(dev.state())
		tracker.SetQueues(dev.queues())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}
	shutdown := func(reason string) {
		dev.rt.Stop()
		event := mqtt.SystemEvent{
			Timestamp: now(),
			Event:     "SHUTDOWN",
			Reason:    reason,
			Retained:  true,
		}
		if tracker != nil {
			refresh()
			event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", reason)
		}
		publishSystem(publisher, event)
	}
	refresh()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			shutdown(signalName(s))
			return nil

		case <-quit:
			log.Printf("simulator closed, shutting down")
			shutdown("QUIT")
			return nil

		case <-dev.rt.Wake():
			dev.rt.Drain()

		case <-tick:
			t := now()
			dev.rt.Check()
			dev.rt.Drain()
			refresh()

			if heartbeat <= 0 || t.Sub(lastBeat) < heartbeat {
				continue
			}
			lastBeat = t
			hbEvent := mqtt.SystemEvent{
				Timestamp: t,
				Event:     "HEARTBEAT",
			}
			if tracker != nil {
				// Refresh network info for heartbeat
				if net := config.ReadNetwork(); net != nil {
					tracker.SetNetwork(net)
				}
				snap := tracker.Snapshot()
				log.Printf("heartbeat: uptime=%v phase=%s games=%d zen=%d high=%d",
					snap.Uptime().Truncate(time.Second), snap.Device.Phase,
					snap.Sessions.GamesPlayed, snap.Sessions.ZenSessions, snap.Sessions.HighScore)
				hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
			}
			publishSystem(publisher, hbEvent)
		}
	}
}

// publishSystem logs failures and never stops the loop. A nil publisher
// means MQTT is disabled.
func publishSystem(p mqtt.Publisher, event mqtt.SystemEvent) {
	if p == nil {
		return
	}
	name := strings.ToLower(event.Event)
	if err := p.PublishSystem(event); err != nil {
		log.Printf("failed to publish %s event: %v", name, err)
		return
	}
	if event.Event != "HEARTBEAT" {
		log.Printf("published %s event", name)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func printState(w io.Writer, r gpio.Reader) error {
	sample, err := r.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	parts := make([]string, 0, logic.NumChannels)
	for ch := logic.Channel(0); ch < logic.NumChannels; ch++ {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToUpper(ch.String()), stateString(sample[ch] == logic.Triggered)))
	}
	fmt.Fprintln(w, strings.Join(parts, ", "))
	return nil
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
