package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericogr/sensehat-weather/pkg/config"
	"github.com/ericogr/sensehat-weather/pkg/indicator"
	"github.com/ericogr/sensehat-weather/pkg/output"
	"github.com/ericogr/sensehat-weather/pkg/output/console"
	"github.com/ericogr/sensehat-weather/pkg/output/html"
	"github.com/ericogr/sensehat-weather/pkg/output/httppost"
	"github.com/ericogr/sensehat-weather/pkg/output/matrix"
	"github.com/ericogr/sensehat-weather/pkg/output/mqtt"
	"github.com/ericogr/sensehat-weather/pkg/output/web"
	"github.com/ericogr/sensehat-weather/pkg/poller"
	"github.com/ericogr/sensehat-weather/pkg/sensor"
)

func main() {
	log.Println("starting sensehat-weather...")

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	mode, err := indicator.ParsePressureMode(cfg.PressureMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	mapper := indicator.NewMapper(cfg.Palette, mode)

	s, err := sensor.New(cfg)
	if err != nil {
		log.Fatalf("sensor: %v", err)
	}

	entries, err := initOutputs(cfg, mapper)
	if err != nil {
		s.Close()
		log.Fatalf("outputs: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, s, entries)
	stop()

	closeOutputs(entries)
	if cerr := s.Close(); cerr != nil {
		log.Printf("sensor close: %v", cerr)
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	log.Println("stopped")
}

// run polls the sensor and serves any listening outputs until ctx is done
// or one of them fails.
func run(ctx context.Context, cfg config.Config, s sensor.Sensor, entries []poller.Entry) error {
	g, gctx := errgroup.WithContext(ctx)

	p := &poller.Poller{
		Sensor:          s,
		Entries:         entries,
		Interval:        poller.ComputeInterval(cfg),
		ContinueOnError: cfg.ContinueOnError,
	}
	log.Printf("polling every %s with %d output(s)", p.Interval, len(entries))
	g.Go(func() error {
		if err := p.Run(gctx); err != nil {
			return err
		}
		// unblock the servers once polling stops
		return context.Canceled
	})

	for _, e := range entries {
		if srv, ok := e.Output.(output.Server); ok {
			g.Go(func() error { return srv.Serve(gctx) })
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// initOutputs builds every configured output. Outputs built before a
// failure are closed again.
func initOutputs(cfg config.Config, mapper *indicator.Mapper) ([]poller.Entry, error) {
	entries := make([]poller.Entry, 0, len(cfg.Outputs))
	for _, oc := range cfg.Outputs {
		out, err := newOutput(oc, mapper)
		if err != nil {
			closeOutputs(entries)
			return nil, fmt.Errorf("%s output: %w", oc.Type, err)
		}
		entries = append(entries, poller.Entry{
			Name:     oc.Type,
			Output:   out,
			Interval: time.Duration(oc.IntervalMs) * time.Millisecond,
		})
	}
	return entries, nil
}

func newOutput(oc config.OutputConfig, mapper *indicator.Mapper) (output.Output, error) {
	switch oc.Type {
	case config.OutputConsole:
		return console.NewConsole(), nil
	case config.OutputMQTT:
		if oc.MQTT == nil {
			return nil, fmt.Errorf("missing mqtt block")
		}
		return mqtt.NewMQTT(*oc.MQTT)
	case config.OutputHTML:
		if oc.HTML == nil {
			return nil, fmt.Errorf("missing html block")
		}
		return html.NewHTML(*oc.HTML), nil
	case config.OutputHTTP:
		if oc.HTTP == nil {
			return nil, fmt.Errorf("missing http block")
		}
		return httppost.NewHTTP(*oc.HTTP)
	case config.OutputMatrix:
		if oc.Matrix == nil {
			return nil, fmt.Errorf("missing matrix block")
		}
		return matrix.NewMatrix(*oc.Matrix, mapper)
	case config.OutputWeb:
		if oc.Web == nil {
			return nil, fmt.Errorf("missing web block")
		}
		return web.NewWeb(*oc.Web, mapper), nil
	default:
		return nil, fmt.Errorf("unknown output type %q", oc.Type)
	}
}

func closeOutputs(entries []poller.Entry) {
	for _, e := range entries {
		if err := e.Output.Close(); err != nil {
			log.Printf("%s close: %v", e.Name, err)
		}
	}
}
