// Package poller runs the read, publish, wait cycle.
package poller

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ericogr/sensehat-weather/pkg/config"
	"github.com/ericogr/sensehat-weather/pkg/output"
	"github.com/ericogr/sensehat-weather/pkg/sensor"
)

// Entry is an output together with how often it receives readings.
type Entry struct {
	Name     string
	Output   output.Output
	Interval time.Duration
}

type Poller struct {
	Sensor   sensor.Sensor
	Entries  []Entry
	Interval time.Duration
	// ContinueOnError logs publish errors instead of stopping Run.
	// Sensor errors always stop Run.
	ContinueOnError bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Run polls until ctx is done. Cycles never overlap: the wait starts after
// every due output has been published to. A cancelled ctx returns nil; a
// sensor error, or a publish error without ContinueOnError, is returned.
func (p *Poller) Run(ctx context.Context) error {
	if p.Interval <= 0 {
		return fmt.Errorf("poll interval must be > 0, got %s", p.Interval)
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	last := make([]time.Time, len(p.Entries))
	published := make([]bool, len(p.Entries))

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return nil
		}

		readings, err := p.Sensor.Read()
		if err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}

		t := now()
		for i, e := range p.Entries {
			if published[i] && t.Sub(last[i]) < e.Interval {
				continue
			}
			last[i], published[i] = t, true
			if err := e.Output.Publish(readings); err != nil {
				if !p.ContinueOnError {
					return fmt.Errorf("publish %s: %w", e.Name, err)
				}
				log.Printf("poller: publish %s: %v", e.Name, err)
			}
		}

		timer.Reset(p.Interval)
	}
}

// ComputeInterval returns the base poll interval: the greatest common
// divisor of the output intervals, or the configured interval when no
// output sets one.
func ComputeInterval(cfg config.Config) time.Duration {
	g := 0
	for _, o := range cfg.Outputs {
		if o.IntervalMs > 0 {
			g = gcd(g, o.IntervalMs)
		}
	}
	if g == 0 {
		g = cfg.IntervalMs
	}
	return time.Duration(g) * time.Millisecond
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
