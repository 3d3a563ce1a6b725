package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ericogr/sensehat-weather/pkg/config"
	"github.com/ericogr/sensehat-weather/pkg/sensor"
)

// stepSensor returns fixed readings and cancels after max reads.
type stepSensor struct {
	reads  int
	max    int
	cancel context.CancelFunc
	err    error
}

func (s *stepSensor) Read() ([]sensor.Reading, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.reads++
	if s.reads >= s.max {
		s.cancel()
	}
	return []sensor.Reading{{Kind: sensor.Temperature, Value: float64(s.reads)}}, nil
}

func (s *stepSensor) Close() error { return nil }

type recorder struct {
	got []float64
	err error
}

func (r *recorder) Publish(rs []sensor.Reading) error {
	r.got = append(r.got, rs[0].Value)
	return r.err
}

func (r *recorder) Close() error { return nil }

// fakeClock advances by step on every call.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func TestRunPublishesPerInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &stepSensor{max: 6, cancel: cancel}
	fast, slow := &recorder{}, &recorder{}
	clock := &fakeClock{t: time.Unix(0, 0), step: 10 * time.Second}
	p := &Poller{
		Sensor: s,
		Entries: []Entry{
			{Name: "matrix", Output: fast, Interval: 10 * time.Second},
			{Name: "http", Output: slow, Interval: 30 * time.Second},
		},
		Interval: time.Millisecond,
		Now:      clock.Now,
	}
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fast.got) != 6 {
		t.Fatalf("fast output published %d times, want 6", len(fast.got))
	}
	want := []float64{1, 4}
	if len(slow.got) != len(want) || slow.got[0] != want[0] || slow.got[1] != want[1] {
		t.Fatalf("slow output got %v want %v", slow.got, want)
	}
}

func TestRunStopsOnSensorError(t *testing.T) {
	s := &stepSensor{err: errors.New("i2c timeout")}
	out := &recorder{}
	p := &Poller{Sensor: s, Entries: []Entry{{Name: "console", Output: out}}, Interval: time.Millisecond}
	err := p.Run(context.Background())
	if err == nil || !errors.Is(err, s.err) {
		t.Fatalf("Run: got %v want sensor error", err)
	}
	if len(out.got) != 0 {
		t.Fatalf("nothing should be published")
	}
}

func TestRunStopsOnPublishError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &stepSensor{max: 100, cancel: cancel}
	bad := &recorder{err: errors.New("connection refused")}
	after := &recorder{}
	p := &Poller{
		Sensor:   s,
		Entries:  []Entry{{Name: "http", Output: bad}, {Name: "console", Output: after}},
		Interval: time.Millisecond,
	}
	err := p.Run(ctx)
	if err == nil || !errors.Is(err, bad.err) {
		t.Fatalf("Run: got %v want publish error", err)
	}
	if s.reads != 1 || len(after.got) != 0 {
		t.Fatalf("loop continued after publish error: reads=%d after=%v", s.reads, after.got)
	}
}

func TestRunContinueOnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &stepSensor{max: 3, cancel: cancel}
	bad := &recorder{err: errors.New("connection refused")}
	good := &recorder{}
	p := &Poller{
		Sensor:          s,
		Entries:         []Entry{{Name: "http", Output: bad}, {Name: "console", Output: good}},
		Interval:        time.Millisecond,
		ContinueOnError: true,
	}
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(bad.got) != 3 || len(good.got) != 3 {
		t.Fatalf("publishes: bad=%d good=%d", len(bad.got), len(good.got))
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &stepSensor{max: 100, cancel: func() {}}
	p := &Poller{Sensor: s, Interval: time.Hour}
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop")
	}
	if s.reads > 1 {
		t.Fatalf("reads after cancel: %d", s.reads)
	}
}

func TestRunRejectsZeroInterval(t *testing.T) {
	p := &Poller{Sensor: &stepSensor{}}
	if err := p.Run(context.Background()); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}

func TestComputeInterval(t *testing.T) {
	cfg := config.Config{IntervalMs: 10000}
	if got := ComputeInterval(cfg); got != 10*time.Second {
		t.Fatalf("fallback interval: got %s", got)
	}
	cfg.Outputs = []config.OutputConfig{{Type: "matrix", IntervalMs: 10000}, {Type: "http", IntervalMs: 3600000}}
	if got := ComputeInterval(cfg); got != 10*time.Second {
		t.Fatalf("matrix+http interval: got %s", got)
	}
	cfg.Outputs = []config.OutputConfig{{Type: "html", IntervalMs: 4000}, {Type: "web", IntervalMs: 6000}}
	if got := ComputeInterval(cfg); got != 2*time.Second {
		t.Fatalf("gcd interval: got %s", got)
	}
}
