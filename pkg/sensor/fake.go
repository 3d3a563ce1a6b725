package sensor

import (
	"math/rand"
	"sync"
	"time"

	"github.com/ericogr/sensehat-weather/pkg/config"
)

// FakeSensor walks randomly around typical indoor conditions.
type FakeSensor struct {
	mu          sync.Mutex
	rnd         *rand.Rand
	digits      int
	temperature float64
	humidity    float64
	pressure    float64
}

func NewFakeSensor(cfg config.Config) (Sensor, error) {
	return &FakeSensor{
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		digits:      cfg.RoundDigits,
		temperature: 21.0,
		humidity:    45.0,
		pressure:    1013.25,
	}, nil
}

func (f *FakeSensor) Read() ([]Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.temperature = clamp(f.temperature+f.rnd.NormFloat64()*0.3, -10, 50)
	f.humidity = clamp(f.humidity+f.rnd.NormFloat64()*1.0, 0, 100)
	f.pressure = clamp(f.pressure+f.rnd.NormFloat64()*0.5, 260, 1260)
	return newReadings(f.temperature, f.humidity, f.pressure, f.digits, time.Now()), nil
}

func (f *FakeSensor) Close() error { return nil }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
