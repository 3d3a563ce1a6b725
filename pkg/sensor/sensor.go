package sensor

import (
	"fmt"
	"math"
	"time"

	"github.com/ericogr/sensehat-weather/pkg/config"
)

// Kind identifies the physical quantity of a reading.
type Kind string

const (
	Temperature Kind = "temperature"
	Humidity    Kind = "humidity"
	Pressure    Kind = "pressure"
)

// Kinds lists every kind in frame order.
var Kinds = []Kind{Temperature, Humidity, Pressure}

func (k Kind) Unit() string {
	switch k {
	case Temperature:
		return "°C"
	case Humidity:
		return "%"
	case Pressure:
		return "hPa"
	}
	return ""
}

// DeviceClass is the Home Assistant device class for the kind.
func (k Kind) DeviceClass() string {
	switch k {
	case Temperature:
		return "temperature"
	case Humidity:
		return "humidity"
	case Pressure:
		return "atmospheric_pressure"
	}
	return ""
}

type Reading struct {
	Kind      Kind      `json:"kind"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

type Sensor interface {
	Read() ([]Reading, error)
	Close() error
}

// New builds the sensor selected by cfg.SensorType.
func New(cfg config.Config) (Sensor, error) {
	switch cfg.SensorType {
	case config.SensorSimulation:
		return NewFakeSensor(cfg)
	case config.SensorReal:
		return NewBME280Sensor(cfg)
	default:
		return nil, fmt.Errorf("unknown sensor type %q", cfg.SensorType)
	}
}

// Value returns the first reading of kind k.
func Value(readings []Reading, k Kind) (float64, bool) {
	for _, r := range readings {
		if r.Kind == k {
			return r.Value, true
		}
	}
	return 0, false
}

// Finite reports whether v is neither NaN nor an infinity. JSON has no
// encoding for the others.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Round rounds v to the given number of decimal places, half away from zero.
func Round(v float64, digits int) float64 {
	if !Finite(v) {
		return v
	}
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

func newReadings(t, h, p float64, digits int, ts time.Time) []Reading {
	return []Reading{
		{Kind: Temperature, Value: Round(t, digits), Timestamp: ts},
		{Kind: Humidity, Value: Round(h, digits), Timestamp: ts},
		{Kind: Pressure, Value: Round(p, digits), Timestamp: ts},
	}
}
