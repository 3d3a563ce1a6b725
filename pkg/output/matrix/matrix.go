// Package matrix shows readings as bar graphs on an 8x8 RGB LED matrix.
package matrix

import (
	"fmt"
	"log"

	"github.com/ericogr/sensehat-weather/pkg/config"
	"github.com/ericogr/sensehat-weather/pkg/indicator"
	"github.com/ericogr/sensehat-weather/pkg/output"
	"github.com/ericogr/sensehat-weather/pkg/sensor"
)

// Display replaces the whole matrix image on every SetPixels call.
type Display interface {
	SetPixels(indicator.Frame) error
	Clear() error
	Close() error
}

type MatrixOutput struct {
	display Display
	mapper  *indicator.Mapper
}

// NewMatrix opens the configured display and clears it.
func NewMatrix(cfg config.MatrixConfig, mapper *indicator.Mapper) (output.Output, error) {
	var (
		d   Display
		err error
	)
	switch cfg.Driver {
	case config.MatrixSenseHAT:
		d, err = NewSenseHAT(cfg.I2CBus, uint16(cfg.I2CAddress))
	case config.MatrixFramebuffer:
		d, err = NewFramebuffer(cfg.Device)
	case config.MatrixTerminal:
		d = NewTerminal(nil, mapper.Palette().Off)
	default:
		err = fmt.Errorf("unknown matrix driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	m, err := New(d, mapper)
	if err != nil {
		return nil, err
	}
	log.Printf("matrix: using %s display", cfg.Driver)
	return m, nil
}

// New wraps an already opened display.
func New(d Display, mapper *indicator.Mapper) (*MatrixOutput, error) {
	if err := d.Clear(); err != nil {
		d.Close()
		return nil, fmt.Errorf("matrix clear: %w", err)
	}
	return &MatrixOutput{display: d, mapper: mapper}, nil
}

func (m *MatrixOutput) Publish(readings []sensor.Reading) error {
	var vals [3]float64
	for i, k := range sensor.Kinds {
		v, ok := sensor.Value(readings, k)
		if !ok {
			return fmt.Errorf("matrix: no %s reading", k)
		}
		vals[i] = v
	}
	frame := m.mapper.Frame(vals[0], vals[1], vals[2])
	if err := m.display.SetPixels(frame); err != nil {
		return fmt.Errorf("matrix: %w", err)
	}
	return nil
}

func (m *MatrixOutput) Close() error {
	return m.display.Close()
}
