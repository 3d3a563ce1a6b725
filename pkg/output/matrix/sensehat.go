package matrix

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/ericogr/sensehat-weather/pkg/indicator"
)

// The Sense HAT LED controller keeps the image in registers 0..191: for
// each row eight red, eight green then eight blue values, 5 bits each.
const senseHATImageSize = indicator.Rows * indicator.Columns * 3

// gamma of the Sense HAT kernel driver, indexed by the 5-bit channel value
var senseHATGamma = [32]byte{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x01,
	0x02, 0x02, 0x03, 0x03, 0x04, 0x05, 0x06, 0x07,
	0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0E, 0x0F, 0x11,
	0x12, 0x14, 0x15, 0x17, 0x19, 0x1B, 0x1D, 0x1F,
}

// tx is the part of i2c.Dev the display needs.
type tx interface {
	Tx(w, r []byte) error
}

type SenseHAT struct {
	dev tx
	bus i2c.BusCloser
}

func NewSenseHAT(busName string, addr uint16) (*SenseHAT, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c: %w", err)
	}
	return &SenseHAT{dev: &i2c.Dev{Addr: addr, Bus: bus}, bus: bus}, nil
}

func (s *SenseHAT) SetPixels(f indicator.Frame) error {
	if err := s.dev.Tx(encodeSenseHAT(f), nil); err != nil {
		return fmt.Errorf("sensehat write: %w", err)
	}
	return nil
}

func (s *SenseHAT) Clear() error {
	var f indicator.Frame
	return s.SetPixels(f)
}

func (s *SenseHAT) Close() error {
	if s.bus != nil {
		return s.bus.Close()
	}
	return nil
}

// encodeSenseHAT returns the register pointer followed by the image.
func encodeSenseHAT(f indicator.Frame) []byte {
	buf := make([]byte, 1+senseHATImageSize)
	buf[0] = 0x00
	for r := 0; r < indicator.Rows; r++ {
		row := buf[1+r*indicator.Columns*3:]
		for c := 0; c < indicator.Columns; c++ {
			px := f.At(r, c)
			row[c] = senseHATGamma[px.R>>3]
			row[indicator.Columns+c] = senseHATGamma[px.G>>3]
			row[2*indicator.Columns+c] = senseHATGamma[px.B>>3]
		}
	}
	return buf
}
