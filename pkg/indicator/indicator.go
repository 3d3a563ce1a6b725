// Package indicator maps environmental readings onto bar graphs for an
// 8x8 RGB LED matrix. The top three rows show temperature, the next three
// humidity and the bottom two pressure; each bar lights a number of
// columns chosen by bucketing the reading.
package indicator

import (
	"encoding/json"
	"fmt"
	"math"
)

const (
	Columns         = 8
	TemperatureRows = 3
	HumidityRows    = 3
	PressureRows    = 2
	Rows            = TemperatureRows + HumidityRows + PressureRows
	FrameSize       = Columns * Rows
)

// Color is one RGB cell of the matrix.
type Color struct {
	R, G, B uint8
}

var (
	Off   = Color{0, 0, 0}
	White = Color{255, 255, 255}
	Red   = Color{255, 0, 0}
	Green = Color{0, 255, 0}
	Blue  = Color{0, 0, 255}
)

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// MarshalJSON encodes the color as [r,g,b].
func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]uint8{c.R, c.G, c.B})
}

func (c *Color) UnmarshalJSON(b []byte) error {
	var rgb [3]int
	if err := json.Unmarshal(b, &rgb); err != nil {
		return fmt.Errorf("color: %w", err)
	}
	for _, v := range rgb {
		if v < 0 || v > 255 {
			return fmt.Errorf("color channel %d out of range 0-255", v)
		}
	}
	c.R, c.G, c.B = uint8(rgb[0]), uint8(rgb[1]), uint8(rgb[2])
	return nil
}

type Palette struct {
	Off         Color `json:"off"`
	Temperature Color `json:"temperature"`
	Humidity    Color `json:"humidity"`
	Pressure    Color `json:"pressure"`
}

func DefaultPalette() Palette {
	return Palette{Off: Off, Temperature: Red, Humidity: Blue, Pressure: Green}
}

// Bar is a row-major run of cells, Columns wide.
type Bar []Color

// Frame is a full matrix image in row-major order.
type Frame [FrameSize]Color

// At returns the cell at row r, column c.
func (f Frame) At(r, c int) Color {
	return f[r*Columns+c]
}

// Lit counts the cells of f that differ from off.
func (f Frame) Lit(off Color) int {
	n := 0
	for _, c := range f {
		if c != off {
			n++
		}
	}
	return n
}

// LitColumns counts the lit cells in the first row of b.
func LitColumns(b Bar, off Color) int {
	n := 0
	for i := 0; i < Columns && i < len(b); i++ {
		if b[i] != off {
			n++
		}
	}
	return n
}

type Mapper struct {
	palette  Palette
	pressure Buckets
}

func NewMapper(p Palette, mode PressureMode) *Mapper {
	m := &Mapper{palette: p, pressure: PressureReference}
	if mode == PressureModeCorrected {
		m.pressure = PressureCorrected
	}
	return m
}

func (m *Mapper) Palette() Palette { return m.palette }

// TemperatureBar maps degrees Celsius to a 3x8 red bar.
func (m *Mapper) TemperatureBar(tempC float64) Bar {
	return fill(TemperatureRows, TemperatureBuckets.Columns(tempC), m.palette.Temperature, m.palette.Off)
}

// HumidityBar maps percent relative humidity to a 3x8 blue bar.
func (m *Mapper) HumidityBar(humidityPct float64) Bar {
	return fill(HumidityRows, HumidityBuckets.Columns(humidityPct), m.palette.Humidity, m.palette.Off)
}

// PressureBar maps hectopascals to a 2x8 green bar.
func (m *Mapper) PressureBar(pressureHPa float64) Bar {
	return fill(PressureRows, m.pressure.Columns(pressureHPa), m.palette.Pressure, m.palette.Off)
}

// Frame stacks the temperature, humidity and pressure bars.
func (m *Mapper) Frame(tempC, humidityPct, pressureHPa float64) Frame {
	var f Frame
	n := copy(f[:], m.TemperatureBar(tempC))
	n += copy(f[n:], m.HumidityBar(humidityPct))
	copy(f[n:], m.PressureBar(pressureHPa))
	return f
}

func fill(rows, lit int, on, off Color) Bar {
	b := make(Bar, rows*Columns)
	for r := 0; r < rows; r++ {
		for c := 0; c < Columns; c++ {
			if c < lit {
				b[r*Columns+c] = on
			} else {
				b[r*Columns+c] = off
			}
		}
	}
	return b
}

// Bucket is the range (Lower, Upper], or [Lower, Upper] when
// LowerInclusive is set.
type Bucket struct {
	Lower          float64
	Upper          float64
	LowerInclusive bool
	Columns        int
}

func (b Bucket) Contains(v float64) bool {
	if v > b.Upper {
		return false
	}
	if b.LowerInclusive {
		return v >= b.Lower
	}
	return v > b.Lower
}

// Buckets are tried in order; the first match wins.
type Buckets []Bucket

// Columns returns the lit column count for v. Values outside every bucket,
// NaN and infinities saturate to a full row.
func (bs Buckets) Columns(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Columns
	}
	for _, b := range bs {
		if b.Contains(v) {
			return b.Columns
		}
	}
	return Columns
}

var TemperatureBuckets = Buckets{
	{Lower: 0, Upper: 5, LowerInclusive: true, Columns: 1},
	{Lower: 5, Upper: 10, Columns: 2},
	{Lower: 10, Upper: 15, Columns: 3},
	{Lower: 15, Upper: 20, Columns: 4},
	{Lower: 20, Upper: 25, Columns: 5},
	{Lower: 25, Upper: 30, Columns: 6},
	{Lower: 30, Upper: 35, Columns: 7},
	{Lower: 35, Upper: 40, Columns: 8},
}

// HumidityBuckets step 1, 3, 5, 7 on purpose; above 40% the bar is full.
var HumidityBuckets = Buckets{
	{Lower: 0, Upper: 10, LowerInclusive: true, Columns: 1},
	{Lower: 10, Upper: 20, Columns: 3},
	{Lower: 20, Upper: 30, Columns: 5},
	{Lower: 30, Upper: 40, Columns: 7},
}

// PressureReference is the mapping the matrix has always shown: only the
// 1- and 3-column buckets can match, anything above 600 hPa fills the bar.
// The 5- and 7-column buckets are empty ranges and never selected.
var PressureReference = Buckets{
	{Lower: 0, Upper: 300, LowerInclusive: true, Columns: 1},
	{Lower: 300, Upper: 600, Columns: 3},
	{Lower: 600, Upper: 600, Columns: 5},
	{Lower: 600, Upper: 600, Columns: 7},
}

// PressureCorrected gives every bucket a reachable range.
var PressureCorrected = Buckets{
	{Lower: 0, Upper: 300, LowerInclusive: true, Columns: 1},
	{Lower: 300, Upper: 600, Columns: 3},
	{Lower: 600, Upper: 900, Columns: 5},
	{Lower: 900, Upper: 1200, Columns: 7},
}

// PressureMode selects the pressure bucket table.
type PressureMode string

const (
	PressureModeReference PressureMode = "reference"
	PressureModeCorrected PressureMode = "corrected"
)

func ParsePressureMode(s string) (PressureMode, error) {
	switch PressureMode(s) {
	case "", PressureModeReference:
		return PressureModeReference, nil
	case PressureModeCorrected:
		return PressureModeCorrected, nil
	default:
		return "", fmt.Errorf("unknown pressure mode %q (want reference|corrected)", s)
	}
}
