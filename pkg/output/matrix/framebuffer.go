package matrix

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/ericogr/sensehat-weather/pkg/indicator"
)

// Framebuffer drives a Linux fbdev matrix (the Sense HAT shows up as
// /dev/fb1) with 16-bit RGB565 pixels.
type Framebuffer struct {
	f *os.File
}

func NewFramebuffer(path string) (*Framebuffer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open framebuffer: %w", err)
	}
	return &Framebuffer{f: f}, nil
}

func (fb *Framebuffer) SetPixels(f indicator.Frame) error {
	if _, err := fb.f.WriteAt(encodeRGB565(f), 0); err != nil {
		return fmt.Errorf("framebuffer write: %w", err)
	}
	return nil
}

func (fb *Framebuffer) Clear() error {
	var f indicator.Frame
	return fb.SetPixels(f)
}

func (fb *Framebuffer) Close() error {
	return fb.f.Close()
}

func rgb565(c indicator.Color) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

func encodeRGB565(f indicator.Frame) []byte {
	buf := make([]byte, 2*len(f))
	for i, c := range f {
		binary.LittleEndian.PutUint16(buf[2*i:], rgb565(c))
	}
	return buf
}
