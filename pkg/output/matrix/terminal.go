package matrix

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ericogr/sensehat-weather/pkg/indicator"
)

const (
	litCell = "██"
	offCell = "··"
)

// Terminal draws the matrix as coloured blocks, for running without the
// hardware attached.
type Terminal struct {
	w        io.Writer
	offColor indicator.Color
	off      lipgloss.Style
}

// NewTerminal writes to w, or stdout when w is nil. Cells equal to off are
// drawn as unlit.
func NewTerminal(w io.Writer, off indicator.Color) *Terminal {
	if w == nil {
		w = os.Stdout
	}
	return &Terminal{
		w:        w,
		offColor: off,
		off:      lipgloss.NewStyle().Foreground(lipgloss.Color("236")),
	}
}

func (t *Terminal) SetPixels(f indicator.Frame) error {
	_, err := io.WriteString(t.w, t.render(f))
	return err
}

func (t *Terminal) Clear() error {
	var f indicator.Frame
	for i := range f {
		f[i] = t.offColor
	}
	return t.SetPixels(f)
}

func (t *Terminal) Close() error { return nil }

func (t *Terminal) render(f indicator.Frame) string {
	var sb strings.Builder
	for r := 0; r < indicator.Rows; r++ {
		for c := 0; c < indicator.Columns; c++ {
			px := f.At(r, c)
			if px == t.offColor {
				sb.WriteString(t.off.Render(offCell))
				continue
			}
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(px.String()))
			sb.WriteString(style.Render(litCell))
		}
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	return sb.String()
}
