package console

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/ericogr/sensehat-weather/pkg/output"
	"github.com/ericogr/sensehat-weather/pkg/sensor"
)

type ConsoleOutput struct {
	w io.Writer
}

func NewConsole() output.Output { return &ConsoleOutput{w: os.Stdout} }

func (c *ConsoleOutput) Publish(readings []sensor.Reading) error {
	for _, r := range readings {
		v := strconv.FormatFloat(r.Value, 'f', -1, 64)
		if _, err := fmt.Fprintf(c.w, "%s kind=%s value=%s unit=%s\n", r.Timestamp.Format(time.RFC3339), r.Kind, v, r.Kind.Unit()); err != nil {
			return err
		}
	}
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }
