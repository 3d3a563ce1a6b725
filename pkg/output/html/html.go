// Package html rewrites fields of an HTML document in place.
package html

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/ericogr/sensehat-weather/pkg/config"
	"github.com/ericogr/sensehat-weather/pkg/output"
	"github.com/ericogr/sensehat-weather/pkg/sensor"
)

type HTMLOutput struct {
	path          string
	timeID        string
	temperatureID string
	humidityID    string
	timeLayout    string
}

func NewHTML(cfg config.HTMLConfig) output.Output {
	return &HTMLOutput{
		path:          cfg.Path,
		timeID:        cfg.TimeID,
		temperatureID: cfg.TemperatureID,
		humidityID:    cfg.HumidityID,
		timeLayout:    cfg.TimeLayout,
	}
}

// Publish parses the document, replaces the text of the time, temperature
// and humidity elements and writes the whole document back.
func (h *HTMLOutput) Publish(readings []sensor.Reading) error {
	temp, ok := sensor.Value(readings, sensor.Temperature)
	if !ok {
		return fmt.Errorf("html: no %s reading", sensor.Temperature)
	}
	hum, ok := sensor.Value(readings, sensor.Humidity)
	if !ok {
		return fmt.Errorf("html: no %s reading", sensor.Humidity)
	}

	info, err := os.Stat(h.path)
	if err != nil {
		return fmt.Errorf("html: %w", err)
	}
	b, err := os.ReadFile(h.path)
	if err != nil {
		return fmt.Errorf("html: read: %w", err)
	}
	doc, err := html.Parse(bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("html: parse %s: %w", h.path, err)
	}

	fields := []struct{ id, text string }{
		{h.timeID, readings[0].Timestamp.Format(h.timeLayout)},
		{h.temperatureID, strconv.FormatFloat(temp, 'f', -1, 64)},
		{h.humidityID, strconv.FormatFloat(hum, 'f', -1, 64)},
	}
	for _, f := range fields {
		n := findByID(doc, f.id)
		if n == nil {
			return fmt.Errorf("html: no element with id %q in %s", f.id, h.path)
		}
		setText(n, f.text)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return fmt.Errorf("html: render: %w", err)
	}
	if err := os.WriteFile(h.path, buf.Bytes(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("html: write: %w", err)
	}
	return nil
}

func (h *HTMLOutput) Close() error { return nil }

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Namespace == "" && strings.EqualFold(a.Key, "id") && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// setText replaces every child of n with a single text node.
func setText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}
