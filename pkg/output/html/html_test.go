package html

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ericogr/sensehat-weather/pkg/config"
	"github.com/ericogr/sensehat-weather/pkg/sensor"
)

const page = `<!DOCTYPE html>
<html><head><title>Weather</title></head>
<body>
<table>
<tr><td>Time</td><td id="time">never</td></tr>
<tr><td>Temperature</td><td id="temp"><b>old</b> value</td></tr>
<tr><td>Humidity</td><td id="humidity"></td></tr>
</table>
<p id="footer">keep me</p>
</body></html>
`

func newOutput(path string) *HTMLOutput {
	return NewHTML(config.HTMLConfig{
		Path:          path,
		TimeID:        "time",
		TemperatureID: "temp",
		HumidityID:    "humidity",
		TimeLayout:    "2006-01-02 15:04:05",
	}).(*HTMLOutput)
}

func readings() []sensor.Reading {
	ts := time.Date(2025, 9, 19, 14, 41, 54, 0, time.UTC)
	return []sensor.Reading{
		{Kind: sensor.Temperature, Value: 22.46, Timestamp: ts},
		{Kind: sensor.Humidity, Value: 35.1, Timestamp: ts},
		{Kind: sensor.Pressure, Value: 1013.25, Timestamp: ts},
	}
}

func TestPublishRewritesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	if err := os.WriteFile(path, []byte(page), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	h := newOutput(path)
	if err := h.Publish(readings()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := string(b)
	for _, want := range []string{
		`<td id="time">2025-09-19 14:41:54</td>`,
		`<td id="temp">22.46</td>`,
		`<td id="humidity">35.1</td>`,
		`<p id="footer">keep me</p>`,
		`<!DOCTYPE html>`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("document missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "old") {
		t.Fatalf("old content not replaced:\n%s", got)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode changed: %v", info.Mode())
	}

	// a second publish keeps a single text node per field
	if err := h.Publish(readings()); err != nil {
		t.Fatalf("second Publish: %v", err)
	}
	b, _ = os.ReadFile(path)
	if n := strings.Count(string(b), "22.46"); n != 1 {
		t.Fatalf("temperature written %d times", n)
	}
}

func TestPublishMissingElement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")
	if err := os.WriteFile(path, []byte(`<html><body><span id="time"></span></body></html>`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := newOutput(path).Publish(readings()); err == nil {
		t.Fatalf("expected error for missing element")
	}
}

func TestPublishMissingFile(t *testing.T) {
	h := newOutput(filepath.Join(t.TempDir(), "missing.html"))
	if err := h.Publish(readings()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestPublishMissingReading(t *testing.T) {
	h := newOutput("unused.html")
	if err := h.Publish(readings()[2:]); err == nil {
		t.Fatalf("expected error without temperature")
	}
}
