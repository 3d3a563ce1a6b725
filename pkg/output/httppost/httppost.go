// Package httppost delivers temperature and humidity to a remote endpoint
// as query parameters of a POST request.
package httppost

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ericogr/sensehat-weather/pkg/config"
	"github.com/ericogr/sensehat-weather/pkg/output"
	"github.com/ericogr/sensehat-weather/pkg/sensor"
)

type HTTPOutput struct {
	endpoint *url.URL
	client   *http.Client
}

func NewHTTP(cfg config.HTTPConfig) (output.Output, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("http url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("http url %q: scheme must be http or https", cfg.URL)
	}
	return &HTTPOutput{
		endpoint: u,
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
	}, nil
}

// Publish sends one POST per call. The response status is logged, not
// checked.
func (h *HTTPOutput) Publish(readings []sensor.Reading) error {
	temp, ok := sensor.Value(readings, sensor.Temperature)
	if !ok {
		return fmt.Errorf("http: no %s reading", sensor.Temperature)
	}
	hum, ok := sensor.Value(readings, sensor.Humidity)
	if !ok {
		return fmt.Errorf("http: no %s reading", sensor.Humidity)
	}

	u := *h.endpoint
	q := u.Query()
	q.Set("temperature", strconv.FormatFloat(temp, 'f', -1, 64))
	q.Set("humidity", strconv.FormatFloat(hum, 'f', -1, 64))
	u.RawQuery = q.Encode()

	// no body, so no Content-Type either
	req, err := http.NewRequest(http.MethodPost, u.String(), nil)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		log.Printf("http: %s responded %s", h.endpoint.Redacted(), resp.Status)
	}
	log.Printf("http: sent request @ %s -- temperature=%v humidity=%v", time.Now().Format(time.RFC3339), temp, hum)
	return nil
}

func (h *HTTPOutput) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
