package httppost

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/ericogr/sensehat-weather/pkg/config"
	"github.com/ericogr/sensehat-weather/pkg/sensor"
)

func readings() []sensor.Reading {
	ts := time.Now()
	return []sensor.Reading{
		{Kind: sensor.Temperature, Value: 22.5, Timestamp: ts},
		{Kind: sensor.Humidity, Value: 35.12, Timestamp: ts},
		{Kind: sensor.Pressure, Value: 1013.25, Timestamp: ts},
	}
}

func TestPublishSendsQuery(t *testing.T) {
	type request struct {
		method      string
		query       url.Values
		length      int64
		contentType []string
	}
	got := make(chan request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- request{method: r.Method, query: r.URL.Query(), length: r.ContentLength, contentType: r.Header.Values("Content-Type")}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	out, err := NewHTTP(config.HTTPConfig{URL: srv.URL + "/weather?station=pi", TimeoutMs: 1000})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	defer out.Close()
	if err := out.Publish(readings()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	req := <-got
	if req.method != http.MethodPost {
		t.Fatalf("method: got %s", req.method)
	}
	if req.query.Get("temperature") != "22.5" || req.query.Get("humidity") != "35.12" {
		t.Fatalf("query: %v", req.query)
	}
	if req.query.Get("station") != "pi" {
		t.Fatalf("existing query dropped: %v", req.query)
	}
	if _, ok := req.query["pressure"]; ok {
		t.Fatalf("pressure should not be sent: %v", req.query)
	}
	if req.length > 0 {
		t.Fatalf("unexpected body of %d bytes", req.length)
	}
	if len(req.contentType) != 0 {
		t.Fatalf("unexpected Content-Type header: %q", req.contentType)
	}
}

func TestPublishIgnoresStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()
	out, err := NewHTTP(config.HTTPConfig{URL: srv.URL, TimeoutMs: 1000})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	if err := out.Publish(readings()); err != nil {
		t.Fatalf("Publish should not fail on status: %v", err)
	}
}

func TestPublishTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()
	out, err := NewHTTP(config.HTTPConfig{URL: addr, TimeoutMs: 500})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	if err := out.Publish(readings()); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestNewHTTPRejectsBadURL(t *testing.T) {
	for _, u := range []string{"ftp://example.com", "::bad"} {
		if _, err := NewHTTP(config.HTTPConfig{URL: u}); err == nil {
			t.Fatalf("NewHTTP(%q): expected error", u)
		}
	}
}
