// Package web serves the latest sample over HTTP and streams every new
// sample to websocket clients.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ericogr/sensehat-weather/pkg/config"
	"github.com/ericogr/sensehat-weather/pkg/indicator"
	"github.com/ericogr/sensehat-weather/pkg/sensor"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards are served from other origins
	},
}

// Sample is the JSON document served by /api/weather and pushed on /ws.
// A value the sensor reported as NaN or infinite is null.
type Sample struct {
	Time        time.Time         `json:"time"`
	Temperature *float64          `json:"temperature"`
	Humidity    *float64          `json:"humidity"`
	Pressure    *float64          `json:"pressure"`
	Matrix      []indicator.Color `json:"matrix"`
}

// client serialises writes to one websocket connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

type WebOutput struct {
	addr   string
	mapper *indicator.Mapper

	mu      sync.RWMutex
	lastMsg []byte
	clients map[*client]struct{}
}

func NewWeb(cfg config.WebConfig, mapper *indicator.Mapper) *WebOutput {
	return &WebOutput{
		addr:    cfg.Addr,
		mapper:  mapper,
		clients: make(map[*client]struct{}),
	}
}

func (w *WebOutput) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/weather", w.handleWeather)
	mux.HandleFunc("/ws", w.handleWS)
	return mux
}

// Serve listens on the configured address until ctx is done.
func (w *WebOutput) Serve(ctx context.Context) error {
	srv := &http.Server{Addr: w.addr, Handler: w.Handler()}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web: listening on %s", w.addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return fmt.Errorf("web: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}

func (w *WebOutput) Publish(readings []sensor.Reading) error {
	var vals [3]float64
	for i, k := range sensor.Kinds {
		v, ok := sensor.Value(readings, k)
		if !ok {
			return fmt.Errorf("web: no %s reading", k)
		}
		vals[i] = v
	}
	f := w.mapper.Frame(vals[0], vals[1], vals[2])
	s := Sample{
		Temperature: finite(vals[0]),
		Humidity:    finite(vals[1]),
		Pressure:    finite(vals[2]),
		Matrix:      f[:],
	}
	if len(readings) > 0 {
		s.Time = readings[0].Timestamp
	}

	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("web: %w", err)
	}

	w.mu.Lock()
	w.lastMsg = b
	clients := make([]*client, 0, len(w.clients))
	for c := range w.clients {
		clients = append(clients, c)
	}
	w.mu.Unlock()

	for _, c := range clients {
		if err := c.write(b); err != nil {
			log.Printf("web: dropping client %s: %v", c.conn.RemoteAddr(), err)
			w.remove(c)
		}
	}
	return nil
}

func (w *WebOutput) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for c := range w.clients {
		_ = c.conn.Close()
		delete(w.clients, c)
	}
	return nil
}

func (w *WebOutput) handleWeather(rw http.ResponseWriter, r *http.Request) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.lastMsg == nil {
		http.Error(rw, "no data yet", http.StatusServiceUnavailable)
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	if _, err := rw.Write(w.lastMsg); err != nil {
		log.Printf("web: write error: %v", err)
	}
}

func (w *WebOutput) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	// Registration and the greeting snapshot happen under one lock while
	// the connection's write lock is held, so a concurrent Publish is
	// delivered after the greeting and never lost.
	c := &client{conn: conn}
	c.mu.Lock()
	w.mu.Lock()
	w.clients[c] = struct{}{}
	greeting := w.lastMsg
	w.mu.Unlock()
	if greeting != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = conn.WriteMessage(websocket.TextMessage, greeting)
	}
	c.mu.Unlock()
	if err != nil {
		w.remove(c)
		return
	}

	// drain until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("web: websocket read error: %v", err)
			}
			w.remove(c)
			return
		}
	}
}

func (w *WebOutput) remove(c *client) {
	w.mu.Lock()
	delete(w.clients, c)
	w.mu.Unlock()
	_ = c.conn.Close()
}

func finite(v float64) *float64 {
	if !sensor.Finite(v) {
		return nil
	}
	return &v
}
