// Package gateway implements the real-time messaging transport. The wire
// protocol is JSON event frames ({"event": name, "data": payload}) over a
// websocket. Handlers registered with On run serially inside the read loop,
// so one event is fully processed before the next is delivered.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is one inbound gateway event.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type emitFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// WS is a websocket gateway connection. Dial establishes the transport, Run
// pumps inbound frames into registered handlers until the transport drops,
// and Emit writes outbound frames. A WS survives reconnects: Dial may be
// called again after Run returns.
type WS struct {
	URL          string
	Dialer       *websocket.Dialer
	WriteTimeout time.Duration

	mu   sync.Mutex // guards conn swaps and writes
	conn *websocket.Conn

	hmu      sync.RWMutex
	handlers map[string][]func(json.RawMessage)
}

// NewWS returns a gateway client for the given websocket URL.
func NewWS(url string) *WS {
	return &WS{
		URL:          url,
		Dialer:       &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		WriteTimeout: 10 * time.Second,
		handlers:     make(map[string][]func(json.RawMessage)),
	}
}

// On registers a handler for an event name. Handlers for the same event run
// in registration order.
func (g *WS) On(event string, fn func(json.RawMessage)) {
	g.hmu.Lock()
	defer g.hmu.Unlock()
	g.handlers[event] = append(g.handlers[event], fn)
}

// Dial establishes the websocket connection, replacing any previous one.
func (g *WS) Dial(ctx context.Context) error {
	conn, resp, err := g.Dialer.DialContext(ctx, g.URL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("gateway dial %s: %s: %w", g.URL, resp.Status, err)
		}
		return fmt.Errorf("gateway dial %s: %w", g.URL, err)
	}
	g.mu.Lock()
	if g.conn != nil {
		_ = g.conn.Close()
	}
	g.conn = conn
	g.mu.Unlock()
	return nil
}

// Emit writes an event frame with a bounded write deadline.
func (g *WS) Emit(event string, data any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return errors.New("gateway not connected")
	}
	if err := g.conn.SetWriteDeadline(time.Now().Add(g.WriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := g.conn.WriteJSON(emitFrame{Event: event, Data: data}); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Run reads frames and dispatches them to handlers until the transport drops
// or ctx is canceled. It always returns a non-nil error describing why the
// connection ended.
func (g *WS) Run(ctx context.Context) error {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		return errors.New("gateway not connected")
	}

	// Unblock the read on cancellation by closing the transport.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("gateway read: %w", err)
		}
		g.dispatch(f)
	}
}

func (g *WS) dispatch(f Frame) {
	g.hmu.RLock()
	fns := g.handlers[f.Event]
	g.hmu.RUnlock()
	for _, fn := range fns {
		fn(f.Data)
	}
}

// Close tears down the current connection, if any.
func (g *WS) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return nil
	}
	err := g.conn.Close()
	g.conn = nil
	return err
}
