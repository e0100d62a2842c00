package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ChartPulse/internal/domain/models"
	drepo "ChartPulse/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Stream implements a TickStream over the bridge's /ws/ticks endpoint.
type Stream struct {
	websocketURL   string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	symbols   []string
	connected bool
}

// NewStream creates a bridge tick stream client.
func NewStream(websocketURL string, reconnectDelay, pingInterval time.Duration) drepo.TickStream {
	return &Stream{
		websocketURL:   websocketURL,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("bridge stream connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	return nil
}

// Subscribe replaces the active symbol set on the bridge side.
func (s *Stream) Subscribe(ctx context.Context, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.connected {
		return fmt.Errorf("bridge stream not connected")
	}
	normalized := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if n := drepo.NormalizeSymbol(sym); n != "" {
			normalized = append(normalized, n)
		}
	}
	s.symbols = normalized
	msg := map[string]interface{}{"type": "set_subscriptions", "symbols": normalized}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

type tickFrame struct {
	Type    string  `json:"type"`
	Symbol  string  `json:"symbol"`
	TimeMsc int64   `json:"time_msc"`
	Bid     float64 `json:"bid"`
	Ask     float64 `json:"ask"`
	Last    float64 `json:"last"`
	Volume  float64 `json:"volume"`
}

// Read streams ticks and errors until ctx is done or the connection drops.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				conn := s.conn
				s.mu.Unlock()
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				s.mu.Lock()
				conn := s.conn
				s.mu.Unlock()
				if conn == nil {
					errs <- fmt.Errorf("bridge stream conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("bridge stream read: %w", err)
					return
				}
				var f tickFrame
				if err := json.Unmarshal(b, &f); err != nil {
					// ignore non-tick frames
					continue
				}
				if f.Type != "tick" || f.Symbol == "" {
					continue
				}
				tick := &models.Tick{
					Symbol:  f.Symbol,
					TimeMsc: f.TimeMsc,
					Bid:     f.Bid,
					Ask:     f.Ask,
					Last:    f.Last,
					Volume:  f.Volume,
				}
				select {
				case ticks <- tick:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return ticks, errs
}

// Reconnect closes, waits, reconnects and resubscribes the last symbol set.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	time.Sleep(s.reconnectDelay)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	symbols := append([]string(nil), s.symbols...)
	s.mu.Unlock()
	if len(symbols) == 0 {
		return nil
	}
	return s.Subscribe(ctx, symbols)
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}
