package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// WSClient streams orderbook snapshots from the CLOB market WebSocket. Parsed
// books are delivered on a bounded channel; when the consumer falls behind,
// the newest snapshot is dropped and counted instead of blocking the read
// loop. A later snapshot for the same token supersedes a dropped one anyway.
type WSClient struct {
	wsURL  string
	logger *slog.Logger

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool

	// Asset IDs to restore on reconnect.
	assets []string

	books   chan domain.OrderBook
	dropped atomic.Int64

	done chan struct{}
}

// NewWSClient creates a WebSocket client for the given endpoint.
//
// wsURL is the CLOB market WebSocket endpoint, e.g.
// "wss://ws-subscriptions-clob.polymarket.com/ws/market".
// buffer is the book channel capacity; 256 when zero.
func NewWSClient(wsURL string, buffer int, logger *slog.Logger) *WSClient {
	if buffer <= 0 {
		buffer = 256
	}
	return &WSClient{
		wsURL:  wsURL,
		logger: logger.With(slog.String("component", "polymarket_ws")),
		books:  make(chan domain.OrderBook, buffer),
		done:   make(chan struct{}),
	}
}

// Books returns the channel of parsed book snapshots. The channel is never
// closed while the client is open; callers select against their own context.
func (w *WSClient) Books() <-chan domain.OrderBook {
	return w.books
}

// Dropped reports how many snapshots were discarded due to a slow consumer.
func (w *WSClient) Dropped() int64 {
	return w.dropped.Load()
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops. Safe to call again after a disconnect.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("polymarket/ws: client closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}

	w.conn = conn

	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop(conn)
	go w.pingLoop(conn)

	if len(w.assets) > 0 {
		if err := w.sendCommand(WSCommand{Type: "subscribe", Channel: "book", Assets: w.assets}); err != nil {
			return fmt.Errorf("polymarket/ws: restore subscription: %w", err)
		}
	}

	return nil
}

// Subscribe subscribes to book snapshots for the given asset IDs. The set is
// remembered and restored after a reconnect.
func (w *WSClient) Subscribe(assetIDs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("polymarket/ws: not connected")
	}

	cmd := WSCommand{Type: "subscribe", Channel: "book", Assets: assetIDs}
	if err := w.sendCommand(cmd); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}

	seen := make(map[string]struct{}, len(w.assets))
	for _, a := range w.assets {
		seen[a] = struct{}{}
	}
	for _, a := range assetIDs {
		if _, ok := seen[a]; !ok {
			w.assets = append(w.assets, a)
		}
	}

	return nil
}

// Close shuts down the connection and stops the loops.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// sendCommand sends a JSON command to the WebSocket. Caller must hold w.mu.
func (w *WSClient) sendCommand(cmd WSCommand) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads frames until the connection drops, then hands off to
// reconnect. Runs in its own goroutine per connection.
func (w *WSClient) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}
			w.logger.Warn("websocket read failed, reconnecting", slog.String("error", err.Error()))
			w.reconnect()
			return
		}

		w.handleMessage(message)
	}
}

// pingLoop keeps the connection alive with periodic pings.
func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw frame and pushes book snapshots onto the
// bounded channel. Frames arrive either as a single object or an array.
func (w *WSClient) handleMessage(raw []byte) {
	var messages []WSBookMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		var single WSBookMessage
		if err := json.Unmarshal(raw, &single); err != nil {
			return // drop unparseable frames
		}
		messages = append(messages, single)
	}

	for i := range messages {
		m := &messages[i]
		if m.EventType != "book" || m.AssetID == "" {
			continue
		}
		select {
		case w.books <- m.ToDomainBook():
		default:
			w.dropped.Add(1)
		}
	}
}

// reconnect re-establishes the connection with exponential backoff. Blocks
// until successful or the client is closed.
func (w *WSClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-w.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
