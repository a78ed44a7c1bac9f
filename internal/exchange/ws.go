package exchange

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/furkntrg41/opus-trade-bot/internal/logging"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// pingInterval matches Binance's own recommended WS keepalive cadence.
const pingInterval = 3 * time.Minute

// wsConn is a thin wrapper around a gorilla/websocket connection adding
// a keepalive pinger and a mutex-guarded write path, shared by every
// stream BinanceClient subscribes to.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
	url  string
	log  *logging.Logger

	stopPing chan struct{}
}

func newWSConn(url string, log *logging.Logger) *wsConn {
	return &wsConn{url: url, log: log}
}

func (w *wsConn) connect() error {
	conn, resp, err := websocket.DefaultDialer.Dial(w.url, http.Header{})
	if err != nil {
		if resp != nil {
			return fmt.Errorf("ws dial %s: status %s: %w", w.url, resp.Status, err)
		}
		return fmt.Errorf("ws dial %s: %w", w.url, err)
	}
	w.mu.Lock()
	w.conn = conn
	w.stopPing = make(chan struct{})
	w.mu.Unlock()

	go w.startPinger()
	w.log.Info("websocket connected", zap.String("url", w.url))
	return nil
}

func (w *wsConn) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopPing != nil {
		close(w.stopPing)
		w.stopPing = nil
	}
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("write json: %w", websocket.ErrBadHandshake)
	}
	return conn.WriteJSON(v)
}

func (w *wsConn) readMessage() (int, []byte, error) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return 0, nil, fmt.Errorf("read message: %w", websocket.ErrBadHandshake)
	}
	return conn.ReadMessage()
}

func (w *wsConn) isConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil
}

func (w *wsConn) startPinger() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	w.mu.Lock()
	stop := w.stopPing
	w.mu.Unlock()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.mu.Lock()
			conn := w.conn
			w.mu.Unlock()
			if conn == nil {
				return
			}
			if err := conn.WriteMessage(websocket.PongMessage, nil); err != nil {
				w.log.Warn("websocket ping failed", zap.Error(err))
				return
			}
		}
	}
}
