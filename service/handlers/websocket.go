// Package handlers exposes the HTTP surface of the service: the
// WebSocket upgrade endpoint that feeds connections into the lifecycle
// controller, next to the health probes wired up in main.
package handlers

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pitabwire/util"

	"github.com/sokoapp/service-presence/config"
	"github.com/sokoapp/service-presence/service"
	"github.com/sokoapp/service-presence/service/business"
	"github.com/sokoapp/service-presence/service/protocol"
)

// WebsocketHandler upgrades HTTP requests to WebSocket sessions and hands
// them to the connection manager for their whole lifetime.
type WebsocketHandler struct {
	cfg      *config.PresenceConfig
	cm       *business.ConnectionManager
	upgrader websocket.Upgrader
}

// NewWebsocketHandler creates the WebSocket upgrade handler.
func NewWebsocketHandler(cfg *config.PresenceConfig, cm *business.ConnectionManager) *WebsocketHandler {
	return &WebsocketHandler{
		cfg: cfg,
		cm:  cm,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin checks belong to the authenticating proxy in front
			// of this service.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and blocks until the connection ends.
func (wh *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	wsConn, err := wh.upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.Log(ctx).WithError(err).Warn("websocket upgrade failed")
		return
	}

	wsConn.SetReadLimit(wh.cfg.WSReadLimitBytes)

	transport := newWSTransport(wsConn, time.Duration(wh.cfg.WSWriteTimeoutSec)*time.Second)

	pongTimeout := time.Duration(wh.cfg.WSPongTimeoutSec) * time.Second
	if pongTimeout > 0 {
		_ = wsConn.SetReadDeadline(time.Now().Add(pongTimeout))
		wsConn.SetPongHandler(func(string) error {
			return wsConn.SetReadDeadline(time.Now().Add(pongTimeout))
		})

		stopPing := make(chan struct{})
		defer close(stopPing)
		go transport.keepAlive(pongTimeout/2, stopPing)
	}

	err = wh.cm.HandleConnection(ctx, transport)
	if err != nil {
		if errors.Is(err, service.ErrTooManyConnections) || errors.Is(err, service.ErrShuttingDown) {
			_ = wsConn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
				time.Now().Add(time.Second),
			)
		}
		util.Log(ctx).WithError(err).Debug("connection refused")
		_ = wsConn.Close()
	}
}

// wsTransport adapts a gorilla websocket connection to the business
// Transport interface: one JSON envelope per data frame.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
}

func newWSTransport(conn *websocket.Conn, writeTimeout time.Duration) *wsTransport {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &wsTransport{conn: conn, writeTimeout: writeTimeout}
}

// ReadEnvelope blocks for the next data frame and decodes it. A frame
// that fails to decode returns protocol.ErrMalformedEnvelope so the
// caller can drop it and keep the connection alive.
func (t *wsTransport) ReadEnvelope() (*protocol.Envelope, error) {
	for {
		messageType, raw, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		return protocol.Parse(raw)
	}
}

// WriteEnvelope encodes the envelope onto a single text frame.
func (t *wsTransport) WriteEnvelope(env *protocol.Envelope) error {
	raw, err := env.Marshal()
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, raw)
}

// Close closes the underlying websocket connection, unblocking any
// pending read.
func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// keepAlive sends pings at the given interval until stopped or the
// connection dies.
func (t *wsTransport) keepAlive(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.writeMu.Lock()
			err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeTimeout))
			t.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}
