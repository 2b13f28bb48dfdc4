package transmission

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/w3cp/cp-firmware/internal/bus"
	"github.com/w3cp/cp-firmware/internal/netutil"
)

// Subprotocol is the W3CP websocket subprotocol.
const Subprotocol = "w3cp.1"

// WSConnection is a W3CP websocket client. The backend verifies the charge
// point and then reports a connectionStatus; status is only sent after that.
type WSConnection struct {
	*verification

	url            string
	header         http.Header
	dialer         *websocket.Dialer
	writeTimeout   time.Duration
	reconnectDelay time.Duration
	logger         *logrus.Logger

	mu   sync.Mutex // guards conn and serialises writes
	conn *websocket.Conn
}

func NewWSConnection(url, cpID string, tlsCfg *tls.Config, writeTimeout, reconnectDelay time.Duration, b *bus.Bus, logger *logrus.Logger) *WSConnection {
	header := http.Header{}
	header.Set("X-Charge-Point-Id", cpID)
	return &WSConnection{
		verification: newVerification(b, logger),
		url:          url,
		header:       header,
		dialer: &websocket.Dialer{
			NetDialContext:   netutil.NewDialContext(logger),
			TLSClientConfig:  tlsCfg,
			HandshakeTimeout: 10 * time.Second,
			Subprotocols:     []string{Subprotocol},
		},
		writeTimeout:   writeTimeout,
		reconnectDelay: reconnectDelay,
		logger:         logger,
	}
}

// Run keeps the connection open until ctx is cancelled, redialling after
// reconnectDelay whenever it drops.
func (c *WSConnection) Run(ctx context.Context) error {
	for {
		if err := c.session(ctx); err != nil && ctx.Err() == nil {
			c.logger.WithError(err).Warn("websocket: connection ended")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

// session dials once and reads until the connection fails or ctx ends.
func (c *WSConnection) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.logger.WithField("url", c.url).Info("websocket: connected")

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		conn.Close()
	})
	defer func() {
		stop()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
		c.drop("websocket closed")
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.handle(data)
	}
}

// Send writes payload as a text frame.
func (c *WSConnection) Send(ctx context.Context, payload string) error {
	if !c.IsVerified() {
		return ErrNotVerified
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotVerified
	}
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}
