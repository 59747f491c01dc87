package core

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn is one WebSocket connection carrying binary frames.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Close() error
}

// Dialer opens connections to the endpoint returned by getWebsocketInfo.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type wsDialer struct{}

// NewDialer returns the gobwas/ws backed dialer used in production.
func NewDialer() Dialer { return wsDialer{} }

func (wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn      net.Conn
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	return wsutil.ReadServerBinary(c.conn)
}

func (c *wsConn) WriteFrame(data []byte) error {
	return wsutil.WriteClientBinary(c.conn, data)
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
