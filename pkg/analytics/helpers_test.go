package analytics

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/larsjoon/joonify/pkg/actor"
)

func newActorServer(t *testing.T, a *actor.Actor) string {
	t.Helper()
	server := httptest.NewServer(a.Handler())
	t.Cleanup(server.Close)
	return server.URL
}

// viewerConn is an in-memory subscriber connection that records frames.
type viewerConn struct {
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newViewerConn() *viewerConn {
	return &viewerConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *viewerConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("connection closed")
}

func (c *viewerConn) WriteMessage(_ int, data []byte) error {
	select {
	case c.frames <- data:
		return nil
	case <-c.closed:
		return errors.New("connection closed")
	}
}

func (c *viewerConn) WriteControl(int, []byte, time.Time) error { return nil }
func (c *viewerConn) SetReadLimit(int64)                          {}
func (c *viewerConn) SetReadDeadline(time.Time) error             { return nil }
func (c *viewerConn) SetWriteDeadline(time.Time) error            { return nil }
func (c *viewerConn) SetPongHandler(func(string) error)           {}

func (c *viewerConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *viewerConn) next(t *testing.T) string {
	t.Helper()
	select {
	case frame := <-c.frames:
		return string(frame)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return ""
	}
}

func subscribeViewer(t *testing.T, a *actor.Actor) *viewerConn {
	t.Helper()
	conn := newViewerConn()
	_, err := a.Subscribe(context.Background(), conn)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}
