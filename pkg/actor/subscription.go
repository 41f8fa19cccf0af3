package actor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	reasonPeerClosed   = "peer_closed"
	reasonWriteFailed  = "write_failed"
	reasonSlowConsumer = "slow_consumer"
	reasonClosed       = "closed"
	reasonShutdown     = "shutdown"
)

// Conn is the part of *websocket.Conn a subscription needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// State is the lifecycle state of a subscription.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SubscriptionConfig tunes viewer connections.
type SubscriptionConfig struct {
	// SendQueueSize bounds the messages waiting for one viewer.
	SendQueueSize int `yaml:"send_queue_size"`
	// WriteTimeout bounds a single websocket write.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// PingInterval is how often the server pings an idle viewer.
	PingInterval time.Duration `yaml:"ping_interval"`
	// PongWait is how long a viewer may stay silent before it is dropped.
	PongWait time.Duration `yaml:"pong_wait"`
	// MaxMessageSize bounds messages read from viewers.
	MaxMessageSize int64 `yaml:"max_message_size"`
}

// DefaultSubscriptionConfig returns the defaults used for zero fields.
func DefaultSubscriptionConfig() SubscriptionConfig {
	return SubscriptionConfig{
		SendQueueSize:  16,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 4096,
	}
}

func (c SubscriptionConfig) withDefaults() SubscriptionConfig {
	d := DefaultSubscriptionConfig()
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = d.SendQueueSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}

// Subscription is one live viewer connection. Only the owning actor
// changes its membership; the subscription's goroutines report failures
// back to the actor.
type Subscription struct {
	id    string
	conn  Conn
	cfg   SubscriptionConfig
	send  chan []byte
	done  chan struct{}
	state atomic.Int32
	once  sync.Once
}

func newSubscription(conn Conn, cfg SubscriptionConfig) *Subscription {
	s := &Subscription{
		id:   uuid.NewString(),
		conn: conn,
		cfg:  cfg,
		send: make(chan []byte, cfg.SendQueueSize),
		done: make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	return State(s.state.Load())
}

// open queues the first message and moves the subscription to Open.
func (s *Subscription) open(first []byte) {
	s.send <- first
	s.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
}

// enqueue queues msg without blocking. It reports false when the
// subscription is not open or its queue is full.
func (s *Subscription) enqueue(msg []byte) bool {
	if s.State() != StateOpen {
		return false
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

func (s *Subscription) close() {
	s.once.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.done)
		s.conn.Close()
	})
}

// writeLoop is the only goroutine writing data frames to the connection.
func (s *Subscription) writeLoop(fail func(*Subscription, string)) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				fail(s, reasonWriteFailed)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				fail(s, reasonWriteFailed)
				return
			}
		}
	}
}

// readLoop discards viewer messages and detects peer close or silence.
func (s *Subscription) readLoop(fail func(*Subscription, string)) {
	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			fail(s, reasonPeerClosed)
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	}
}
