package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"DirectChat/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	sendBufferSize = 256
)

// Conn is the subset of *websocket.Conn a Client needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// State is a connection's lifecycle position.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Client is one live connection.
type Client struct {
	id      string
	userID  uint
	hub     *Hub
	conn    Conn
	limiter *rate.Limiter
	state   atomic.Int32

	sendMu sync.RWMutex
	send   chan []byte
	closed bool

	// rooms is guarded by hub.mu.
	rooms map[string]struct{}
}

// NewClient wraps conn in the Connecting state.
func NewClient(hub *Hub, conn Conn) *Client {
	perSecond := hub.eventsPerSecond
	return &Client{
		id:      uuid.NewString(),
		hub:     hub,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
		send:    make(chan []byte, sendBufferSize),
		rooms:   make(map[string]struct{}),
	}
}

func (c *Client) ID() string       { return c.id }
func (c *Client) UserID() uint     { return c.userID }
func (c *Client) State() State     { return State(c.state.Load()) }
func (c *Client) setState(s State) { c.state.Store(int32(s)) }

// Authenticate binds the verified user to the connection.
func (c *Client) Authenticate(userID uint) bool {
	if userID == 0 {
		return false
	}
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateAuthenticated)) {
		return false
	}
	c.userID = userID
	return true
}

// Run registers the client, then pumps until the connection closes.
func (c *Client) Run(ctx context.Context) error {
	if err := c.hub.Register(ctx, c); err != nil {
		_ = c.conn.Close()
		return err
	}
	go c.writePump()
	c.readPump(ctx)
	return nil
}

// trySend queues a frame without blocking. A full buffer drops the frame.
func (c *Client) trySend(frame []byte) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		metrics.EventsDropped.WithLabelValues("slow_consumer").Inc()
		log.Warn().Str("conn_id", c.id).Uint("user_id", c.userID).Msg("send buffer full, frame dropped")
		return false
	}
}

func (c *Client) sendEnvelope(typ string, conversationID uint, data any) {
	env, err := NewEnvelope(typ, conversationID, data)
	if err != nil {
		log.Error().Err(err).Str("event", typ).Msg("marshal frame")
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event", typ).Msg("marshal frame")
		return
	}
	c.trySend(raw)
}

func (c *Client) sendError(conversationID uint, msg string) {
	c.sendEnvelope(EventError, conversationID, errorPayload{Message: msg})
}

// closeSend stops further frames; the write pump then closes the socket.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(context.WithoutCancel(ctx), c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("conn_id", c.id).Msg("ws read error")
			}
			return
		}
		if !c.limiter.Allow() {
			metrics.RateLimitHits.WithLabelValues("ws").Inc()
			c.sendError(0, "rate limit exceeded")
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.sendError(0, "malformed frame")
			continue
		}
		c.handle(ctx, env)
	}
}

func (c *Client) handle(ctx context.Context, env Envelope) {
	switch env.Type {
	case FrameJoinConversation:
		if env.ConversationID == 0 {
			c.sendError(0, "conversation_id is required")
			return
		}
		if err := c.hub.JoinConversation(ctx, c, env.ConversationID); err != nil {
			c.sendError(env.ConversationID, "conversation not found")
			return
		}
		c.sendEnvelope(EventJoined, env.ConversationID, nil)

	case FrameLeaveConversation:
		c.hub.Leave(c, ConversationRoom(env.ConversationID))
		c.sendEnvelope(EventLeft, env.ConversationID, nil)

	case FrameTypingStart, FrameTypingStop:
		room := ConversationRoom(env.ConversationID)
		if !c.hub.InRoom(c, room) {
			c.sendError(env.ConversationID, "join the conversation first")
			return
		}
		typing := Typing{UserID: c.userID, IsTyping: env.Type == FrameTypingStart}
		out, err := NewEnvelope(EventTyping, env.ConversationID, typing)
		if err != nil {
			return
		}
		c.hub.Emit(room, out, c)

	case FramePing:
		c.sendEnvelope(EventPong, 0, nil)

	default:
		c.sendError(env.ConversationID, "unknown frame type")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("ws write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
