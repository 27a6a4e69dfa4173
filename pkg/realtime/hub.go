package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"DirectChat/pkg/metrics"
	"DirectChat/pkg/presence"
)

var (
	ErrNotAuthenticated = errors.New("realtime: connection not authenticated")
	ErrNotParticipant   = errors.New("realtime: not a conversation participant")
)

// Membership answers whether a user may join a conversation room.
type Membership interface {
	IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error)
}

// Options tunes a Hub. Zero values fall back to defaults.
type Options struct {
	ReadLimit       int64
	EventsPerSecond int
	// OnDisconnect runs after a connection is unregistered.
	OnDisconnect func(ctx context.Context, userID uint)
}

// Hub tracks live connections and the rooms they belong to. Room state is
// process-local; presence goes through the injected Registry.
type Hub struct {
	presence presence.Registry
	members  Membership

	readLimit       int64
	eventsPerSecond int
	onDisconnect    func(ctx context.Context, userID uint)

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
}

func NewHub(reg presence.Registry, members Membership, opts Options) *Hub {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 64 * 1024
	}
	if opts.EventsPerSecond <= 0 {
		opts.EventsPerSecond = 10
	}
	return &Hub{
		presence:        reg,
		members:         members,
		readLimit:       opts.ReadLimit,
		eventsPerSecond: opts.EventsPerSecond,
		onDisconnect:    opts.OnDisconnect,
		clients:         make(map[*Client]struct{}),
		rooms:           make(map[string]map[*Client]struct{}),
	}
}

// Register places an authenticated client in its personal room and records
// it in the presence registry. The first connection of a user announces
// them online to everyone.
func (h *Hub) Register(ctx context.Context, c *Client) error {
	if c.State() != StateAuthenticated {
		return ErrNotAuthenticated
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.joinNoLock(c, UserRoom(c.userID))
	h.mu.Unlock()
	c.setState(StateJoined)
	metrics.ActiveConnections.Inc()

	cameOnline, err := h.presence.Add(ctx, c.userID, c.id)
	if err != nil {
		log.Warn().Err(err).Uint("user_id", c.userID).Str("conn_id", c.id).Msg("presence add failed")
	}
	c.sendEnvelope(EventConnected, 0, map[string]any{"user_id": c.userID, "conn_id": c.id})

	if cameOnline {
		metrics.OnlineUsers.Set(float64(h.presence.OnlineCount(ctx)))
		h.broadcastStatus(c.userID, true)
	}
	log.Info().Uint("user_id", c.userID).Str("conn_id", c.id).Msg("ws connected")
	return nil
}

// Unregister removes c from every room and from presence. It is safe to
// call more than once.
func (h *Hub) Unregister(ctx context.Context, c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.leaveNoLock(c, room)
	}
	h.mu.Unlock()

	c.setState(StateClosed)
	c.closeSend()
	metrics.ActiveConnections.Dec()

	wentOffline, err := h.presence.Remove(ctx, c.userID, c.id)
	if err != nil {
		log.Warn().Err(err).Uint("user_id", c.userID).Str("conn_id", c.id).Msg("presence remove failed")
	}
	if wentOffline {
		metrics.OnlineUsers.Set(float64(h.presence.OnlineCount(ctx)))
		h.broadcastStatus(c.userID, false)
	}
	if h.onDisconnect != nil {
		h.onDisconnect(ctx, c.userID)
	}
	log.Info().Uint("user_id", c.userID).Str("conn_id", c.id).Msg("ws disconnected")
}

// JoinConversation adds c to a conversation room after checking participation.
func (h *Hub) JoinConversation(ctx context.Context, c *Client, conversationID uint) error {
	ok, err := h.members.IsParticipant(ctx, conversationID, c.userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotParticipant
	}
	h.Join(c, ConversationRoom(conversationID))
	return nil
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.joinNoLock(c, room)
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// the personal room lasts as long as the connection
	if room == UserRoom(c.userID) {
		return
	}
	h.leaveNoLock(c, room)
}

func (h *Hub) InRoom(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// RoomSize returns the number of connections in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) joinNoLock(c *Client, room string) {
	members := h.rooms[room]
	if members == nil {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveNoLock(c *Client, room string) {
	delete(c.rooms, room)
	if members := h.rooms[room]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Emit sends env to every connection in room except the given one.
func (h *Hub) Emit(room string, env Envelope, except *Client) int {
	return h.EmitRooms([]string{room}, env, except)
}

// EmitRooms sends env once to each connection found in any of rooms.
func (h *Hub) EmitRooms(rooms []string, env Envelope, except *Client) int {
	frame, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event", env.Type).Msg("marshal event")
		return 0
	}

	h.mu.RLock()
	targets := make(map[*Client]struct{})
	for _, room := range rooms {
		for c := range h.rooms[room] {
			if c != except {
				targets[c] = struct{}{}
			}
		}
	}
	h.mu.RUnlock()

	sent := 0
	for c := range targets {
		if c.trySend(frame) {
			sent++
		}
	}
	return sent
}

// EmitAll sends env to every connection.
func (h *Hub) EmitAll(env Envelope) int {
	frame, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event", env.Type).Msg("marshal event")
		return 0
	}
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.trySend(frame) {
			sent++
		}
	}
	return sent
}

func (h *Hub) broadcastStatus(userID uint, online bool) {
	env, err := NewEnvelope(EventUserStatus, 0, UserStatus{UserID: userID, IsOnline: online})
	if err != nil {
		return
	}
	h.EmitAll(env)
	metrics.EventsDispatched.WithLabelValues(EventUserStatus).Inc()
}

// IsOnline reports live-connection presence for userID.
func (h *Hub) IsOnline(ctx context.Context, userID uint) bool {
	return h.presence.IsOnline(ctx, userID)
}

// Close disconnects every client.
func (h *Hub) Close(ctx context.Context) {
	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.Unregister(ctx, c)
	}
}
