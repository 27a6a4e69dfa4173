package realtime

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"DirectChat/models"
	"DirectChat/pkg/metrics"
	"DirectChat/pkg/workerpool"
)

// Mirror receives a copy of every dispatched event, e.g. a message bus.
type Mirror interface {
	Publish(event string, payload []byte) error
}

// Dispatcher fans committed state changes out to rooms. It runs on a
// bounded worker pool so callers never wait on sockets; when the queue is
// full the event is dropped.
type Dispatcher struct {
	hub    *Hub
	pool   *workerpool.Pool
	mirror Mirror
}

// NewDispatcher takes ownership of pool. mirror may be nil.
func NewDispatcher(hub *Hub, pool *workerpool.Pool, mirror Mirror) *Dispatcher {
	return &Dispatcher{hub: hub, pool: pool, mirror: mirror}
}

type deletedMessage struct {
	ID             uint `json:"id"`
	ConversationID uint `json:"conversation_id"`
	SenderID       uint `json:"sender_id"`
}

type conversationRef struct {
	ConversationID uint `json:"conversation_id"`
	UserID         uint `json:"user_id"`
}

func messageRooms(m models.Message) []string {
	return []string{
		ConversationRoom(m.ConversationID),
		UserRoom(m.SenderID),
		UserRoom(m.RecipientID),
	}
}

func (d *Dispatcher) MessageCreated(m models.Message) {
	d.dispatch(EventNewMessage, m.ConversationID, m, messageRooms(m))
}

func (d *Dispatcher) MessageEdited(m models.Message) {
	d.dispatch(EventMessageEdited, m.ConversationID, m, messageRooms(m))
}

func (d *Dispatcher) MessageDeleted(m models.Message) {
	payload := deletedMessage{ID: m.ID, ConversationID: m.ConversationID, SenderID: m.SenderID}
	d.dispatch(EventMessageDeleted, m.ConversationID, payload, messageRooms(m))
}

// ConversationDeleted only reaches the user who hid the conversation.
func (d *Dispatcher) ConversationDeleted(conversationID, userID uint) {
	payload := conversationRef{ConversationID: conversationID, UserID: userID}
	d.dispatch(EventConversationDeleted, conversationID, payload, []string{UserRoom(userID)})
}

// ConversationRead syncs the reader's other devices.
func (d *Dispatcher) ConversationRead(conversationID, userID uint) {
	payload := conversationRef{ConversationID: conversationID, UserID: userID}
	d.dispatch(EventConversationRead, conversationID, payload, []string{UserRoom(userID)})
}

func (d *Dispatcher) dispatch(event string, conversationID uint, data any, rooms []string) {
	env, err := NewEnvelope(event, conversationID, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("marshal event")
		return
	}
	ok := d.pool.TrySubmit(func() {
		d.hub.EmitRooms(rooms, env, nil)
		metrics.EventsDispatched.WithLabelValues(event).Inc()
		d.publish(env)
	})
	if !ok {
		metrics.EventsDropped.WithLabelValues("queue_full").Inc()
		log.Warn().Str("event", event).Uint("conversation_id", conversationID).Msg("dispatch queue full, event dropped")
	}
}

func (d *Dispatcher) publish(env Envelope) {
	if d.mirror == nil {
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := d.mirror.Publish(env.Type, raw); err != nil {
		metrics.EventsDropped.WithLabelValues("mirror").Inc()
		log.Warn().Err(err).Str("event", env.Type).Msg("event mirror publish failed")
	}
}

// Close drains queued events.
func (d *Dispatcher) Close() {
	d.pool.Shutdown()
}
