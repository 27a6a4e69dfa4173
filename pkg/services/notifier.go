package services

import (
	"context"

	"DirectChat/models"
)

// Notifier receives state changes after they commit. Implementations must
// not block; live delivery is best-effort.
type Notifier interface {
	MessageCreated(m models.Message)
	MessageEdited(m models.Message)
	MessageDeleted(m models.Message)
	ConversationDeleted(conversationID, userID uint)
	ConversationRead(conversationID, userID uint)
}

type NopNotifier struct{}

func (NopNotifier) MessageCreated(models.Message)  {}
func (NopNotifier) MessageEdited(models.Message)   {}
func (NopNotifier) MessageDeleted(models.Message)  {}
func (NopNotifier) ConversationDeleted(uint, uint) {}
func (NopNotifier) ConversationRead(uint, uint)    {}

// OnlineChecker reports live-connection presence.
type OnlineChecker interface {
	IsOnline(ctx context.Context, userID uint) bool
}

type nobodyOnline struct{}

func (nobodyOnline) IsOnline(context.Context, uint) bool { return false }
