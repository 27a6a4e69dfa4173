package models

import (
	"time"
)

// Conversation is a two-party thread. The participant pair is stored in
// canonical order (low < high) so a unique index covers the unordered pair.
// The per-side hide flags are the conversation's deletedBy set.
// LastMessageID is a display cache only and carries no foreign key.
type Conversation struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserLowID     uint      `gorm:"not null;uniqueIndex:idx_conversation_pair,priority:1" json:"-"`
	UserHighID    uint      `gorm:"not null;uniqueIndex:idx_conversation_pair,priority:2;index" json:"-"`
	HiddenForLow  bool      `gorm:"not null;default:false" json:"-"`
	HiddenForHigh bool      `gorm:"not null;default:false" json:"-"`
	LastMessageID *uint     `json:"last_message_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `gorm:"index" json:"updated_at"`
}

// OrderedPair returns the canonical (low, high) ordering of two user ids.
func OrderedPair(a, b uint) (uint, uint) {
	if a < b {
		return a, b
	}
	return b, a
}

func (c *Conversation) Participants() []uint {
	return []uint{c.UserLowID, c.UserHighID}
}

func (c *Conversation) HasParticipant(userID uint) bool {
	return userID != 0 && (userID == c.UserLowID || userID == c.UserHighID)
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID uint) uint {
	if userID == c.UserLowID {
		return c.UserHighID
	}
	return c.UserLowID
}

func (c *Conversation) IsHiddenFor(userID uint) bool {
	switch userID {
	case c.UserLowID:
		return c.HiddenForLow
	case c.UserHighID:
		return c.HiddenForHigh
	}
	return false
}

// DeletedBy lists the participants who hid the conversation.
func (c *Conversation) DeletedBy() []uint {
	out := make([]uint, 0, 2)
	if c.HiddenForLow {
		out = append(out, c.UserLowID)
	}
	if c.HiddenForHigh {
		out = append(out, c.UserHighID)
	}
	return out
}

// HideColumn names the flag column for userID, or "" for non-participants.
func (c *Conversation) HideColumn(userID uint) string {
	switch userID {
	case c.UserLowID:
		return "hidden_for_low"
	case c.UserHighID:
		return "hidden_for_high"
	}
	return ""
}
