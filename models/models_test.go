package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderedPair(t *testing.T) {
	lo, hi := OrderedPair(9, 3)
	assert.Equal(t, uint(3), lo)
	assert.Equal(t, uint(9), hi)

	lo, hi = OrderedPair(3, 9)
	assert.Equal(t, uint(3), lo)
	assert.Equal(t, uint(9), hi)
}

func TestConversationParticipants(t *testing.T) {
	c := Conversation{UserLowID: 2, UserHighID: 5}

	assert.True(t, c.HasParticipant(2))
	assert.True(t, c.HasParticipant(5))
	assert.False(t, c.HasParticipant(7))
	assert.False(t, c.HasParticipant(0))
	assert.Equal(t, uint(5), c.Other(2))
	assert.Equal(t, uint(2), c.Other(5))
	assert.ElementsMatch(t, []uint{2, 5}, c.Participants())
}

func TestConversationDeletedBy(t *testing.T) {
	c := Conversation{UserLowID: 2, UserHighID: 5}
	assert.Empty(t, c.DeletedBy())

	c.HiddenForHigh = true
	assert.Equal(t, []uint{5}, c.DeletedBy())
	assert.True(t, c.IsHiddenFor(5))
	assert.False(t, c.IsHiddenFor(2))
	assert.False(t, c.IsHiddenFor(42))

	assert.Equal(t, "hidden_for_low", c.HideColumn(2))
	assert.Equal(t, "hidden_for_high", c.HideColumn(5))
	assert.Equal(t, "", c.HideColumn(42))
}

func TestMessageTypeValid(t *testing.T) {
	for _, mt := range []MessageType{MessageTypeText, MessageTypeFile, MessageTypeImage} {
		assert.True(t, mt.Valid(), mt)
	}
	assert.False(t, MessageType("video").Valid())
	assert.False(t, MessageType("").Valid())
}

func TestUserPasswordAndProfile(t *testing.T) {
	u := User{Username: "ana", Role: RoleUser}
	assert.NoError(t, u.SetPassword("secret123"))
	assert.True(t, u.CheckPassword("secret123"))
	assert.False(t, u.CheckPassword("nope"))

	assert.Equal(t, "ana", u.Public().Name)
	u.DisplayName = "Ana M."
	assert.Equal(t, "Ana M.", u.Public().Name)
}
