package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"DirectChat/models"
	"DirectChat/pkg/apperr"
	"DirectChat/pkg/metrics"
	utils "DirectChat/pkg/utills"
)

var (
	ErrInvalidParticipants  = apperr.Invalid("cannot start a conversation with yourself")
	ErrConversationNotFound = apperr.NotFound("conversation not found")
	ErrNotParticipant       = apperr.Unauthorized("not a participant of this conversation")
)

const (
	DefaultConversationLimit = 20
	MaxConversationLimit     = 100
)

// ConversationService manages two-party conversations: lookup or creation
// of the unique conversation per pair, per-user hiding, and listing.
type ConversationService struct {
	db        *gorm.DB
	directory *Directory
	online    OnlineChecker
	notifier  Notifier
	locks     *pairLocks
	now       func() time.Time
}

func NewConversationService(db *gorm.DB, directory *Directory, online OnlineChecker, notifier Notifier) *ConversationService {
	if online == nil {
		online = nobodyOnline{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ConversationService{
		db:        db,
		directory: directory,
		online:    online,
		notifier:  notifier,
		locks:     newPairLocks(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ConversationSummary is a conversation as seen by one participant.
type ConversationSummary struct {
	ID           uint                 `json:"id"`
	Participants []uint               `json:"participants"`
	OtherUser    models.PublicProfile `json:"other_user"`
	LastMessage  *models.Message      `json:"last_message"`
	UnreadCount  int64                `json:"unread_count"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// GetOrCreate returns the conversation between userA and userB, creating it
// on first contact. An existing conversation hidden by either side is
// restored for both.
func (s *ConversationService) GetOrCreate(ctx context.Context, userA, userB uint) (*models.Conversation, bool, error) {
	if userA == 0 || userB == 0 || userA == userB {
		return nil, false, ErrInvalidParticipants
	}
	ok, err := s.directory.Exists(ctx, userA, userB)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, ErrUserNotFound
	}

	var (
		conv    models.Conversation
		created bool
	)
	err = s.withPair(ctx, userA, userB, func(tx *gorm.DB, lo, hi uint) error {
		var err error
		conv, created, err = s.resolve(tx, lo, hi, true)
		return err
	})
	if err != nil {
		return nil, false, apperr.Internal("failed to open conversation", err)
	}
	if created {
		metrics.ConversationsCreated.Inc()
		log.Info().Uint("conversation_id", conv.ID).Uint("user_id", userA).Uint("other_id", userB).Msg("conversation created")
	}
	return &conv, created, nil
}

// withPair runs fn in a transaction while holding the pair lock. A
// duplicate-key error means another process created the pair first; the
// retry then finds its row.
func (s *ConversationService) withPair(ctx context.Context, a, b uint, fn func(tx *gorm.DB, lo, hi uint) error) error {
	lo, hi := models.OrderedPair(a, b)
	unlock := s.locks.Lock(lo, hi)
	defer unlock()

	db := s.db.WithContext(context.WithoutCancel(ctx))
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = db.Transaction(func(tx *gorm.DB) error { return fn(tx, lo, hi) })
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		log.Debug().Uint("user_low_id", lo).Uint("user_high_id", hi).Msg("conversation pair race, retrying")
	}
	return err
}

// resolve finds or inserts the (lo, hi) conversation inside tx. With
// restore set, both hide flags are cleared.
func (s *ConversationService) resolve(tx *gorm.DB, lo, hi uint, restore bool) (models.Conversation, bool, error) {
	var conv models.Conversation
	err := tx.Where("user_low_id = ? AND user_high_id = ?", lo, hi).Take(&conv).Error
	if err == nil {
		if restore && (conv.HiddenForLow || conv.HiddenForHigh) {
			now := s.now()
			err = tx.Model(&conv).UpdateColumns(map[string]any{
				"hidden_for_low":  false,
				"hidden_for_high": false,
				"updated_at":      now,
			}).Error
			if err != nil {
				return conv, false, err
			}
			conv.HiddenForLow, conv.HiddenForHigh, conv.UpdatedAt = false, false, now
		}
		return conv, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return conv, false, err
	}

	now := s.now()
	conv = models.Conversation{UserLowID: lo, UserHighID: hi, CreatedAt: now, UpdatedAt: now}
	if err := tx.Create(&conv).Error; err != nil {
		return conv, false, err
	}
	return conv, true, nil
}

// GetByID returns the conversation if requesterID takes part in it.
// Absent and foreign conversations look the same.
func (s *ConversationService) GetByID(ctx context.Context, conversationID, requesterID uint) (*models.Conversation, error) {
	conv, err := s.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(requesterID) {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

func (s *ConversationService) load(ctx context.Context, conversationID uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.WithContext(ctx).Take(&conv, conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, apperr.Internal("failed to load conversation", err)
	}
	return &conv, nil
}

// IsParticipant lets the realtime hub gate conversation rooms.
func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error) {
	_, err := s.GetByID(ctx, conversationID, userID)
	if err == nil {
		return true, nil
	}
	if apperr.KindOf(err) == apperr.KindNotFound {
		return false, nil
	}
	return false, err
}

// SoftDelete hides the conversation for requesterID only. Repeating it is a no-op.
func (s *ConversationService) SoftDelete(ctx context.Context, conversationID, requesterID uint) error {
	conv, err := s.load(ctx, conversationID)
	if err != nil {
		return err
	}
	column := conv.HideColumn(requesterID)
	if column == "" {
		return ErrNotParticipant
	}
	if !conv.IsHiddenFor(requesterID) {
		err = s.db.WithContext(context.WithoutCancel(ctx)).Model(conv).UpdateColumn(column, true).Error
		if err != nil {
			return apperr.Internal("failed to delete conversation", err)
		}
	}
	s.notifier.ConversationDeleted(conv.ID, requesterID)
	return nil
}

type ListOptions struct {
	Limit  int
	Offset int
	Search string
}

// ListForUser returns the conversations visible to userID, most recently
// active first. Search matches the last message's content.
func (s *ConversationService) ListForUser(ctx context.Context, userID uint, opts ListOptions) ([]ConversationSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultConversationLimit
	}
	if limit > MaxConversationLimit {
		limit = MaxConversationLimit
	}
	offset := max(opts.Offset, 0)

	q := s.db.WithContext(ctx).Model(&models.Conversation{}).Select("conversations.*").
		Where("(conversations.user_low_id = ? AND conversations.hidden_for_low = ?) OR (conversations.user_high_id = ? AND conversations.hidden_for_high = ?)",
			userID, false, userID, false)
	if search := strings.TrimSpace(opts.Search); search != "" {
		q = q.Joins("JOIN messages ON messages.id = conversations.last_message_id").
			Where("messages.search_text LIKE ? ESCAPE '"+utils.LikeEscapeChar+"'", utils.ContainsPattern(search))
	}

	var convs []models.Conversation
	err := q.Order("conversations.updated_at DESC").Order("conversations.id DESC").
		Limit(limit).Offset(offset).
		Find(&convs).Error
	if err != nil {
		return nil, apperr.Internal("failed to list conversations", err)
	}
	return s.summarize(ctx, userID, convs)
}

// Summary enriches a single conversation for userID.
func (s *ConversationService) Summary(ctx context.Context, conv *models.Conversation, userID uint) (ConversationSummary, error) {
	out, err := s.summarize(ctx, userID, []models.Conversation{*conv})
	if err != nil {
		return ConversationSummary{}, err
	}
	return out[0], nil
}

func (s *ConversationService) summarize(ctx context.Context, userID uint, convs []models.Conversation) ([]ConversationSummary, error) {
	out := make([]ConversationSummary, 0, len(convs))
	if len(convs) == 0 {
		return out, nil
	}

	convIDs := make([]uint, 0, len(convs))
	otherIDs := make([]uint, 0, len(convs))
	var lastIDs []uint
	for i := range convs {
		convIDs = append(convIDs, convs[i].ID)
		otherIDs = append(otherIDs, convs[i].Other(userID))
		if convs[i].LastMessageID != nil {
			lastIDs = append(lastIDs, *convs[i].LastMessageID)
		}
	}

	users, err := s.directory.Users(ctx, otherIDs)
	if err != nil {
		return nil, err
	}

	last := make(map[uint]models.Message, len(lastIDs))
	if len(lastIDs) > 0 {
		var msgs []models.Message
		if err := s.db.WithContext(ctx).Where("id IN ?", lastIDs).Find(&msgs).Error; err != nil {
			return nil, apperr.Internal("failed to load last messages", err)
		}
		for _, m := range msgs {
			last[m.ID] = m
		}
	}

	var counts []struct {
		ConversationID uint
		Unread         int64
	}
	err = s.db.WithContext(ctx).Model(&models.Message{}).
		Select("conversation_id, COUNT(*) AS unread").
		Where("recipient_id = ? AND is_read = ? AND conversation_id IN ?", userID, false, convIDs).
		Group("conversation_id").
		Scan(&counts).Error
	if err != nil {
		return nil, apperr.Internal("failed to count unread messages", err)
	}
	unread := make(map[uint]int64, len(counts))
	for _, c := range counts {
		unread[c.ConversationID] = c.Unread
	}

	for i := range convs {
		c := &convs[i]
		otherID := c.Other(userID)
		other := models.PublicProfile{ID: otherID}
		if u, ok := users[otherID]; ok {
			other = u.Public()
		}
		other.IsOnline = s.online.IsOnline(ctx, otherID)

		sum := ConversationSummary{
			ID:           c.ID,
			Participants: c.Participants(),
			OtherUser:    other,
			UnreadCount:  unread[c.ID],
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		}
		if c.LastMessageID != nil {
			if m, ok := last[*c.LastMessageID]; ok {
				sum.LastMessage = &m
			}
		}
		out = append(out, sum)
	}
	return out, nil
}
