package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"DirectChat/models"
	"DirectChat/pkg/apperr"
	"DirectChat/pkg/metrics"
	utils "DirectChat/pkg/utills"
)

const (
	MaxContentLength    = 5000
	DefaultMessageLimit = 50
	MaxMessageLimit     = 100
)

var (
	ErrInvalidRecipient  = apperr.Invalid("cannot send a message to yourself")
	ErrRecipientRequired = apperr.Invalid("recipient_id is required")
	ErrRecipientNotFound = apperr.NotFound("recipient not found")
	ErrContentRequired   = apperr.Invalid("content is required")
	ErrContentTooLong    = apperr.Invalid("content must be at most 5000 characters")
	ErrInvalidType       = apperr.Invalid("message_type must be one of text, file, image")
	ErrFileURLRequired   = apperr.Invalid("file_url is required for file and image messages")
	ErrMessageNotFound   = apperr.NotFound("message not found")
	ErrNotSender         = apperr.Unauthorized("only the sender can change this message")
)

// MessageService persists messages and their read state. Every write
// commits before the notifier hears about it.
type MessageService struct {
	db            *gorm.DB
	conversations *ConversationService
	notifier      Notifier
	now           func() time.Time
}

func NewMessageService(db *gorm.DB, conversations *ConversationService, notifier Notifier) *MessageService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &MessageService{
		db:            db,
		conversations: conversations,
		notifier:      notifier,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type SendInput struct {
	SenderID    uint
	RecipientID uint
	Content     string
	MessageType models.MessageType
	FileURL     string
	FileName    string
}

func (in *SendInput) normalize() error {
	if in.RecipientID == 0 {
		return ErrRecipientRequired
	}
	if in.SenderID == in.RecipientID {
		return ErrInvalidRecipient
	}
	if in.MessageType == "" {
		in.MessageType = models.MessageTypeText
	}
	if !in.MessageType.Valid() {
		return ErrInvalidType
	}
	in.FileURL = strings.TrimSpace(in.FileURL)
	in.FileName = strings.TrimSpace(in.FileName)
	if in.MessageType != models.MessageTypeText && in.FileURL == "" {
		return ErrFileURLRequired
	}
	content, err := normalizeContent(in.Content)
	if err != nil {
		return err
	}
	in.Content = content
	return nil
}

func normalizeContent(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrContentRequired
	}
	if utf8.RuneCountInString(s) > MaxContentLength {
		return "", ErrContentTooLong
	}
	return s, nil
}

// Send stores a message from SenderID to RecipientID, creating their
// conversation on first contact. A conversation hidden by either side
// stays hidden; only an explicit GetOrCreate restores it.
func (s *MessageService) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	ok, err := s.conversations.directory.Exists(ctx, in.RecipientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRecipientNotFound
	}

	var (
		msg     models.Message
		created bool
	)
	err = s.conversations.withPair(ctx, in.SenderID, in.RecipientID, func(tx *gorm.DB, lo, hi uint) error {
		conv, isNew, err := s.conversations.resolve(tx, lo, hi, false)
		if err != nil {
			return err
		}
		created = isNew

		now := s.now()
		msg = models.Message{
			ConversationID: conv.ID,
			SenderID:       in.SenderID,
			RecipientID:    in.RecipientID,
			Content:        in.Content,
			MessageType:    in.MessageType,
			FileURL:        in.FileURL,
			FileName:       in.FileName,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&conv).UpdateColumns(map[string]any{
			"last_message_id": msg.ID,
			"updated_at":      now,
		}).Error
	})
	if err != nil {
		return nil, apperr.Internal("failed to send message", err)
	}

	if created {
		metrics.ConversationsCreated.Inc()
	}
	metrics.MessagesSent.WithLabelValues(string(msg.MessageType)).Inc()
	log.Debug().Uint("conversation_id", msg.ConversationID).Uint("message_id", msg.ID).Uint("user_id", msg.SenderID).Msg("message sent")
	s.notifier.MessageCreated(msg)
	return &msg, nil
}

type ListMessagesOptions struct {
	Limit  int
	Offset int
	// Before restricts results to messages created strictly earlier.
	Before *time.Time
}

// List returns one page of history oldest to newest. Pages are counted
// back from the newest message, so offset 0 is the latest page.
func (s *MessageService) List(ctx context.Context, conversationID, requesterID uint, opts ListMessagesOptions) ([]models.Message, error) {
	if _, err := s.conversations.GetByID(ctx, conversationID, requesterID); err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}

	q := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if opts.Before != nil {
		q = q.Where("created_at < ?", opts.Before.UTC())
	}
	msgs := make([]models.Message, 0, limit)
	err := q.Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(max(opts.Offset, 0)).
		Find(&msgs).Error
	if err != nil {
		return nil, apperr.Internal("failed to list messages", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// authorize loads a message and checks requesterID may change it. A
// requester outside the conversation cannot tell the message exists.
func (s *MessageService) authorize(ctx context.Context, messageID, requesterID uint) (*models.Message, error) {
	var msg models.Message
	if err := s.db.WithContext(ctx).Take(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, apperr.Internal("failed to load message", err)
	}
	if msg.SenderID == requesterID {
		return &msg, nil
	}
	if msg.RecipientID == requesterID {
		return nil, ErrNotSender
	}
	return nil, ErrMessageNotFound
}

// Edit replaces the content of a message the requester sent.
func (s *MessageService) Edit(ctx context.Context, messageID, requesterID uint, content string) (*models.Message, error) {
	content, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}
	msg, err := s.authorize(ctx, messageID, requesterID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.db.WithContext(context.WithoutCancel(ctx)).Model(msg).UpdateColumns(map[string]any{
		"content":     content,
		"search_text": utils.Fold(content),
		"updated_at":  now,
	}).Error
	if err != nil {
		return nil, apperr.Internal("failed to edit message", err)
	}
	msg.Content, msg.UpdatedAt = content, now
	s.notifier.MessageEdited(*msg)
	return msg, nil
}

// Delete removes a message the requester sent and repoints the
// conversation's last message if needed.
func (s *MessageService) Delete(ctx context.Context, messageID, requesterID uint) error {
	msg, err := s.authorize(ctx, messageID, requesterID)
	if err != nil {
		return err
	}
	return s.remove(ctx, msg)
}

// remove deletes msg under the pair lock Send holds, with the conversation
// row locked, so a concurrent send cannot be overwritten by a stale
// last message.
func (s *MessageService) remove(ctx context.Context, msg *models.Message) error {
	lo, hi := models.OrderedPair(msg.SenderID, msg.RecipientID)
	unlock := s.conversations.locks.Lock(lo, hi)
	defer unlock()

	err := s.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&conv, msg.ConversationID).Error
		if err != nil {
			return err
		}
		res := tx.Delete(&models.Message{}, msg.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrMessageNotFound
		}
		if conv.LastMessageID == nil || *conv.LastMessageID != msg.ID {
			return nil
		}

		var latest models.Message
		err = tx.Where("conversation_id = ?", conv.ID).
			Order("created_at DESC").Order("id DESC").
			Take(&latest).Error
		switch {
		case err == nil:
			return tx.Model(&conv).UpdateColumn("last_message_id", latest.ID).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Model(&conv).UpdateColumn("last_message_id", nil).Error
		default:
			return err
		}
	})
	if errors.Is(err, ErrMessageNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return apperr.Internal("failed to delete message", err)
	}
	s.notifier.MessageDeleted(*msg)
	return nil
}

// MarkConversationRead flags every unread message addressed to userID in
// the conversation as read and returns how many changed.
func (s *MessageService) MarkConversationRead(ctx context.Context, conversationID, userID uint) (int64, error) {
	if _, err := s.conversations.GetByID(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	res := s.db.WithContext(context.WithoutCancel(ctx)).Model(&models.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND is_read = ?", conversationID, userID, false).
		UpdateColumn("is_read", true)
	if res.Error != nil {
		return 0, apperr.Internal("failed to mark conversation read", res.Error)
	}
	if res.RowsAffected > 0 {
		s.notifier.ConversationRead(conversationID, userID)
	}
	return res.RowsAffected, nil
}

// UnreadCount counts unread messages addressed to userID in the conversation.
func (s *MessageService) UnreadCount(ctx context.Context, conversationID, userID uint) (int64, error) {
	if _, err := s.conversations.GetByID(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND is_read = ?", conversationID, userID, false).
		Count(&n).Error
	if err != nil {
		return 0, apperr.Internal("failed to count unread messages", err)
	}
	return n, nil
}

// TotalUnread counts unread messages addressed to userID in conversations
// the user has not hidden.
func (s *MessageService) TotalUnread(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("messages.recipient_id = ? AND messages.is_read = ?", userID, false).
		Where("NOT ((conversations.user_low_id = ? AND conversations.hidden_for_low = ?) OR (conversations.user_high_id = ? AND conversations.hidden_for_high = ?))",
			userID, true, userID, true).
		Count(&n).Error
	if err != nil {
		return 0, apperr.Internal("failed to count unread messages", err)
	}
	return n, nil
}
