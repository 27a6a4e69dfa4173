package controllers

import (
	"net/http"

	"DirectChat/middleware"
	"DirectChat/pkg/services"
	utils "DirectChat/pkg/utills"

	"github.com/gin-gonic/gin"
)

// ListConversations: GET /conversations?limit=&offset=&search=
func ListConversations(convs *services.ConversationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := middleware.CurrentUserID(c)
		list, err := convs.ListForUser(c.Request.Context(), uid, services.ListOptions{
			Limit:  utils.ClampLimit(c.Query("limit"), services.DefaultConversationLimit, services.MaxConversationLimit),
			Offset: utils.ParseOffset(c.Query("offset")),
			Search: c.Query("search"),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": list})
	}
}

// OpenConversation: POST /conversations {"user_id": n}. Reopens a hidden
// conversation for both sides.
func OpenConversation(convs *services.ConversationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			UserID uint `json:"user_id"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.UserID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "user_id is required"})
			return
		}
		uid := middleware.CurrentUserID(c)
		conv, created, err := convs.GetOrCreate(c.Request.Context(), uid, body.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		summary, err := convs.Summary(c.Request.Context(), conv, uid)
		if err != nil {
			respondError(c, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{"conversation": summary, "created": created})
	}
}

func GetConversation(convs *services.ConversationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "conversation_id")
		if !ok {
			return
		}
		uid := middleware.CurrentUserID(c)
		conv, err := convs.GetByID(c.Request.Context(), id, uid)
		if err != nil {
			respondConversationError(c, err)
			return
		}
		summary, err := convs.Summary(c.Request.Context(), conv, uid)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation": summary})
	}
}

// DeleteConversation hides the conversation for the caller only.
func DeleteConversation(convs *services.ConversationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "conversation_id")
		if !ok {
			return
		}
		if err := convs.SoftDelete(c.Request.Context(), id, middleware.CurrentUserID(c)); err != nil {
			respondConversationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"msg": "Conversation deleted"})
	}
}

// ListMessages: GET /conversations/:id/messages?limit=&offset=&before=RFC3339
func ListMessages(msgs *services.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "conversation_id")
		if !ok {
			return
		}
		opts := services.ListMessagesOptions{
			Limit:  utils.ClampLimit(c.Query("limit"), services.DefaultMessageLimit, services.MaxMessageLimit),
			Offset: utils.ParseOffset(c.Query("offset")),
		}
		if raw := c.Query("before"); raw != "" {
			before, err := utils.ParseTime(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"msg": "before must be an RFC3339 timestamp"})
				return
			}
			opts.Before = &before
		}
		list, err := msgs.List(c.Request.Context(), id, middleware.CurrentUserID(c), opts)
		if err != nil {
			respondConversationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": list})
	}
}

func MarkConversationRead(msgs *services.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "conversation_id")
		if !ok {
			return
		}
		n, err := msgs.MarkConversationRead(c.Request.Context(), id, middleware.CurrentUserID(c))
		if err != nil {
			respondConversationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": n})
	}
}

func ConversationUnreadCount(msgs *services.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "conversation_id")
		if !ok {
			return
		}
		n, err := msgs.UnreadCount(c.Request.Context(), id, middleware.CurrentUserID(c))
		if err != nil {
			respondConversationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation_id": id, "unread_count": n})
	}
}
