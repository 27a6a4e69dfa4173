package controllers

import (
	"net/http"

	"DirectChat/middleware"
	"DirectChat/models"
	"DirectChat/pkg/services"

	"github.com/gin-gonic/gin"
)

// SendMessage: POST /messages
func SendMessage(msgs *services.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			RecipientID uint   `json:"recipient_id"`
			Content     string `json:"content"`
			MessageType string `json:"message_type"`
			FileURL     string `json:"file_url"`
			FileName    string `json:"file_name"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}
		msg, err := msgs.Send(c.Request.Context(), services.SendInput{
			SenderID:    middleware.CurrentUserID(c),
			RecipientID: body.RecipientID,
			Content:     body.Content,
			MessageType: models.MessageType(body.MessageType),
			FileURL:     body.FileURL,
			FileName:    body.FileName,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": msg})
	}
}

// EditMessage: PUT /messages/:message_id {"content": ...}
func EditMessage(msgs *services.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "message_id")
		if !ok {
			return
		}
		var body struct {
			Content string `json:"content"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}
		msg, err := msgs.Edit(c.Request.Context(), id, middleware.CurrentUserID(c), body.Content)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msg})
	}
}

func DeleteMessage(msgs *services.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "message_id")
		if !ok {
			return
		}
		if err := msgs.Delete(c.Request.Context(), id, middleware.CurrentUserID(c)); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"msg": "Message deleted"})
	}
}

// UnreadTotal: GET /messages/unread-count
func UnreadTotal(msgs *services.MessageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := msgs.TotalUnread(c.Request.Context(), middleware.CurrentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"unread_count": n})
	}
}
