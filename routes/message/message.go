package message

import (
	"DirectChat/controllers"
	"DirectChat/middleware"
	"DirectChat/pkg/services"

	"github.com/gin-gonic/gin"
)

// Register registers message routes (protected)
func Register(g *gin.RouterGroup, msgs *services.MessageService, limiter *middleware.Limiter) {
	g.POST("/messages", limiter.RateLimit(), controllers.SendMessage(msgs))
	g.GET("/messages/unread-count", controllers.UnreadTotal(msgs))
	g.PUT("/messages/:message_id", controllers.EditMessage(msgs))
	g.DELETE("/messages/:message_id", controllers.DeleteMessage(msgs))
}
