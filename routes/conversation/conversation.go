package conversation

import (
	"DirectChat/controllers"
	"DirectChat/middleware"
	"DirectChat/pkg/services"

	"github.com/gin-gonic/gin"
)

// Register registers conversation routes (protected)
func Register(g *gin.RouterGroup, convs *services.ConversationService, msgs *services.MessageService, limiter *middleware.Limiter) {
	g.GET("/conversations", controllers.ListConversations(convs))
	// get-or-create is rate limited like sends
	g.POST("/conversations", limiter.RateLimit(), controllers.OpenConversation(convs))
	g.GET("/conversations/:conversation_id", controllers.GetConversation(convs))
	g.DELETE("/conversations/:conversation_id", controllers.DeleteConversation(convs))
	g.GET("/conversations/:conversation_id/messages", controllers.ListMessages(msgs))
	g.POST("/conversations/:conversation_id/read", controllers.MarkConversationRead(msgs))
	g.GET("/conversations/:conversation_id/unread-count", controllers.ConversationUnreadCount(msgs))
}
