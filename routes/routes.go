package routes

import (
	"DirectChat/controllers"
	"DirectChat/middleware"
	"DirectChat/pkg/realtime"
	"DirectChat/pkg/services"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	authRoutes "DirectChat/routes/auth"
	convRoutes "DirectChat/routes/conversation"
	messageRoutes "DirectChat/routes/message"
	profileRoutes "DirectChat/routes/profile"
	userRoutes "DirectChat/routes/users"
	websocketRoutes "DirectChat/routes/websocket"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	DB            *gorm.DB
	Directory     *services.Directory
	Conversations *services.ConversationService
	Messages      *services.MessageService
	Hub           *realtime.Hub
	Limiter       *middleware.Limiter
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "direct messaging backend running"})
	})
	r.GET("/health", controllers.Health(d.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	websocketRoutes.Register(r, d.Hub)
	authRoutes.RegisterPublic(r, d.DB, d.Directory)

	protected := r.Group("/")
	protected.Use(middleware.AuthMiddleware())
	authRoutes.RegisterProtected(protected)
	profileRoutes.Register(protected, d.DB, d.Directory)
	convRoutes.Register(protected, d.Conversations, d.Messages, d.Limiter)
	messageRoutes.Register(protected, d.Messages, d.Limiter)
	userRoutes.Register(protected, d.Directory)
}
