package controllers

import (
	"context"
	"net/http"
	"strings"

	"DirectChat/middleware"
	"DirectChat/pkg/config"
	"DirectChat/pkg/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     allowedOrigin,
}

// allowedOrigin accepts non-browser clients (no Origin) and the CORS allow list.
func allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range config.CORSOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// handshakeToken reads the bearer credential from ?token= or the
// Authorization header.
func handshakeToken(c *gin.Context) string {
	if t := strings.TrimSpace(c.Query("token")); t != "" {
		return t
	}
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

// Realtime authenticates the handshake, upgrades, and runs the connection
// until it closes.
//
// Client frames: join_conversation, leave_conversation, typing_start,
// typing_stop, ping. Server frames: connected, joined, left, new_message,
// message_edited, message_deleted, conversation_deleted,
// conversation_read, user_status, typing, pong, error.
func Realtime(hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := middleware.ParseToken(handshakeToken(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": "Authentication error"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("ws upgrade failed")
			return
		}

		client := realtime.NewClient(hub, conn)
		client.Authenticate(claims.UserID)
		if err := client.Run(context.WithoutCancel(c.Request.Context())); err != nil {
			log.Warn().Err(err).Uint("user_id", claims.UserID).Msg("ws register failed")
		}
	}
}
