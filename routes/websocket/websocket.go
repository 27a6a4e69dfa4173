package websocket

import (
	"DirectChat/controllers"
	"DirectChat/pkg/realtime"

	"github.com/gin-gonic/gin"
)

// Register mounts the live connection endpoint. Auth happens in the
// handshake, so it sits outside the protected group.
func Register(r *gin.Engine, hub *realtime.Hub) {
	r.GET("/ws", controllers.Realtime(hub))
}
