package users

import (
	"DirectChat/controllers"
	"DirectChat/pkg/services"

	"github.com/gin-gonic/gin"
)

// Register registers the recipient directory (protected)
func Register(g *gin.RouterGroup, dir *services.Directory) {
	g.GET("/users/search", controllers.SearchUsers(dir))
	g.GET("/users/:user_id", controllers.GetUser(dir))
}
