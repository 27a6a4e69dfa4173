package profile

import (
	"DirectChat/controllers"
	"DirectChat/pkg/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Register registers protected profile routes on supplied router group
// expects the group to already have AuthMiddleware applied
func Register(g *gin.RouterGroup, db *gorm.DB, dir *services.Directory) {
	g.GET("/profile", controllers.Profile(db, dir))
	g.PUT("/profile", controllers.Profile(db, dir))
}
