package auth

import (
	"DirectChat/controllers"
	"DirectChat/pkg/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterPublic registers public auth routes: /register, /login
func RegisterPublic(r *gin.Engine, db *gorm.DB, dir *services.Directory) {
	r.POST("/register", controllers.Register(db))
	r.POST("/login", controllers.Login(db, dir))
}

// RegisterProtected registers protected auth routes (e.g. logout)
func RegisterProtected(g *gin.RouterGroup) {
	g.POST("/logout", controllers.Logout())
}
