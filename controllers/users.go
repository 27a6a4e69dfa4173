package controllers

import (
	"net/http"

	"DirectChat/middleware"
	"DirectChat/pkg/services"
	utils "DirectChat/pkg/utills"

	"github.com/gin-gonic/gin"
)

// SearchUsers: GET /users/search?q=&role=&limit=
func SearchUsers(dir *services.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := dir.SearchUsers(c.Request.Context(), middleware.CurrentUserID(c), services.SearchOptions{
			Query: c.Query("q"),
			Role:  c.Query("role"),
			Limit: utils.ClampLimit(c.Query("limit"), services.DefaultSearchLimit, services.MaxSearchLimit),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	}
}

func GetUser(dir *services.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "user_id")
		if !ok {
			return
		}
		profile, err := dir.Profile(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": profile})
	}
}
