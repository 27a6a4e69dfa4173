package controllers

import (
	"errors"
	"net/http"
	"strings"

	"DirectChat/middleware"
	"DirectChat/models"
	"DirectChat/pkg/services"
	utils "DirectChat/pkg/utills"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Profile(db *gorm.DB, dir *services.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := middleware.CurrentUserID(c)

		var user models.User
		if err := db.First(&user, uid).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"msg": "User not found"})
			return
		}

		if c.Request.Method == http.MethodGet {
			c.JSON(http.StatusOK, gin.H{
				"id":                user.ID,
				"email":             user.Email,
				"username":          user.Username,
				"display_name":      user.DisplayName,
				"role":              user.Role,
				"profile_image_url": user.ProfileImageURL,
				"last_active_at":    user.LastActiveAt,
			})
			return
		}

		// PUT; role is read-only here
		var body struct {
			Email           string  `json:"email"`
			Username        string  `json:"username"`
			DisplayName     *string `json:"display_name"`
			ProfileImageURL *string `json:"profile_image_url"`
			Password        string  `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}

		newEmail := strings.TrimSpace(strings.ToLower(body.Email))
		if newEmail == "" {
			newEmail = user.Email
		}
		newUsername := strings.TrimSpace(body.Username)
		if newUsername == "" {
			newUsername = user.Username
		}
		newPassword := body.Password

		// check email uniqueness
		if newEmail != user.Email {
			var t models.User
			if err := db.Where("email = ?", newEmail).First(&t).Error; err == nil {
				c.JSON(http.StatusConflict, gin.H{"msg": "Email already exists"})
				return
			}
		}
		// check username uniqueness
		if newUsername != user.Username {
			var t models.User
			if err := db.Where("username = ?", newUsername).First(&t).Error; err == nil {
				c.JSON(http.StatusConflict, gin.H{"msg": "Username already exists"})
				return
			}
		}

		user.Email = newEmail
		user.Username = newUsername
		if body.DisplayName != nil {
			user.DisplayName = strings.TrimSpace(*body.DisplayName)
		}
		if body.ProfileImageURL != nil {
			user.ProfileImageURL = strings.TrimSpace(*body.ProfileImageURL)
		}
		if newPassword != "" {
			if !utils.HasLetter(newPassword) || !utils.HasNumber(newPassword) {
				c.JSON(http.StatusBadRequest, gin.H{"msg": "New password must contain at least one letter and one number"})
				return
			}
			if err := user.SetPassword(newPassword); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to set password"})
				return
			}
		}
		if err := db.Save(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				c.JSON(http.StatusConflict, gin.H{"msg": "Email or username already exists"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to update profile"})
			return
		}
		dir.Invalidate(user.ID)

		c.JSON(http.StatusOK, gin.H{"msg": "Profile updated successfully"})
	}
}
