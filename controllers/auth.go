package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"DirectChat/middleware"
	"DirectChat/models"
	"DirectChat/pkg/config"
	"DirectChat/pkg/services"
	tokenstore "DirectChat/pkg/token"
	utils "DirectChat/pkg/utills"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const tokenTTL = 24 * time.Hour

// Register handler
func Register(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email           string `json:"email"`
			Username        string `json:"username"`
			DisplayName     string `json:"display_name"`
			Role            string `json:"role"`
			Password        string `json:"password"`
			ConfirmPassword string `json:"confirm_password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}

		email := strings.TrimSpace(strings.ToLower(body.Email))
		username := strings.TrimSpace(body.Username)
		password := body.Password
		confirm := body.ConfirmPassword

		if email == "" || username == "" || password == "" || confirm == "" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "Email, username, password, and confirm password are required"})
			return
		}

		if password != confirm {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "Passwords do not match"})
			return
		}

		// password validation: at least one letter and one number
		if !utils.HasLetter(password) || !utils.HasNumber(password) {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "Password must contain at least one letter and one number"})
			return
		}

		// admins are not self-service
		role := strings.ToLower(strings.TrimSpace(body.Role))
		switch role {
		case "":
			role = models.RoleUser
		case models.RoleUser, models.RoleEmployer:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"msg": "role must be user or employer"})
			return
		}

		var exists models.User
		if err := db.Where("email = ? OR username = ?", email, username).First(&exists).Error; err == nil {
			c.JSON(http.StatusConflict, gin.H{"msg": "Email or username already exists"})
			return
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "db error"})
			return
		}

		user := models.User{
			Email:       email,
			Username:    username,
			DisplayName: strings.TrimSpace(body.DisplayName),
			Role:        role,
		}
		if err := user.SetPassword(password); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to set password"})
			return
		}
		if err := db.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				c.JSON(http.StatusConflict, gin.H{"msg": "Email or username already exists"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to create user"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"msg": "User created", "id": user.ID, "username": user.Username, "email": user.Email})
	}
}

// issueToken signs an HS256 token for userID.
func issueToken(userID uint, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
		"jti": uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.JWTSecret))
}

// Login handler. A successful login also counts as activity.
func Login(db *gorm.DB, dir *services.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}
		email := strings.TrimSpace(strings.ToLower(body.Email))
		password := body.Password

		if email == "" || password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "Email and password are required"})
			return
		}

		var user models.User
		if err := db.Where("email = ?", email).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": "Invalid credentials"})
			return
		}

		if !user.CheckPassword(password) {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": "Invalid credentials"})
			return
		}

		tokenStr, err := issueToken(user.ID, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to create token"})
			return
		}
		if err := dir.TouchLastActive(c.Request.Context(), user.ID); err != nil {
			log.Warn().Err(err).Uint("user_id", user.ID).Msg("last active update failed")
		}

		c.JSON(http.StatusOK, gin.H{"access_token": tokenStr, "user_id": user.ID, "username": user.Username})
	}
}

// Logout handler
func Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		jti := c.GetString(middleware.ContextJTIKey)
		exp, _ := c.Get(middleware.ContextExpKey)
		expAt, ok := exp.(time.Time)
		if !ok || expAt.IsZero() {
			expAt = time.Now().Add(tokenTTL)
		}
		tokenstore.RevokeToken(jti, expAt)
		c.JSON(http.StatusOK, gin.H{"msg": "logged out"})
	}
}
