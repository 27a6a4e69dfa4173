package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"DirectChat/pkg/config"
	tokenstore "DirectChat/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ContextUserIDKey = "current_user_id"
	ContextJTIKey    = "current_jti"
	ContextExpKey    = "current_token_exp"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token has been revoked (logout)")
	ErrBadSubject   = errors.New("invalid subject in token")
)

// TokenClaims is what the rest of the app needs from a verified token.
type TokenClaims struct {
	UserID    uint
	JTI       string
	ExpiresAt time.Time
}

// ParseToken verifies an HS256 token and rejects revoked ones. It backs
// both the REST middleware and the websocket handshake.
func ParseToken(tokenStr string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		// only accept HMAC signing
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return []byte(config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	jtiVal, _ := claims["jti"].(string)
	if tokenstore.IsRevoked(jtiVal) {
		return nil, ErrRevokedToken
	}

	// subject (user id); jwt may decode numbers as float64
	var uid uint64
	switch sub := claims["sub"].(type) {
	case string:
		uid, err = strconv.ParseUint(sub, 10, 64)
	case float64:
		if sub < 1 || sub >= math.MaxUint32 || sub != math.Trunc(sub) {
			return nil, ErrBadSubject
		}
		uid = uint64(sub)
	default:
		err = ErrBadSubject
	}
	if err != nil || uid == 0 {
		return nil, ErrBadSubject
	}

	out := &TokenClaims{UserID: uint(uid), JTI: jtiVal}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "missing authorization header"})
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid authorization header"})
			return
		}

		claims, err := ParseToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextJTIKey, claims.JTI)
		c.Set(ContextExpKey, claims.ExpiresAt)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id, or 0 outside AuthMiddleware.
func CurrentUserID(c *gin.Context) uint {
	v, _ := c.Get(ContextUserIDKey)
	id, _ := v.(uint)
	return id
}
