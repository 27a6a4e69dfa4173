package controllers

import (
	"net/http"

	"DirectChat/pkg/apperr"
	"DirectChat/pkg/services"
	utils "DirectChat/pkg/utills"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// respondError renders err as {"msg": ...} with the status of its kind.
// Internal causes are logged, never shown.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		log.Error().Err(err).Str("route", c.FullPath()).Msg("request failed")
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), gin.H{"msg": apperr.Message(err)})
}

// respondConversationError hides "exists but not yours" behind 404.
func respondConversationError(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.KindUnauthorized {
		err = services.ErrConversationNotFound
	}
	respondError(c, err)
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, ok := utils.ParseID(c.Param(name))
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"msg": "invalid " + name})
	}
	return id, ok
}
