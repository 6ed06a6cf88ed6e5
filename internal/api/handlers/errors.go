package handlers

import (
	"esimsync/internal/apperr"

	"github.com/gin-gonic/gin"
)

// respondError writes err with the status its kind maps to.
func respondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{
		"error": err.Error(),
		"kind":  apperr.KindOf(err),
	})
}
