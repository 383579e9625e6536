package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erp/shipsync/internal/infrastructure/logger"
	"github.com/erp/shipsync/internal/interfaces/http/dto"
)

// BodyLimit returns a middleware that limits request body size
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRequestTooLarge,
				"request body exceeds maximum allowed size",
				logger.GetRequestID(c.Request.Context()),
			))
			return
		}

		// Requests without Content-Length are cut off while reading
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
