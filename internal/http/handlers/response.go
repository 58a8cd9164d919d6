// Package handlers provides HTTP handler implementations for the public API.
//
// Two response shapes exist. Directory endpoints fail with the ErrorResponse
// envelope written by fail(); the metadata endpoint answers 400 with a bare
// {"error": "..."} body written by badURL(), the shape its enrichment clients
// decode. Successful answers are plain JSON documents written by ok().
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-org-enricher/internal/http/middleware"
)

// ErrorResponse is the error envelope of the directory endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// MetadataError is the body of the metadata endpoint's 400 answers.
type MetadataError struct {
	Error string `json:"error" example:"URL parameter is required"`
}

// fail aborts with an ErrorResponse. 5xx answers are logged through the
// request-scoped logger with status and code.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail, used by router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// badURL aborts a metadata lookup with 400 and the {"error": msg} body. The
// answer is marked no-store so that PublicCache does not leak onto it.
func badURL(c *gin.Context, msg string) {
	middleware.NoStore(c)
	c.AbortWithStatusJSON(http.StatusBadRequest, MetadataError{Error: msg})
}
