package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/cafeteria/internal/apperr"
)

// RetryAfterSeconds is sent with 503 responses.
const RetryAfterSeconds = "2"

var statusByKind = []struct {
	kind   error
	status int
	code   string
}{
	{apperr.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperr.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperr.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{apperr.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{apperr.ErrInvalidItem, http.StatusUnprocessableEntity, "invalid_item"},
	{apperr.ErrInvalidTransition, http.StatusUnprocessableEntity, "invalid_transition"},
	{apperr.ErrConflict, http.StatusConflict, "conflict"},
	{apperr.ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
}

// Status maps an error to its HTTP status and wire code.
func Status(err error) (int, string) {
	for _, m := range statusByKind {
		if errors.Is(err, m.kind) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// Kind maps a wire code back to its error kind, or nil for unknown codes.
func Kind(code string) error {
	for _, m := range statusByKind {
		if m.code == code {
			return m.kind
		}
	}
	return nil
}

// WriteError renders err as {"error": code, "message": msg}. Unclassified
// errors and store failures are logged with their cause; clients only see
// the taxonomy message.
func WriteError(c *gin.Context, log *slog.Logger, err error) {
	status, code := Status(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		log.Error("unhandled error", "rid", c.GetString(ctxRequestID), "path", c.FullPath(), "err", err)
		msg = "internal error"
	case http.StatusServiceUnavailable:
		log.Warn("unavailable", "rid", c.GetString(ctxRequestID), "path", c.FullPath(), "cause", apperr.Cause(err))
		c.Header("Retry-After", RetryAfterSeconds)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": msg})
}
