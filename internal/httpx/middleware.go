// Package httpx holds the gin middleware and error rendering shared by the
// HTTP handlers.
package httpx

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	HeaderRequestID   = "X-Request-ID"
	HeaderUserID      = "X-User-ID"
	HeaderUserName    = "X-User-Name"
	HeaderCounterKey  = "X-Counter-Key"
	HeaderIdempotency = "Idempotency-Key"

	ctxRequestID = "rid"
	ctxIdentity  = "identity"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(ctxRequestID, rid)
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Next()
	}
}

func Logger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http",
			"rid", c.GetString(ctxRequestID),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"dur", time.Since(start),
			"identity", c.GetString(ctxIdentity),
		)
	}
}

// Identity requires the verified identity the gateway puts in X-User-ID.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthenticated",
				"message": "missing " + HeaderUserID,
			})
			return
		}
		c.Set(ctxIdentity, id)
		c.Next()
	}
}

// IdentityOf returns the identity set by Identity.
func IdentityOf(c *gin.Context) string { return c.GetString(ctxIdentity) }

// CounterKey admits pickup-counter devices presenting the key whose bcrypt
// hash is configured. An empty hash disables the counter endpoints.
func CounterKey(hash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderCounterKey)
		if hash == "" || key == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthenticated",
				"message": "invalid counter key",
			})
			return
		}
		c.Next()
	}
}
