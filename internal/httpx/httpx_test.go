package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/logging"
)

func init() { gin.SetMode(gin.TestMode) }

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.New(apperr.ErrNotFound, "order not found"), http.StatusNotFound},
		{apperr.New(apperr.ErrForbidden, "no"), http.StatusForbidden},
		{apperr.New(apperr.ErrInvalidItem, "gone"), http.StatusUnprocessableEntity},
		{apperr.New(apperr.ErrInvalidTransition, "no"), http.StatusUnprocessableEntity},
		{apperr.New(apperr.ErrConflict, "race"), http.StatusConflict},
		{apperr.FromStore(context.DeadlineExceeded), http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", apperr.ErrInvalidInput), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, _ := Status(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
	}
}

func TestKind_InvertsStatus(t *testing.T) {
	for _, m := range statusByKind {
		assert.Equal(t, m.kind, Kind(m.code), m.code)
	}
	assert.Nil(t, Kind("internal"))
}

func TestWriteError_HidesStoreCause(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		WriteError(c, logging.Discard(), apperr.FromStore(errors.New("pq: connection refused to 10.0.0.7")))
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, RetryAfterSeconds, w.Header().Get("Retry-After"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body["error"])
	assert.NotContains(t, body["message"], "10.0.0.7")
}

func TestIdentityAndRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Identity())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, IdentityOf(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "user-7")
	req.Header.Set(HeaderRequestID, "rid-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-7", w.Body.String())
	assert.Equal(t, "rid-1", w.Header().Get(HeaderRequestID))
}

func TestCounterKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("counter-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	for _, tc := range []struct {
		hash, key string
		want      int
	}{
		{string(hash), "counter-secret", http.StatusOK},
		{string(hash), "wrong", http.StatusUnauthorized},
		{string(hash), "", http.StatusUnauthorized},
		{"", "counter-secret", http.StatusUnauthorized},
	} {
		r := gin.New()
		r.GET("/", CounterKey(tc.hash), func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.key != "" {
			req.Header.Set(HeaderCounterKey, tc.key)
		}
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code)
	}
}
