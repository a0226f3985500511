package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	MenuItemID string `json:"menu_item_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"required,min=1"`
}

type payload struct {
	Items  []line          `json:"items" validate:"required,min=1,dive"`
	Amount decimal.Decimal `json:"amount" validate:"gte=0"`
	Opens  string          `json:"opens" validate:"omitempty,clock"`
}

func TestValidator_Rules(t *testing.T) {
	v := New()

	ok := payload{Items: []line{{MenuItemID: "a", Quantity: 1}}, Amount: decimal.RequireFromString("3.50"), Opens: "07:30"}
	assert.NoError(t, v.Struct(ok))

	bad := payload{Items: []line{{Quantity: 0}}, Amount: decimal.RequireFromString("-1"), Opens: "7am"}
	err := v.Struct(bad)
	require.Error(t, err)

	fields := FieldErrors(err)
	assert.Equal(t, "required", fields["payload.items[0].menu_item_id"])
	assert.Equal(t, "required", fields["payload.items[0].quantity"])
	assert.Equal(t, "gte=0", fields["payload.amount"])
	assert.Equal(t, "clock", fields["payload.opens"])
}

func TestBindAndValidate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := New()
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var p payload
		if err := BindAndValidate(c, &p, v); err != nil {
			return
		}
		c.Status(http.StatusNoContent)
	})

	cases := []struct {
		body string
		want int
	}{
		{`{"items":[{"menu_item_id":"a","quantity":2}],"amount":"1.00"}`, http.StatusNoContent},
		{`{"items":[]}`, http.StatusBadRequest},
		{`{"items":`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, tc.body)
	}
}
