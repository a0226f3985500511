package counter

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/httpx"
	"github.com/MikeMC777/cafeteria/internal/order"
)

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/counter/verify/{code}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(httpx.HeaderCounterKey) != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthenticated","message":"invalid counter key"}`))
			return
		}
		if r.PathValue("code") != "0042" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not_found","message":"order not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(order.PickupSummary{
			OrderID: "o-1", PickupCode: "0042", Status: order.StatusReady,
			Items: []order.SummaryLine{{Name: "Cheeseburger", Quantity: 1}},
		})
	})
	mux.HandleFunc("PUT /v1/orders/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		var req order.TransitionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if r.Header.Get(httpx.HeaderUserID) != "staff-1" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.PathValue("id") == "o-gone" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"invalid_item","message":"a referenced menu item no longer exists"}`))
			return
		}
		if r.PathValue("id") != "o-1" || req.Status != order.StatusCompleted {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"invalid_transition","message":"cannot move order"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(order.Order{ID: "o-1", Status: order.StatusCompleted})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Verify(t *testing.T) {
	srv := newAPI(t)
	ctx := context.Background()

	c := NewClient(srv.URL+"/", "k", "staff-1")
	s, err := c.Verify(ctx, "0042")
	require.NoError(t, err)
	assert.Equal(t, "o-1", s.OrderID)
	require.Len(t, s.Items, 1)

	_, err = c.Verify(ctx, "9999")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	c.CounterKey = "wrong"
	_, err = c.Verify(ctx, "0042")
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestClient_Complete(t *testing.T) {
	srv := newAPI(t)
	ctx := context.Background()

	o, err := NewClient(srv.URL, "k", "staff-1").Complete(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, o.Status)

	_, err = NewClient(srv.URL, "k", "staff-1").Complete(ctx, "o-2")
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = NewClient(srv.URL, "k", "staff-1").Complete(ctx, "o-gone")
	require.ErrorIs(t, err, apperr.ErrInvalidItem)
	assert.NotErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = NewClient(srv.URL, "k", "").Complete(ctx, "o-1")
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = NewClient(srv.URL, "k", "cust-1").Complete(ctx, "o-1")
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestClient_Unreachable(t *testing.T) {
	srv := newAPI(t)
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "k", "staff-1").Verify(context.Background(), "0042")
	require.ErrorIs(t, err, apperr.ErrUnavailable)
}

func TestServing(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	ok, err := Serving(context.Background(), lis.Addr().String())
	require.NoError(t, err)
	assert.True(t, ok)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	ok, err = Serving(context.Background(), lis.Addr().String())
	require.NoError(t, err)
	assert.False(t, ok)
}
