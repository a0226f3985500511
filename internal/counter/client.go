// Package counter is the pickup-counter device's client of the cafeteria API.
package counter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/MikeMC777/cafeteria/internal/apperr"
	"github.com/MikeMC777/cafeteria/internal/httpx"
	"github.com/MikeMC777/cafeteria/internal/order"
)

type Client struct {
	HTTP       *http.Client
	BaseURL    string
	CounterKey string
	// StaffID is the staff identity completions are attributed to.
	StaffID string
}

func NewClient(baseURL, counterKey, staffID string) *Client {
	return &Client{
		HTTP:       &http.Client{Timeout: 5 * time.Second},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		CounterKey: counterKey,
		StaffID:    staffID,
	}
}

// Verify looks up the ready order a customer's pickup code belongs to.
func (c *Client) Verify(ctx context.Context, code string) (*order.PickupSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/counter/verify/%s", c.BaseURL, url.PathEscape(code)), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(httpx.HeaderCounterKey, c.CounterKey)

	var s order.PickupSummary
	if err := c.do(req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Complete hands the order over: ready -> completed, as StaffID.
func (c *Client) Complete(ctx context.Context, orderID string) (*order.Order, error) {
	if c.StaffID == "" {
		return nil, apperr.New(apperr.ErrUnauthenticated, "staff id is required to complete orders")
	}
	body, _ := json.Marshal(order.TransitionRequest{Status: order.StatusCompleted, Note: "picked up at counter"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/v1/orders/%s/status", c.BaseURL, url.PathEscape(orderID)), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httpx.HeaderUserID, c.StaffID)

	var o order.Order
	if err := c.do(req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.HTTP.Do(req)
	if err != nil {
		return apperr.FromStore(err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return json.NewDecoder(res.Body).Decode(out)
	}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(res.Body).Decode(&body)
	if body.Message == "" {
		body.Message = res.Status
	}
	kind := httpx.Kind(body.Error)
	if kind == nil {
		kind = kindOf(res.StatusCode)
	}
	return apperr.New(kind, "%s", body.Message)
}

// kindOf guesses the kind from the status alone, for responses without a
// wire code.
func kindOf(status int) error {
	switch status {
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusForbidden:
		return apperr.ErrForbidden
	case http.StatusUnauthorized:
		return apperr.ErrUnauthenticated
	case http.StatusBadRequest:
		return apperr.ErrInvalidInput
	case http.StatusUnprocessableEntity:
		return apperr.ErrInvalidTransition
	case http.StatusConflict:
		return apperr.ErrConflict
	default:
		return apperr.ErrUnavailable
	}
}

// Serving asks the API's gRPC health service whether it can take requests.
func Serving(ctx context.Context, addr string) (bool, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return false, err
	}
	defer conn.Close()

	res, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return false, err
	}
	return res.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}
