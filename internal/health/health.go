// Package health publishes store reachability on the standard gRPC health
// service and on the HTTP /healthz route.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the name reported alongside the overall ("") status.
const Service = "cafeteria.v1.Orders"

type Pinger interface {
	Ping(ctx context.Context) error
}

type Checker struct {
	db       Pinger
	server   *health.Server
	interval time.Duration
	log      *slog.Logger
	healthy  atomic.Bool
}

func NewChecker(db Pinger, interval time.Duration, log *slog.Logger) *Checker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	c := &Checker{db: db, server: health.NewServer(), interval: interval, log: log.With("component", "health")}
	c.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return c
}

// Server is registered on the gRPC server with healthpb.RegisterHealthServer.
func (c *Checker) Server() *health.Server { return c.server }

func (c *Checker) Healthy() bool { return c.healthy.Load() }

// Check pings the store once and publishes the result.
func (c *Checker) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.interval)
	defer cancel()

	err := c.db.Ping(ctx)
	ok := err == nil
	if ok != c.healthy.Load() {
		if ok {
			c.log.Info("store reachable")
		} else {
			c.log.Warn("store unreachable", "err", err)
		}
	}
	if ok {
		c.set(healthpb.HealthCheckResponse_SERVING)
	} else {
		c.set(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return ok
}

// Run checks on every tick until ctx is done, then marks everything as
// shutting down.
func (c *Checker) Run(ctx context.Context) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	c.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			c.healthy.Store(false)
			return
		case <-t.C:
			c.Check(ctx)
		}
	}
}

func (c *Checker) set(st healthpb.HealthCheckResponse_ServingStatus) {
	c.healthy.Store(st == healthpb.HealthCheckResponse_SERVING)
	c.server.SetServingStatus("", st)
	c.server.SetServingStatus(Service, st)
}

// Handler answers 200 "ok" while the store is reachable and 503 otherwise.
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !c.Healthy() {
			ctx.String(http.StatusServiceUnavailable, "unavailable")
			return
		}
		ctx.String(http.StatusOK, "ok")
	}
}
