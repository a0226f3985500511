package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/MikeMC777/cafeteria/internal/awsx"
	"github.com/MikeMC777/cafeteria/internal/config"
	"github.com/MikeMC777/cafeteria/internal/db"
	"github.com/MikeMC777/cafeteria/internal/health"
	"github.com/MikeMC777/cafeteria/internal/logging"
	"github.com/MikeMC777/cafeteria/internal/menu"
	"github.com/MikeMC777/cafeteria/internal/notify"
	"github.com/MikeMC777/cafeteria/internal/order"
	"github.com/MikeMC777/cafeteria/internal/payment"
	"github.com/MikeMC777/cafeteria/internal/settings"
	"github.com/MikeMC777/cafeteria/internal/user"
	"github.com/MikeMC777/cafeteria/internal/validation"
)

// app is everything the handlers need.
type app struct {
	log            *slog.Logger
	validate       *validatorv10.Validate
	users          *user.Service
	catalog        *menu.Catalog
	orders         *order.Service
	payments       *payment.Service
	inbox          *notify.Inbox
	settings       *settings.Provider
	health         *health.Checker
	counterKeyHash string
}

func newApp(d *db.DB, cfg config.Config, pusher order.Pusher, log *slog.Logger) *app {
	users := user.NewService(user.NewSQLRepo(d), cfg.RoleCacheTTL, log)
	catalog := menu.NewCatalog(menu.NewSQLRepo(d), users, log)
	defaults := settings.Settings{
		MaxActiveOrders:     cfg.Defaults.MaxActiveOrders,
		OpenTime:            cfg.Defaults.OpenTime,
		CloseTime:           cfg.Defaults.CloseTime,
		AcceptingOrders:     true,
		CancelFromPreparing: cfg.Defaults.CancelFromPreparing,
	}
	provider := settings.NewProvider(settings.NewSQLRepo(d), users, defaults, cfg.SettingsRefresh, log)
	orders := order.NewService(order.NewSQLRepo(d), users, catalog, provider, pusher, log)

	return &app{
		log:            log,
		validate:       validation.New(),
		users:          users,
		catalog:        catalog,
		orders:         orders,
		payments:       payment.NewService(payment.NewSQLRepo(d), orders, users, log),
		inbox:          notify.NewInbox(notify.NewSQLRepo(d), users),
		settings:       provider,
		health:         health.NewChecker(d, 10*time.Second, log),
		counterKeyHash: cfg.CounterKeyHash,
	}
}

// newPushBackend picks SQS delivery when a queue is configured and falls
// back to logging pushes locally.
func newPushBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (notify.Pusher, notify.Metrics, error) {
	if cfg.PushQueueURL == "" {
		log.Warn("PUSH_QUEUE_URL not set; push notifications are logged only")
		return notify.LogPusher{Log: log}, notify.NopMetrics{}, nil
	}
	clients, err := awsx.NewClients(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		return nil, nil, err
	}
	var metrics notify.Metrics = notify.NopMetrics{}
	if cfg.MetricsNamespace != "" {
		metrics = notify.NewCloudWatchMetrics(clients.CloudWatch, cfg.MetricsNamespace, log)
	}
	return notify.NewSQSPusher(clients.SQS, cfg.PushQueueURL), metrics, nil
}

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, log); err != nil {
		log.Error("cafeteria-api stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := db.Open(ctx, db.Config{
		Driver:       cfg.DBDriver,
		DSN:          cfg.DatabaseDSN,
		MaxOpenConns: cfg.DBMaxOpenConns,
		Timeout:      cfg.StoreTimeout,
	}, log)
	if err != nil {
		return err
	}
	defer d.Close()

	pusher, metrics, err := newPushBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(notify.NewSQLRepo(d), pusher, metrics, log, notify.Options{
		Workers:   cfg.PushWorkers,
		QueueSize: cfg.PushQueueSize,
	})
	// workers outlive ctx; Close drains the queue
	dispatcher.Start(context.Background())
	defer dispatcher.Close()

	a := newApp(d, cfg, dispatcher, log)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 5 * time.Second,
	}

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, a.health.Server())
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.health.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("grpc health listening", "addr", cfg.GRPCAddr)
		return gs.Serve(lis)
	})
	g.Go(func() error {
		log.Info("cafeteria-api listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		gs.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
