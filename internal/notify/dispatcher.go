package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MikeMC777/cafeteria/internal/apperr"
)

// ErrInvalidToken is returned by a Pusher when the device token is expired or
// unknown; the dispatcher then forgets the token.
var ErrInvalidToken = errors.New("push token invalid")

type Pusher interface {
	Push(ctx context.Context, msg PushMessage) error
}

// Metrics receives delivery outcomes.
type Metrics interface {
	Record(ctx context.Context, outcome Outcome, n int)
}

type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "failed"
	OutcomeDropped   Outcome = "dropped"
	OutcomePruned    Outcome = "token_pruned"
)

type NopMetrics struct{}

func (NopMetrics) Record(context.Context, Outcome, int) {}

type Options struct {
	Workers     int
	QueueSize   int
	PushTimeout time.Duration
	// PerUserFanout bounds concurrent pushes to one user's devices.
	PerUserFanout int
}

func (o *Options) withDefaults() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.PushTimeout <= 0 {
		o.PushTimeout = 5 * time.Second
	}
	if o.PerUserFanout <= 0 {
		o.PerUserFanout = 4
	}
}

// Dispatcher delivers committed notifications to devices on a bounded
// worker pool. Delivery is best effort and at most once per token: errors
// are logged and counted, never returned to whoever triggered the notice.
type Dispatcher struct {
	repo    Repository
	pusher  Pusher
	metrics Metrics
	log     *slog.Logger
	opts    Options
	now     func() time.Time

	queue  chan Notification
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(repo Repository, pusher Pusher, metrics Metrics, log *slog.Logger, opts Options) *Dispatcher {
	opts.withDefaults()
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Dispatcher{
		repo:    repo,
		pusher:  pusher,
		metrics: metrics,
		log:     log.With("component", "notify_dispatcher"),
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
		queue:   make(chan Notification, opts.QueueSize),
	}
}

// Start launches the workers. They exit once Close drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for n := range d.queue {
				d.deliver(ctx, n)
			}
		}()
	}
	d.log.Info("dispatcher started", "workers", d.opts.Workers, "queue_size", d.opts.QueueSize)
}

// Close stops accepting pushes and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

// Push schedules delivery of already-committed notifications. It never
// blocks; when the queue is full the push is dropped and the record remains
// readable in the inbox.
func (d *Dispatcher) Push(ns ...Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.metrics.Record(context.Background(), OutcomeDropped, len(ns))
		return
	}
	for _, n := range ns {
		select {
		case d.queue <- n:
		default:
			d.log.Warn("push queue full, dropping", "notification_id", n.ID, "user_id", n.UserID)
			d.metrics.Record(context.Background(), OutcomeDropped, 1)
		}
	}
}

// Enqueue writes a notification record and schedules its push. Only the
// record write can fail.
func (d *Dispatcher) Enqueue(ctx context.Context, userID, orderID string, typ Type, title, message string) (*Notification, error) {
	if !typ.Valid() {
		return nil, apperr.New(apperr.ErrInvalidInput, "unknown notification type %q", typ)
	}
	n := New(userID, orderID, typ, title, message, d.now())
	if err := d.repo.Insert(ctx, &n); err != nil {
		return nil, err
	}
	d.Push(n)
	return &n, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	log := d.log.With("notification_id", n.ID, "user_id", n.UserID, "type", n.Type)

	tokens, err := d.repo.Tokens(ctx, n.UserID)
	if err != nil {
		log.Warn("load push tokens failed", "err", apperr.Cause(err))
		d.metrics.Record(ctx, OutcomeFailed, 1)
		return
	}
	if len(tokens) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.PerUserFanout)
	var (
		mu                        sync.Mutex
		delivered, failed, pruned int
	)
	for _, t := range tokens {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, d.opts.PushTimeout)
			defer cancel()

			err := d.pusher.Push(pctx, PushMessage{
				Token:          t.Token,
				NotificationID: n.ID,
				Type:           n.Type,
				Title:          n.Title,
				Message:        n.Message,
				OrderID:        n.OrderID,
			})
			if errors.Is(err, ErrInvalidToken) {
				if derr := d.repo.DeleteToken(ctx, t.Token); derr != nil {
					log.Warn("prune push token failed", "err", apperr.Cause(derr))
				}
			} else if err != nil {
				log.Warn("push failed", "platform", t.Platform, "err", err)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				delivered++
			case errors.Is(err, ErrInvalidToken):
				pruned++
			default:
				failed++
			}
			// counted, never propagated
			return nil
		})
	}
	_ = g.Wait()

	if delivered > 0 {
		d.metrics.Record(ctx, OutcomeDelivered, delivered)
	}
	if failed > 0 {
		d.metrics.Record(ctx, OutcomeFailed, failed)
	}
	if pruned > 0 {
		d.metrics.Record(ctx, OutcomePruned, pruned)
	}
}
