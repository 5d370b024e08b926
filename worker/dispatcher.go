package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/adwatch/adwatch/config"
	"github.com/adwatch/adwatch/store"
	"github.com/adwatch/adwatch/webpush"
)

// PushSender delivers one encrypted message to a browser endpoint.
// Satisfied by *webpush.Sender.
type PushSender interface {
	Send(ctx context.Context, pushSub string, vapidPrivPEM []byte, message string) error
}

// PushDispatcher drains the push queue: lease, deliver, finish. Failed
// deliveries stay leased and retry later; a spent retry budget or a gone
// endpoint unsubscribes the client.
type PushDispatcher struct {
	store   *store.Store
	sender  PushSender
	cfg     config.PushConfig
	limiter *rate.Limiter
	logger  *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPushDispatcher creates the dispatcher. Start must be called to begin
// processing.
func NewPushDispatcher(ctx context.Context, s *store.Store, sender PushSender, cfg config.PushConfig, logger *zap.SugaredLogger) *PushDispatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	workerCtx, cancel := context.WithCancel(ctx)

	// Push services throttle per application server; pace outbound sends
	// rather than discovering their limits via 429s.
	limiter := rate.NewLimiter(rate.Limit(float64(cfg.SendsPerMinute)/60.0), 1)

	return &PushDispatcher{
		store:   s,
		sender:  sender,
		cfg:     cfg,
		limiter: limiter,
		logger:  logger.Named("dispatcher"),
		ctx:     workerCtx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutine.
func (d *PushDispatcher) Start() {
	d.logger.Infow("Starting push dispatcher",
		"max_retries", d.cfg.MaxMessageRetries,
		"retry_interval", d.cfg.MessageRetryInterval(),
		"sends_per_minute", d.cfg.SendsPerMinute)

	d.wg.Add(1)
	go d.run()
}

// Stop cancels the worker and waits for the in-flight delivery to finish.
func (d *PushDispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	d.logger.Infow("Push dispatcher stopped")
}

func (d *PushDispatcher) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.IdlePoll())
	defer ticker.Stop()

	for {
		for d.processNext() {
			select {
			case <-d.ctx.Done():
				return
			default:
			}
		}

		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// processNext delivers one due queue entry. Returns false when the queue
// had nothing due.
func (d *PushDispatcher) processNext() bool {
	item, err := d.store.PushQueueNext(d.cfg.MessageRetryInterval())
	if err != nil {
		d.logger.Errorw("Failed to lease next push", "error", err)
		return false
	}
	if item == nil {
		return false
	}

	d.deliver(item)
	return true
}

func (d *PushDispatcher) deliver(item *store.PushQueueItem) {
	// A client that unsubscribed between enqueue and delivery leaves a
	// null push_sub behind; nothing to deliver to.
	if item.PushInfo.PushSub == nil {
		d.logger.Infow("Dropping push for unsubscribed client",
			"push_id", item.ID, "client_id", item.ClientID)
		d.finish(item.ID, true)
		return
	}

	if err := d.limiter.Wait(d.ctx); err != nil {
		// Shutdown while pacing; the lease keeps the item alive.
		return
	}

	err := d.sender.Send(d.ctx, *item.PushInfo.PushSub, item.PushInfo.VAPIDPriv, item.Message)
	if err == nil {
		d.logger.Debugw("Push delivered", "push_id", item.ID, "client_id", item.ClientID)
		d.finish(item.ID, false)
		return
	}

	if webpush.IsClientGone(err) {
		d.logger.Infow("Push endpoint gone, unsubscribing client",
			"push_id", item.ID, "client_id", item.ClientID)
		d.finish(item.ID, true)
		return
	}

	// item.Retries counts attempts before this one; reaching the budget
	// means this failed attempt was the last allowed.
	if item.Retries >= d.cfg.MaxMessageRetries {
		d.logger.Warnw("Push retries exhausted, unsubscribing client",
			"push_id", item.ID,
			"client_id", item.ClientID,
			"attempts", item.Retries+1,
			"error", err)
		d.finish(item.ID, true)
		return
	}

	d.logger.Warnw("Push delivery failed, will retry",
		"push_id", item.ID,
		"client_id", item.ClientID,
		"attempt", item.Retries+1,
		"retry_in", d.cfg.MessageRetryInterval(),
		"error", err)
}

func (d *PushDispatcher) finish(id int64, unsubClient bool) {
	if err := d.store.PushQueueFinish(id, unsubClient); err != nil {
		d.logger.Errorw("Failed to finish push", "push_id", id, "error", err)
	}
}
