package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"eventportal/internal/domain"
)

const watchQueueSize = 256

// PaymentAwaiter polls a payment until it settles.
type PaymentAwaiter interface {
	AwaitCompletion(ctx context.Context, transactionID string) (*domain.Payment, error)
}

// PendingLister lists payments still waiting for the provider.
type PendingLister interface {
	ListPending(ctx context.Context) ([]*domain.Payment, error)
}

// PaymentWatcher confirms initiated payments in the background with a fixed number of goroutines,
// so registrations settle even when the client stops polling. A transaction is watched at most
// once at a time.
type PaymentWatcher struct {
	workers int
	queue   chan string
	logger  *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ domain.PaymentWatcher = (*PaymentWatcher)(nil)

// NewPaymentWatcher creates a watcher. Watch may be called before Start; ids are queued.
func NewPaymentWatcher(workers int, logger *slog.Logger) *PaymentWatcher {
	if workers < 1 {
		workers = 1
	}
	return &PaymentWatcher{
		workers:  workers,
		queue:    make(chan string, watchQueueSize),
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// Watch queues a transaction. When the queue is full the transaction is left to the webhook
// and the registration reaper.
func (w *PaymentWatcher) Watch(transactionID string) {
	w.mu.Lock()
	if _, ok := w.inFlight[transactionID]; ok {
		w.mu.Unlock()
		return
	}
	w.inFlight[transactionID] = struct{}{}
	w.mu.Unlock()

	select {
	case w.queue <- transactionID:
	default:
		w.release(transactionID)
		w.logger.Warn("payment watch queue full", "transaction_id", transactionID)
	}
}

// Start launches the workers and resumes every payment still pending from a previous run.
func (w *PaymentWatcher) Start(ctx context.Context, awaiter PaymentAwaiter, lister PendingLister) {
	ctx, w.cancel = context.WithCancel(ctx)
	for range w.workers {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case txID := <-w.queue:
					w.await(ctx, awaiter, txID)
				}
			}
		}()
	}

	if lister == nil {
		return
	}
	pending, err := lister.ListPending(ctx)
	if err != nil {
		w.logger.Error("failed to list pending payments", "err", err)
		return
	}
	for _, p := range pending {
		w.Watch(p.TransactionID)
	}
	if len(pending) > 0 {
		w.logger.Info("resumed pending payments", "count", len(pending))
	}
}

func (w *PaymentWatcher) await(ctx context.Context, awaiter PaymentAwaiter, txID string) {
	defer w.release(txID)
	p, err := awaiter.AwaitCompletion(ctx, txID)
	switch {
	case err == nil:
		w.logger.Info("payment settled", "transaction_id", txID, "status", p.Status)
	case errors.Is(err, domain.ErrPaymentTimeout):
		w.logger.Warn("payment still pending after polling window", "transaction_id", txID)
	case ctx.Err() != nil:
	default:
		w.logger.Error("payment watch failed", "transaction_id", txID, "err", err)
	}
}

func (w *PaymentWatcher) release(txID string) {
	w.mu.Lock()
	delete(w.inFlight, txID)
	w.mu.Unlock()
}

// Stop cancels in-flight polling and waits for the workers to return.
func (w *PaymentWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
