package outbox

import (
	"context"
	"log/slog"
	"time"
)

// Store is the persistence side of the outbox. LockBatch must hand each
// pending task of the given kind to at most one relay at a time and also
// reclaim tasks whose lease expired.
type Store interface {
	LockBatch(ctx context.Context, relayID string, kind Kind, batchSize int, lease time.Duration) ([]Task, error)
	MarkSent(ctx context.Context, ids []int64) error
	// Retry reschedules a failed task after the given delay, bumping its
	// retry counter; past maxRetries the store parks it as failed.
	Retry(ctx context.Context, id int64, errMsg string, delay time.Duration, maxRetries int) error
}

// Dispatcher delivers a single task to its destination.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
}

type Relay struct {
	log        *slog.Logger
	store      Store
	dispatch   Dispatcher
	relayID    string
	kind       Kind
	batchSize  int
	interval   time.Duration
	lease      time.Duration
	baseDelay  time.Duration
	maxDelay   time.Duration
	maxRetries int
}

func NewRelay(log *slog.Logger, store Store, dispatch Dispatcher, relayID string, kind Kind) *Relay {
	return &Relay{
		log:        log,
		store:      store,
		dispatch:   dispatch,
		relayID:    relayID,
		kind:       kind,
		batchSize:  100,
		interval:   500 * time.Millisecond,
		lease:      5 * time.Second,
		baseDelay:  time.Second,
		maxDelay:   5 * time.Minute,
		maxRetries: 10,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			r.drain(ctx)
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	tasks, err := r.store.LockBatch(ctx, r.relayID, r.kind, r.batchSize, r.lease)
	if err != nil {
		r.log.Error("relay lock batch error", "err", err)
		return
	}
	if len(tasks) == 0 {
		return
	}

	sent := make([]int64, 0, len(tasks))
	for _, task := range tasks {
		if err := r.dispatch.Dispatch(ctx, task); err != nil {
			r.log.Warn("dispatch failed, scheduling retry",
				"task_id", task.ID, "type", task.Type, "retries", task.RetryCount, "err", err)
			if rerr := r.store.Retry(ctx, task.ID, err.Error(), r.backoff(task.RetryCount), r.maxRetries); rerr != nil {
				r.log.Error("relay retry scheduling error", "task_id", task.ID, "err", rerr)
			}
			continue
		}
		sent = append(sent, task.ID)
	}
	if len(sent) > 0 {
		if err := r.store.MarkSent(ctx, sent); err != nil {
			r.log.Error("relay mark sent error", "err", err)
		}
	}
}

// backoff doubles the delay per attempt up to the cap.
func (r *Relay) backoff(retries int) time.Duration {
	d := r.baseDelay
	for i := 0; i < retries && d < r.maxDelay; i++ {
		d *= 2
	}
	if d > r.maxDelay {
		d = r.maxDelay
	}
	return d
}
