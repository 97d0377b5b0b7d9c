package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HurmakR/herabuna-b2b/pkg/outbox"
)

// Execer is satisfied by both pgxpool.Pool and pgx.Tx, so tasks can be
// enqueued inside the caller's transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// InsertTask appends an outbox row; the surrounding transaction makes the
// state change and its follow-up atomic.
func InsertTask(ctx context.Context, db Execer, kind outbox.Kind, aggregateType, aggregateID, typ string, payload []byte, headers map[string]string, traceparent string) error {
	if headers == nil {
		headers = map[string]string{}
	}
	_, err := db.Exec(ctx, `
		INSERT INTO outbox (kind, aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'pending')`,
		kind, aggregateType, aggregateID, typ, payload, headers, traceparent)
	return err
}

// OutboxStore drains the outbox table for the relays.
type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, kind outbox.Kind, batchSize int, lease time.Duration) ([]outbox.Task, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, kind, aggregate_type, aggregate_id, type, payload, headers, traceparent, retry_count, created_at
		FROM outbox
		WHERE kind = $1
		  AND next_attempt_at <= now()
		  AND (status = 'pending' OR (status = 'in_progress' AND lease_until < now()))
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $2`, kind, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []outbox.Task
	for rows.Next() {
		var t outbox.Task
		var headers map[string]string
		if err := rows.Scan(&t.ID, &t.Kind, &t.AggregateType, &t.AggregateID, &t.Type,
			&t.Payload, &headers, &t.Traceparent, &t.RetryCount, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Headers = headers
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	_, err = tx.Exec(ctx, `
		UPDATE outbox SET status='in_progress', relay_id=$1, lease_until=now() + $2::interval
		WHERE id = ANY($3)`, relayID, lease.String(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent' WHERE id = ANY($1)`, ids)
	return err
}

func (s *OutboxStore) Retry(ctx context.Context, id int64, errMsg string, delay time.Duration, maxRetries int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox
		SET status = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END,
		    retry_count = retry_count + 1,
		    next_attempt_at = now() + $2::interval,
		    last_error = $4
		WHERE id = $1`, id, delay.String(), maxRetries, errMsg)
	return err
}
