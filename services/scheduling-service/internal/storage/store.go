// Package storage implements the scheduling engine's persistence contract
// on PostgreSQL via pgx. Double-booking is enforced twice: the engine locks
// the professional row before its conflict check, and the appointments
// table carries an exclusion constraint on the time range as a backstop,
// surfaced here as a slot conflict.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lfmoreira/agendo/services/scheduling-service/internal/outbox"
	"github.com/lfmoreira/agendo/services/scheduling-service/internal/scheduler"
)

// Conn is the slice of the pgx pool the store uses. *db.Pool satisfies it
// in production, pgxmock in the repository tests.
type Conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	pool   Conn
	outbox *outbox.Repository
}

func NewStore(pool Conn, outboxRepo *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: outboxRepo}
}

var (
	_ scheduler.Store = (*Store)(nil)
	_ scheduler.Tx    = (*storeTx)(nil)
)

// querier is satisfied by both *db.Pool and pgx.Tx so the scan helpers in
// this package serve reads inside and outside transactions.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *Store) InTx(ctx context.Context, fn func(tx scheduler.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", scheduler.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&storeTx{tx: tx, outbox: s.outbox}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// classify maps driver errors onto the engine's sentinels. The exclusion
// constraint on appointments fires as 23P01 when two transactions slip an
// overlapping range past the advisory lock.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return scheduler.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23P01":
			return scheduler.ErrSlotUnavailable
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %v", scheduler.ErrStoreUnavailable, err)
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", scheduler.ErrStoreUnavailable, err)
	}
	return err
}

// storeTx is the unit-of-work handed to the engine inside InTx.
type storeTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *storeTx) InsertEvent(ctx context.Context, evt outbox.Event) error {
	return classify(t.outbox.Insert(ctx, t.tx, evt))
}
