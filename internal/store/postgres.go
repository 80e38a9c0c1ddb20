package store

import (
	"context"
	"errors"
	"fmt"

	"backend-prolink/internal/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Postgres implements Store with pgx. Outside a transaction it issues
// statements on the pool; inside InTx every statement goes through the tx.
type Postgres struct {
	pool db.TxQuerier
	q    db.Querier
	inTx bool
}

var _ Store = (*Postgres)(nil)

func NewPostgres(pool db.TxQuerier) *Postgres {
	return &Postgres{pool: pool, q: pool}
}

func (p *Postgres) InTx(ctx context.Context, fn func(tx Store) error) error {
	if p.inTx {
		return fn(p)
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(&Postgres{pool: p.pool, q: tx, inTx: true})
	})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
