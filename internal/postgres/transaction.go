package postgres

import (
	"context"
	"database/sql"
	"fmt"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// Tx wraps sqlx.Tx; nested WithTx calls become savepoints.
type Tx struct {
	*sqlx.Tx
	depth int
	ID    string
}

// GetTx retrieves a transaction from the context if it exists
func GetTx(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*Tx)
	return tx, ok
}

func savepointName(depth int) string {
	return fmt.Sprintf("sp_%d", depth)
}

// BeginTx starts a transaction, or a savepoint inside the one already in ctx.
func (db *DB) BeginTx(ctx context.Context) (context.Context, *Tx, error) {
	if tx, ok := GetTx(ctx); ok {
		tx.depth++
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepointName(tx.depth)); err != nil {
			tx.depth--
			return ctx, nil, ierr.WithError(err).
				WithHint("Failed to create savepoint").
				Mark(ierr.ErrDatabase)
		}
		db.logger.Debugw("created savepoint", "tx_id", tx.ID, "depth", tx.depth)
		return ctx, tx, nil
	}

	sqlxTx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return ctx, nil, ierr.WithError(err).
			WithHint("Failed to begin transaction").
			Mark(ierr.ErrDatabase)
	}

	tx := &Tx{Tx: sqlxTx, ID: types.GenerateUUID()}
	db.logger.Debugw("started transaction", "tx_id", tx.ID)
	return context.WithValue(ctx, txKey{}, tx), tx, nil
}

// CommitTx commits the innermost level: it releases a savepoint or commits
// the top-level transaction.
func (db *DB) CommitTx(ctx context.Context) error {
	tx, ok := GetTx(ctx)
	if !ok {
		return ierr.NewError("no transaction in context").Mark(ierr.ErrSystem)
	}

	if tx.depth > 0 {
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepointName(tx.depth)); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to release savepoint").
				Mark(ierr.ErrDatabase)
		}
		tx.depth--
		return nil
	}

	if err := tx.Commit(); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to commit transaction").
			Mark(ierr.ErrDatabase)
	}
	db.logger.Debugw("committed transaction", "tx_id", tx.ID)
	return nil
}

// RollbackTx rolls back the innermost level.
func (db *DB) RollbackTx(ctx context.Context) error {
	tx, ok := GetTx(ctx)
	if !ok {
		return ierr.NewError("no transaction in context").Mark(ierr.ErrSystem)
	}

	if tx.depth > 0 {
		if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepointName(tx.depth)); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to roll back to savepoint").
				Mark(ierr.ErrDatabase)
		}
		tx.depth--
		return nil
	}

	if err := tx.Rollback(); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to roll back transaction").
			Mark(ierr.ErrDatabase)
	}
	db.logger.Debugw("rolled back transaction", "tx_id", tx.ID)
	return nil
}

// WithTx runs fn in a transaction. An error or panic from fn rolls back.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			db.logger.Errorw("panic in transaction", "tx_id", tx.ID, "panic", r)
			_ = db.RollbackTx(ctx)
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		if rbErr := db.RollbackTx(ctx); rbErr != nil {
			db.logger.Errorw("rollback failed",
				"tx_id", tx.ID,
				"error", rbErr,
				"original_error", err,
			)
		}
		return err
	}

	return db.CommitTx(ctx)
}
