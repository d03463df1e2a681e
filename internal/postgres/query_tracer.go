package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/flexprice/billingcore/internal/logger"
)

// queryTrace logs one statement with its duration.
type queryTrace struct {
	logger *logger.Logger
	query  string
	start  time.Time
	txID   string
}

func startTrace(log *logger.Logger, query, txID string) *queryTrace {
	return &queryTrace{logger: log, query: query, start: time.Now(), txID: txID}
}

func (qt *queryTrace) done(err error) {
	fields := []interface{}{
		"duration_ms", time.Since(qt.start).Milliseconds(),
		"query", qt.query,
	}
	if qt.txID != "" {
		fields = append(fields, "tx_id", qt.txID)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		fields = append(fields, "error", err.Error())
		qt.logger.Errorw("database query failed", fields...)
		return
	}
	qt.logger.Debugw("database query completed", fields...)
}

// TracedQuerier logs every statement run through it. Arguments are not
// logged; they may carry customer data.
type TracedQuerier struct {
	Querier
	logger *logger.Logger
	txID   string
}

func NewTracedQuerier(q Querier, log *logger.Logger, txID string) *TracedQuerier {
	return &TracedQuerier{Querier: q, logger: log, txID: txID}
}

func (tq *TracedQuerier) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	t := startTrace(tq.logger, query, tq.txID)
	result, err := tq.Querier.ExecContext(ctx, query, args...)
	t.done(err)
	return result, err
}

func (tq *TracedQuerier) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	t := startTrace(tq.logger, query, tq.txID)
	result, err := tq.Querier.NamedExecContext(ctx, query, arg)
	t.done(err)
	return result, err
}

func (tq *TracedQuerier) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	t := startTrace(tq.logger, query, tq.txID)
	err := tq.Querier.GetContext(ctx, dest, query, args...)
	t.done(err)
	return err
}

func (tq *TracedQuerier) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	t := startTrace(tq.logger, query, tq.txID)
	err := tq.Querier.SelectContext(ctx, dest, query, args...)
	t.done(err)
	return err
}
