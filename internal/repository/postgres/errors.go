package postgres

import (
	"database/sql"
	"errors"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	pqSerializationFailure = "40001"
)

// dbError classifies a driver error into the internal error taxonomy.
func dbError(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		details := map[string]any{
			"operation":  op,
			"constraint": pqErr.Constraint,
			"table":      pqErr.Table,
		}
		switch pqErr.Code {
		case pqUniqueViolation:
			return ierr.WithError(err).
				WithHint("A record with the same identifier already exists").
				WithReportableDetails(details).
				Mark(ierr.ErrAlreadyExists)
		case pqForeignKeyViolation:
			return ierr.WithError(err).
				WithHint("A referenced record does not exist").
				WithReportableDetails(details).
				Mark(ierr.ErrValidation)
		case pqSerializationFailure:
			return ierr.WithError(err).
				WithHint("The record was changed concurrently, please retry").
				WithReportableDetails(details).
				Mark(ierr.ErrConflict)
		}
	}
	return ierr.WithError(err).
		WithHintf("Database %s failed", op).
		Mark(ierr.ErrDatabase)
}

// getError turns sql.ErrNoRows into a not found error for entity id.
func getError(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ierr.NewErrorf("%s %s not found", entity, id).
			WithHintf("%s not found", entity).
			WithReportableDetails(map[string]any{
				"id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return dbError(err, "get "+entity)
}

// requireRow reports not found when an UPDATE or DELETE touched nothing.
func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err, "rows affected")
	}
	if n == 0 {
		return getError(sql.ErrNoRows, entity, id)
	}
	return nil
}
