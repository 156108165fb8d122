package postgres

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"sessionbook/backend/internal/store"
)

const (
	slotHolderConstraint        = "sessions_slot_holder_key"
	pendingRescheduleConstraint = "reschedule_requests_pending_key"
)

// mapWriteError translates constraint violations into store errors. Anything
// it does not recognize is returned unchanged.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		switch pgErr.ConstraintName {
		case slotHolderConstraint, pendingRescheduleConstraint:
			return store.ErrConflict
		}
	case "23503":
		return store.ErrNotFound
	}
	return err
}

func notFoundIfNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
