package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/store"
)

type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

type bookingTx struct {
	tx bun.Tx
}

func (r *BookingRepo) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := r.db.NewSelect().
		Model(&b).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Booking{}, notFoundIfNoRows(err)
	}
	return b, nil
}

func (r *BookingRepo) FindSlotHolder(ctx context.Context, key domain.SlotKey) (domain.Booking, error) {
	var b domain.Booking
	err := r.db.NewSelect().
		Model(&b).
		Where("psychologist_id = ?", key.ProviderID).
		Where("scheduled_date = ?", key.Date).
		Where("scheduled_minute = ?", key.Slot).
		Where("status IN (?)", bun.In(domain.HoldingStatuses)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Booking{}, notFoundIfNoRows(err)
	}
	return b, nil
}

func (r *BookingRepo) ListHeld(ctx context.Context, providerID uuid.UUID, from, to domain.Date) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.NewSelect().
		Model(&rows).
		Where("psychologist_id = ?", providerID).
		Where("scheduled_date >= ?", from).
		Where("scheduled_date <= ?", to).
		Where("status IN (?)", bun.In(domain.HoldingStatuses)).
		OrderExpr("scheduled_date ASC, scheduled_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BookingRepo) ListBookings(ctx context.Context, f store.BookingFilter) ([]domain.Booking, int, error) {
	var rows []domain.Booking
	q := r.db.NewSelect().
		Model(&rows).
		OrderExpr("scheduled_date DESC, scheduled_minute DESC").
		Limit(f.Limit).
		Offset(f.Offset)
	if f.ClientID != uuid.Nil {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.ProviderID != uuid.Nil {
		q = q.Where("psychologist_id = ?", f.ProviderID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *BookingRepo) GetClientPackage(ctx context.Context, id uuid.UUID) (domain.ClientPackage, error) {
	var p domain.ClientPackage
	err := r.db.NewSelect().
		Model(&p).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.ClientPackage{}, notFoundIfNoRows(err)
	}
	return p, nil
}

func (r *BookingRepo) GetRescheduleRequest(ctx context.Context, id uuid.UUID) (domain.RescheduleRequest, error) {
	var req domain.RescheduleRequest
	err := r.db.NewSelect().
		Model(&req).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.RescheduleRequest{}, notFoundIfNoRows(err)
	}
	return req, nil
}

func (r *BookingRepo) SetMeeting(ctx context.Context, bookingID uuid.UUID, meeting domain.Meeting) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Booking)(nil)).
		Set("meeting_url = ?", meeting.URL).
		Set("external_event_id = ?", meeting.ExternalEventID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", bookingID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *BookingRepo) InBookingTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, bookingTx{tx: tx})
	})
}

// InsertBooking relies on sessions_slot_holder_key, a partial unique index
// over the holding statuses, to reject a second claim on the same slot.
func (r bookingTx) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, bool, error) {
	m := b

	res, err := r.tx.NewInsert().
		Model(&m).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return domain.Booking{}, false, mapWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Booking{}, false, err
	}
	if affected > 0 {
		return m, true, nil
	}

	var existing domain.Booking
	err = r.tx.NewSelect().
		Model(&existing).
		Where("id = ?", m.ID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Booking{}, false, err
	}
	if !existing.SameRequest(b) {
		return domain.Booking{}, false, store.ErrIdempotencyConflict
	}
	return existing, false, nil
}

func (r bookingTx) LockBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := r.tx.NewSelect().
		Model(&b).
		Where("id = ?", id).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return domain.Booking{}, notFoundIfNoRows(err)
	}
	return b, nil
}

func (r bookingTx) UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := b

	res, err := r.tx.NewUpdate().
		Model(&m).
		Column("scheduled_date", "scheduled_minute", "status", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Booking{}, mapWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Booking{}, err
	}
	if affected == 0 {
		return domain.Booking{}, store.ErrNotFound
	}
	return m, nil
}

func (r bookingTx) ConsumePackageSession(ctx context.Context, packageID, clientID, providerID uuid.UUID) error {
	res, err := r.tx.NewUpdate().
		Model((*domain.ClientPackage)(nil)).
		Set("remaining_sessions = remaining_sessions - 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", packageID).
		Where("client_id = ?", clientID).
		Where("psychologist_id = ?", providerID).
		Where("remaining_sessions > 0").
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	exists, err := r.tx.NewSelect().
		Model((*domain.ClientPackage)(nil)).
		Where("id = ?", packageID).
		Where("client_id = ?", clientID).
		Where("psychologist_id = ?", providerID).
		Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrPackageExhausted
}

func (r bookingTx) ReleasePackageSession(ctx context.Context, packageID uuid.UUID) error {
	_, err := r.tx.NewUpdate().
		Model((*domain.ClientPackage)(nil)).
		Set("remaining_sessions = LEAST(remaining_sessions + 1, total_sessions)").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", packageID).
		Exec(ctx)
	return err
}

func (r bookingTx) InsertRescheduleRequest(ctx context.Context, req domain.RescheduleRequest) (domain.RescheduleRequest, error) {
	m := req

	_, err := r.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		return domain.RescheduleRequest{}, mapWriteError(err)
	}
	return m, nil
}

func (r bookingTx) LockRescheduleRequest(ctx context.Context, id uuid.UUID) (domain.RescheduleRequest, error) {
	var req domain.RescheduleRequest
	err := r.tx.NewSelect().
		Model(&req).
		Where("id = ?", id).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return domain.RescheduleRequest{}, notFoundIfNoRows(err)
	}
	return req, nil
}

func (r bookingTx) UpdateRescheduleRequest(ctx context.Context, req domain.RescheduleRequest) (domain.RescheduleRequest, error) {
	m := req

	res, err := r.tx.NewUpdate().
		Model(&m).
		Column("status", "decision_note", "decided_by", "decided_at", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.RescheduleRequest{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.RescheduleRequest{}, err
	}
	if affected == 0 {
		return domain.RescheduleRequest{}, store.ErrNotFound
	}
	return m, nil
}

func (r bookingTx) InsertNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	m := n

	_, err := r.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		return domain.Notification{}, mapWriteError(err)
	}
	return m, nil
}
