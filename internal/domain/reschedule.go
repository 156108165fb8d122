package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RescheduleRequestStatus string

const (
	ReschedulePending  RescheduleRequestStatus = "pending"
	RescheduleApproved RescheduleRequestStatus = "approved"
	RescheduleRejected RescheduleRequestStatus = "rejected"
)

// RescheduleRequest is a client's proposal to move a booking, waiting on the
// provider's decision.
type RescheduleRequest struct {
	bun.BaseModel `bun:"table:reschedule_requests,alias:rr"`

	ID             uuid.UUID               `bun:"id,pk,type:uuid"`
	BookingID      uuid.UUID               `bun:"session_id,notnull,type:uuid"`
	RequestedBy    uuid.UUID               `bun:"requested_by,notnull,type:uuid"`
	ProposedDate   Date                    `bun:"proposed_date,notnull,type:date"`
	ProposedMinute TimeOfDay               `bun:"proposed_minute,notnull"`
	Reason         string                  `bun:"reason"`
	Status         RescheduleRequestStatus `bun:"status,notnull"`
	DecisionNote   *string                 `bun:"decision_note"`
	DecidedBy      *uuid.UUID              `bun:"decided_by,type:uuid"`
	DecidedAt      *time.Time              `bun:"decided_at"`
	CreatedAt      time.Time               `bun:"created_at,notnull"`
	UpdatedAt      time.Time               `bun:"updated_at,notnull"`
}

func (r *RescheduleRequest) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

// Target is the slot the booking moves to if the request is approved.
func (r RescheduleRequest) Target(providerID uuid.UUID) SlotKey {
	return SlotKey{ProviderID: providerID, Date: r.ProposedDate, Slot: r.ProposedMinute}
}

// Decide records the provider's decision on a pending request.
func (r *RescheduleRequest) Decide(status RescheduleRequestStatus, by uuid.UUID, note string, at time.Time) {
	r.Status = status
	r.DecidedBy = &by
	if note != "" {
		r.DecisionNote = &note
	}
	at = at.UTC()
	r.DecidedAt = &at
}
