package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type NotificationKind string

const (
	NotificationRescheduleRequest NotificationKind = "reschedule_request"
)

// Notification is an in-app message addressed to a provider.
type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID         uuid.UUID        `bun:"id,pk,type:uuid"`
	ProviderID uuid.UUID        `bun:"psychologist_id,notnull,type:uuid"`
	ClientID   *uuid.UUID       `bun:"client_id,type:uuid"`
	BookingID  *uuid.UUID       `bun:"session_id,type:uuid"`
	Kind       NotificationKind `bun:"type,notnull"`
	Title      string           `bun:"title,notnull"`
	Message    string           `bun:"message,notnull"`
	IsRead     bool             `bun:"is_read,notnull"`
	ReadAt     *time.Time       `bun:"read_at"`
	CreatedAt  time.Time        `bun:"created_at,notnull"`
	UpdatedAt  time.Time        `bun:"updated_at,notnull"`
}

func (n *Notification) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if n.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			n.ID = id
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		if n.UpdatedAt.IsZero() {
			n.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		n.UpdatedAt = now
	}
	return nil
}
