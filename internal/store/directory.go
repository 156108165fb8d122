package store

import (
	"context"

	"github.com/google/uuid"

	"sessionbook/backend/internal/domain"
)

type Directory interface {
	GetProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error)
	GetClient(ctx context.Context, id uuid.UUID) (domain.Client, error)
}
