package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"sessionbook/backend/internal/domain"
)

type DirectoryRepo struct {
	db *bun.DB
}

func NewDirectoryRepo(db *bun.DB) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

func (r *DirectoryRepo) GetProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
	var p domain.Provider
	err := r.db.NewSelect().
		Model(&p).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Provider{}, notFoundIfNoRows(err)
	}
	return p, nil
}

func (r *DirectoryRepo) GetClient(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	var c domain.Client
	err := r.db.NewSelect().
		Model(&c).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Client{}, notFoundIfNoRows(err)
	}
	return c, nil
}
