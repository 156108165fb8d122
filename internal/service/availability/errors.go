package availability

import (
	"errors"
	"fmt"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/store"
)

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

func lookupError(what string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	return storageError("get "+what, err)
}
