package files

import (
	"context"

	"sharegate/internal/server/models"
)

// Repository stores file metadata and owns the shared download counter.
type Repository interface {
	Create(ctx context.Context, file *models.File) error
	Get(ctx context.Context, id string) (*models.File, error)
	// DecrementRemaining atomically decrements remaining_downloads while it
	// is still positive and returns the post-decrement value. An exhausted
	// counter yields ErrDownloadLimitReached.
	DecrementRemaining(ctx context.Context, id string) (int, error)
	SetRevoked(ctx context.Context, id string, ownerUID string, revoked bool) error
	SetMode(ctx context.Context, id string, mode models.ShareMode) error
	Delete(ctx context.Context, id string) error
}
