package quotas

import (
	"context"

	"sharegate/internal/server/models"
)

// Repository tracks per-owner consumed bytes against a ceiling.
type Repository interface {
	// Ensure creates the owner's quota row at the given ceiling if it does
	// not exist yet.
	Ensure(ctx context.Context, ownerUID string, ceilingBytes int64) error
	Get(ctx context.Context, ownerUID string) (*models.Quota, error)
	// Reserve adds n bytes in a single conditional update; if the addition
	// would cross the ceiling nothing changes and ErrQuotaExceeded is
	// returned. Concurrent reservations cannot jointly overshoot.
	Reserve(ctx context.Context, ownerUID string, n int64) error
	// Release subtracts n bytes, flooring at zero, to compensate an upload
	// that was admitted but never completed.
	Release(ctx context.Context, ownerUID string, n int64) error
}
