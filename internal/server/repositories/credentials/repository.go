package credentials

import (
	"context"

	"sharegate/internal/server/models"
)

// Repository stores device credentials and pending ceremony challenges.
type Repository interface {
	// Create registers a credential under the first-bind-wins discipline:
	// a share that already holds a credential rejects the insert with
	// ErrAlreadyBound, even when two registrations race.
	Create(ctx context.Context, cred *models.DeviceCredential) error
	GetByShare(ctx context.Context, shareID string) (*models.DeviceCredential, error)
	// AdvanceCounter persists a new signature counter only if it strictly
	// increases; a stalled or regressed counter yields ErrReplayDetected.
	AdvanceCounter(ctx context.Context, id string, counter uint32) error

	PutChallenge(ctx context.Context, ch *models.Challenge) error
	// TakeChallenge atomically removes and returns the pending, unexpired
	// challenge for (shareID, subject), or common.ErrorNotFound.
	TakeChallenge(ctx context.Context, shareID string, subject string) (*models.Challenge, error)
}
