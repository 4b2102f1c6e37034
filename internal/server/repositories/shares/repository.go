package shares

import (
	"context"

	"sharegate/internal/server/models"
)

// Repository stores share rows and resolves the account-mode binding race.
type Repository interface {
	Create(ctx context.Context, share *models.Share) error
	Get(ctx context.Context, id string) (*models.Share, error)
	// BindSubject performs the first-claim compare-and-set: the bound subject
	// moves null -> subject exactly once. Losers get ErrAlreadyBound.
	BindSubject(ctx context.Context, id string, subject string) error
	Revoke(ctx context.Context, id string, ownerUID string) error
}
