package sessions

import (
	"context"

	"sharegate/internal/server/models"
)

// Repository stores single-use verification sessions.
type Repository interface {
	Create(ctx context.Context, session *models.Session) error
	// Consume atomically claims and deletes an unexpired session. A second
	// presentation of the same id yields ErrSessionInvalidOrExpired.
	Consume(ctx context.Context, id string) (*models.Session, error)
	DeleteExpired(ctx context.Context) (int64, error)
}
