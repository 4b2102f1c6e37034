package notifications

import (
	"context"

	"sharegate/internal/server/models"
)

// Repository records delivery notifications for granted downloads.
type Repository interface {
	Create(ctx context.Context, n *models.Notification) error
}
