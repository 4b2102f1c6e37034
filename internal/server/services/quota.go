package services

import (
	"context"
	"database/sql"
	"fmt"

	sc "sharegate/internal/server/config"
	"sharegate/internal/server/models"
	"sharegate/internal/server/repositories/repomanager"
)

// QuotaService enforces the per-owner storage ceiling consulted at upload
// time. The reserve is a single conditional statement in the store, so
// concurrent uploads by one owner cannot jointly overshoot.
type QuotaService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	defaultQuota int64
}

// NewQuotaService constructs a QuotaService using repositories and server
// config.
func NewQuotaService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config) *QuotaService {
	return &QuotaService{
		db:           db,
		repomanager:  m,
		defaultQuota: cfg.DefaultQuotaBytes,
	}
}

// CheckAndReserve admits additionalBytes against the owner's ceiling,
// creating the quota row at the default ceiling on first contact. Returns
// ErrQuotaExceeded without mutating anything when the ceiling would be
// crossed.
func (s *QuotaService) CheckAndReserve(ctx context.Context, ownerUID string, additionalBytes int64) error {
	repo := s.repomanager.Quotas(s.db)

	if err := repo.Ensure(ctx, ownerUID, s.defaultQuota); err != nil {
		return fmt.Errorf("error ensuring quota row: %w", err)
	}

	return repo.Reserve(ctx, ownerUID, additionalBytes)
}

// Release compensates a reservation whose upload never completed.
func (s *QuotaService) Release(ctx context.Context, ownerUID string, bytes int64) error {
	repo := s.repomanager.Quotas(s.db)
	return repo.Release(ctx, ownerUID, bytes)
}

// Usage reports the owner's current consumption and ceiling.
func (s *QuotaService) Usage(ctx context.Context, ownerUID string) (*models.Quota, error) {
	repo := s.repomanager.Quotas(s.db)

	if err := repo.Ensure(ctx, ownerUID, s.defaultQuota); err != nil {
		return nil, fmt.Errorf("error ensuring quota row: %w", err)
	}

	return repo.Get(ctx, ownerUID)
}
