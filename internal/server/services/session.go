// Package services contains server-side business logic for the share
// verification and download-issuance protocol.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sharegate/internal/common"
	"sharegate/internal/server/auth"
	sc "sharegate/internal/server/config"
	"sharegate/internal/server/models"
	"sharegate/internal/server/repositories/repomanager"
)

// SessionService mints and consumes the single-use proof-of-verification
// sessions required by pin and device modes. Public and account modes are
// stateless-verified and never touch this service.
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	jwtSecret   []byte
	validity    time.Duration
}

// NewSessionService constructs a SessionService using repositories and
// server config.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config) *SessionService {
	return &SessionService{
		db:          db,
		repomanager: m,
		jwtSecret:   []byte(cfg.SecretKey),
		validity:    cfg.SessionValidityDuration,
	}
}

// Issue creates a session row scoped to (shareID, subject) and returns the
// signed token the client will present to the download grant call.
func (s *SessionService) Issue(ctx context.Context, shareID string, subject string) (string, error) {
	session := &models.Session{
		ID:        uuid.NewString(),
		ShareID:   shareID,
		Subject:   subject,
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(s.validity),
	}

	repo := s.repomanager.Sessions(s.db)
	if err := repo.Create(ctx, session); err != nil {
		return "", fmt.Errorf("error creating session: %w", err)
	}

	token, err := auth.GenerateSessionToken(session.ID, shareID, subject, s.jwtSecret, s.validity)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}

// Consume validates the token signature, claims the backing row, and checks
// the share binding. The row deletion is what enforces single use: the
// second presentation of the same token finds no row and fails with
// ErrSessionInvalidOrExpired.
func (s *SessionService) Consume(ctx context.Context, tokenString string, shareID string) (*models.Session, error) {
	claims, err := auth.ParseSessionToken(tokenString, s.jwtSecret)
	if err != nil {
		return nil, err
	}
	if claims.ShareID != shareID {
		return nil, common.ErrSessionInvalidOrExpired
	}

	repo := s.repomanager.Sessions(s.db)
	session, err := repo.Consume(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if session.ShareID != shareID {
		return nil, common.ErrSessionInvalidOrExpired
	}
	return session, nil
}
