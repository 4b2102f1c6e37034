package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	sc "sharegate/internal/server/config"
	"sharegate/internal/server/models"
	"sharegate/internal/server/repositories/repomanager"
)

// UploadService admits new files: it reserves quota, records the metadata
// row, and hands the owner a presigned PUT locator for the bytes.
type UploadService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	quotas      *QuotaService
	downloads   *DownloadService
	config      *sc.Config
}

// NewUploadService constructs an UploadService using repositories, the quota
// accountant, the presigning service, and server config.
func NewUploadService(db *sql.DB, m repomanager.RepositoryManager, quotas *QuotaService, downloads *DownloadService, cfg *sc.Config) *UploadService {
	return &UploadService{
		db:          db,
		repomanager: m,
		quotas:      quotas,
		downloads:   downloads,
		config:      cfg,
	}
}

// InitUpload reserves sizeBytes against the owner's quota before anything
// else; a crossed ceiling aborts with ErrQuotaExceeded and no side effects.
// On any failure after the reservation the bytes are released again.
func (s *UploadService) InitUpload(ctx context.Context, ownerUID string, displayName string, sizeBytes int64, contentType string) (*models.File, *models.UploadTask, error) {
	if sizeBytes <= 0 {
		return nil, nil, fmt.Errorf("invalid size: %d", sizeBytes)
	}

	if err := s.quotas.CheckAndReserve(ctx, ownerUID, sizeBytes); err != nil {
		return nil, nil, err
	}

	file, task, err := s.createFile(ctx, ownerUID, displayName, sizeBytes, contentType)
	if err != nil {
		if relErr := s.quotas.Release(ctx, ownerUID, sizeBytes); relErr != nil {
			return nil, nil, fmt.Errorf("error releasing quota after failed upload init: %v (cause: %w)", relErr, err)
		}
		return nil, nil, err
	}
	return file, task, nil
}

func (s *UploadService) createFile(ctx context.Context, ownerUID string, displayName string, sizeBytes int64, contentType string) (*models.File, *models.UploadTask, error) {
	storageKey, url, err := s.downloads.GetPresignedPutUrl(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("error presigning upload: %w", err)
	}

	file := &models.File{
		ID:                 uuid.NewString(),
		OwnerUID:           ownerUID,
		DisplayName:        displayName,
		SizeBytes:          sizeBytes,
		ContentType:        contentType,
		StorageKey:         storageKey,
		ExpiresAt:          time.Now().Add(s.config.DefaultShareValidity),
		MaxDownloads:       s.config.DefaultMaxDownloads,
		RemainingDownloads: s.config.DefaultMaxDownloads,
		Mode:               models.ShareModePublic,
	}

	if err := s.repomanager.Files(s.db).Create(ctx, file); err != nil {
		return nil, nil, fmt.Errorf("error creating file: %w", err)
	}

	return file, &models.UploadTask{FileID: file.ID, URL: url}, nil
}
