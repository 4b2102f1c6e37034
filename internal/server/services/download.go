package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"sharegate/internal/common"
	"sharegate/internal/dbx"
	sc "sharegate/internal/server/config"
	"sharegate/internal/server/models"
	"sharegate/internal/server/repositories/repomanager"
)

// Seams for the AWS SDK so tests can stub presigning without a live backend.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Grant is the outcome of a successful download-grant call. Remaining is the
// post-decrement count so callers can re-check state before resubmitting
// after an ambiguous failure instead of blindly retrying the side-effecting
// call.
type Grant struct {
	URL       string
	Remaining int
}

// DownloadService is the final, atomic gate in front of the object store.
// Every precondition is re-validated here regardless of what the client
// claims to have verified earlier.
type DownloadService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sessions    *SessionService
	config      *sc.Config
}

// NewDownloadService constructs a DownloadService using repositories, the
// session issuer, and server config.
func NewDownloadService(db *sql.DB, m repomanager.RepositoryManager, sessions *SessionService, cfg *sc.Config) *DownloadService {
	return &DownloadService{
		db:          db,
		repomanager: m,
		sessions:    sessions,
		config:      cfg,
	}
}

// Issue runs the grant precondition chain in order; the first failure aborts
// the whole call:
//
//  1. share and file not revoked
//  2. share not past its expiry
//  3. download budget not exhausted
//  4. mode-specific re-validation (consume session / match bound subject /
//     public)
//  5. transactional decrement of the shared counter, together with the
//     delivery notification for authenticated callers
//  6. short-lived presigned locator for the object store
//
// Two concurrent calls at a remaining count of 1 cannot both pass step 5;
// the loser surfaces ErrDownloadLimitReached.
func (s *DownloadService) Issue(ctx context.Context, shareID string, sessionToken string, subject string, notifyEmail string) (*Grant, error) {
	share, err := s.repomanager.Shares(s.db).Get(ctx, shareID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidOrExpiredLink
		}
		return nil, fmt.Errorf("error loading share: %w", err)
	}
	if !share.Valid {
		return nil, common.ErrInvalidOrExpiredLink
	}

	file, err := s.repomanager.Files(s.db).Get(ctx, share.FileID)
	if err != nil {
		return nil, fmt.Errorf("error loading file: %w", err)
	}
	if file.Revoked {
		return nil, common.ErrInvalidOrExpiredLink
	}
	if !time.Now().Before(file.ExpiresAt) {
		return nil, common.ErrShareExpired
	}
	if file.RemainingDownloads <= 0 {
		return nil, common.ErrDownloadLimitReached
	}

	if err := s.revalidateMode(ctx, share, sessionToken, subject); err != nil {
		return nil, err
	}

	var remaining int
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var decErr error
		remaining, decErr = s.repomanager.Files(tx).DecrementRemaining(ctx, file.ID)
		if decErr != nil {
			return decErr
		}

		if notifyEmail != "" {
			n := &models.Notification{
				ID:      uuid.NewString(),
				Type:    models.NotificationTypeDownload,
				ToEmail: notifyEmail,
				ShareID: share.ID,
				FileID:  file.ID,
			}
			if err := s.repomanager.Notifications(tx).Create(ctx, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrDownloadLimitReached) {
			return nil, err
		}
		return nil, fmt.Errorf("error granting download: %w", err)
	}

	url, err := s.GetPresignedGetUrl(ctx, file.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("error presigning locator: %w", err)
	}

	return &Grant{URL: url, Remaining: remaining}, nil
}

// revalidateMode is the per-mode gate re-run on every grant call. Pin and
// device prove possession via a consumable session; account re-checks
// identity against the durable binding; public needs nothing.
func (s *DownloadService) revalidateMode(ctx context.Context, share *models.Share, sessionToken string, subject string) error {
	switch share.Mode {
	case models.ShareModePublic:
		return nil
	case models.ShareModePin, models.ShareModeDevice:
		if sessionToken == "" {
			return common.ErrSessionInvalidOrExpired
		}
		_, err := s.sessions.Consume(ctx, sessionToken, share.ID)
		return err
	case models.ShareModeAccount:
		if subject == "" || !share.BoundSubject.Valid {
			return common.ErrorUnauthorized
		}
		if share.BoundSubject.String != subject {
			return common.ErrAlreadyBound
		}
		return nil
	default:
		return common.ErrorInternal
	}
}

func (s *DownloadService) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

// GetPresignedGetUrl returns a short-lived signed locator for the stored
// object. The locator is the only thing recipients ever see of the store.
func (s *DownloadService) GetPresignedGetUrl(ctx context.Context, key string) (string, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.LocatorValidityDuration))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}

// GetPresignedPutUrl returns a signed upload locator for a fresh storage key.
func (s *DownloadService) GetPresignedPutUrl(ctx context.Context) (string, string, error) {
	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key := randomStorageKey()

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.LocatorValidityDuration))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

func randomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("shares/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}
