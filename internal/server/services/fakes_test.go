package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"sharegate/internal/common"
	"sharegate/internal/dbx"
	sc "sharegate/internal/server/config"
	"sharegate/internal/server/models"
	"sharegate/internal/server/repositories/credentials"
	"sharegate/internal/server/repositories/files"
	"sharegate/internal/server/repositories/notifications"
	"sharegate/internal/server/repositories/quotas"
	"sharegate/internal/server/repositories/sessions"
	"sharegate/internal/server/repositories/shares"
)

// fakeStore is an in-memory backing store shared by the fake repositories.
// All mutations run under one mutex so the conditional updates keep the same
// atomicity the SQL statements have.
type fakeStore struct {
	mu            sync.Mutex
	shares        map[string]*models.Share
	files         map[string]*models.File
	creds         map[string]*models.DeviceCredential // keyed by share id
	sessions      map[string]*models.Session
	quotas        map[string]*models.Quota
	challenges    map[string]*models.Challenge // keyed by shareID + "|" + subject
	notifications []*models.Notification
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		shares:     map[string]*models.Share{},
		files:      map[string]*models.File{},
		creds:      map[string]*models.DeviceCredential{},
		sessions:   map[string]*models.Session{},
		quotas:     map[string]*models.Quota{},
		challenges: map[string]*models.Challenge{},
	}
}

type fakeShareRepo struct{ store *fakeStore }

func (r *fakeShareRepo) Create(_ context.Context, share *models.Share) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *share
	r.store.shares[share.ID] = &cp
	return nil
}

func (r *fakeShareRepo) Get(_ context.Context, id string) (*models.Share, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	share, ok := r.store.shares[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *share
	return &cp, nil
}

func (r *fakeShareRepo) BindSubject(_ context.Context, id string, subject string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	share, ok := r.store.shares[id]
	if !ok {
		return common.ErrorNotFound
	}
	if share.BoundSubject.Valid && share.BoundSubject.String != subject {
		return common.ErrAlreadyBound
	}
	share.BoundSubject = sql.NullString{String: subject, Valid: true}
	return nil
}

func (r *fakeShareRepo) Revoke(_ context.Context, id string, ownerUID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	share, ok := r.store.shares[id]
	if !ok || share.OwnerUID != ownerUID {
		return common.ErrorNotFound
	}
	share.Valid = false
	return nil
}

type fakeFileRepo struct{ store *fakeStore }

func (r *fakeFileRepo) Create(_ context.Context, file *models.File) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *file
	r.store.files[file.ID] = &cp
	return nil
}

func (r *fakeFileRepo) Get(_ context.Context, id string) (*models.File, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	file, ok := r.store.files[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *file
	return &cp, nil
}

func (r *fakeFileRepo) DecrementRemaining(_ context.Context, id string) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	file, ok := r.store.files[id]
	if !ok || file.RemainingDownloads <= 0 {
		return 0, common.ErrDownloadLimitReached
	}
	file.RemainingDownloads--
	return file.RemainingDownloads, nil
}

func (r *fakeFileRepo) SetRevoked(_ context.Context, id string, ownerUID string, revoked bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	file, ok := r.store.files[id]
	if !ok || file.OwnerUID != ownerUID {
		return common.ErrorNotFound
	}
	file.Revoked = revoked
	return nil
}

func (r *fakeFileRepo) SetMode(_ context.Context, id string, mode models.ShareMode) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	file, ok := r.store.files[id]
	if !ok {
		return common.ErrorNotFound
	}
	file.Mode = mode
	return nil
}

func (r *fakeFileRepo) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.files, id)
	return nil
}

type fakeCredentialRepo struct{ store *fakeStore }

func (r *fakeCredentialRepo) Create(_ context.Context, cred *models.DeviceCredential) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.creds[cred.ShareID]; ok {
		return common.ErrAlreadyBound
	}
	cp := *cred
	r.store.creds[cred.ShareID] = &cp
	return nil
}

func (r *fakeCredentialRepo) GetByShare(_ context.Context, shareID string) (*models.DeviceCredential, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cred, ok := r.store.creds[shareID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *cred
	return &cp, nil
}

func (r *fakeCredentialRepo) AdvanceCounter(_ context.Context, id string, counter uint32) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, cred := range r.store.creds {
		if cred.ID == id {
			if cred.SignatureCounter >= counter {
				return common.ErrReplayDetected
			}
			cred.SignatureCounter = counter
			return nil
		}
	}
	return common.ErrorNotFound
}

func (r *fakeCredentialRepo) PutChallenge(_ context.Context, ch *models.Challenge) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *ch
	r.store.challenges[ch.ShareID+"|"+ch.Subject] = &cp
	return nil
}

func (r *fakeCredentialRepo) TakeChallenge(_ context.Context, shareID string, subject string) (*models.Challenge, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := shareID + "|" + subject
	ch, ok := r.store.challenges[key]
	if !ok || !time.Now().Before(ch.ExpiresAt) {
		return nil, common.ErrorNotFound
	}
	delete(r.store.challenges, key)
	return ch, nil
}

type fakeSessionRepo struct{ store *fakeStore }

func (r *fakeSessionRepo) Create(_ context.Context, session *models.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *session
	r.store.sessions[session.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) Consume(_ context.Context, id string) (*models.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	session, ok := r.store.sessions[id]
	if !ok || !time.Now().Before(session.ExpiresAt) {
		return nil, common.ErrSessionInvalidOrExpired
	}
	delete(r.store.sessions, id)
	return session, nil
}

func (r *fakeSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for id, session := range r.store.sessions {
		if !time.Now().Before(session.ExpiresAt) {
			delete(r.store.sessions, id)
			n++
		}
	}
	return n, nil
}

type fakeQuotaRepo struct{ store *fakeStore }

func (r *fakeQuotaRepo) Ensure(_ context.Context, ownerUID string, ceilingBytes int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.quotas[ownerUID]; !ok {
		r.store.quotas[ownerUID] = &models.Quota{OwnerUID: ownerUID, CeilingBytes: ceilingBytes}
	}
	return nil
}

func (r *fakeQuotaRepo) Get(_ context.Context, ownerUID string) (*models.Quota, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	quota, ok := r.store.quotas[ownerUID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *quota
	return &cp, nil
}

func (r *fakeQuotaRepo) Reserve(_ context.Context, ownerUID string, n int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	quota, ok := r.store.quotas[ownerUID]
	if !ok || quota.UsedBytes+n > quota.CeilingBytes {
		return common.ErrQuotaExceeded
	}
	quota.UsedBytes += n
	return nil
}

func (r *fakeQuotaRepo) Release(_ context.Context, ownerUID string, n int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	quota, ok := r.store.quotas[ownerUID]
	if !ok {
		return nil
	}
	quota.UsedBytes -= n
	if quota.UsedBytes < 0 {
		quota.UsedBytes = 0
	}
	return nil
}

type fakeNotificationRepo struct{ store *fakeStore }

func (r *fakeNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *n
	r.store.notifications = append(r.store.notifications, &cp)
	return nil
}

// fakeRepoManager hands out fake repositories over one shared store. The DBTX
// argument is ignored; transactional paths still go through dbx.WithTx against
// whatever *sql.DB the test supplies.
type fakeRepoManager struct{ store *fakeStore }

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{store: newFakeStore()}
}

func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

func (m *fakeRepoManager) Shares(db dbx.DBTX) shares.Repository {
	return &fakeShareRepo{store: m.store}
}

func (m *fakeRepoManager) Files(db dbx.DBTX) files.Repository {
	return &fakeFileRepo{store: m.store}
}

func (m *fakeRepoManager) Credentials(db dbx.DBTX) credentials.Repository {
	return &fakeCredentialRepo{store: m.store}
}

func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessions.Repository {
	return &fakeSessionRepo{store: m.store}
}

func (m *fakeRepoManager) Quotas(db dbx.DBTX) quotas.Repository {
	return &fakeQuotaRepo{store: m.store}
}

func (m *fakeRepoManager) Notifications(db dbx.DBTX) notifications.Repository {
	return &fakeNotificationRepo{store: m.store}
}

func testConfig() *sc.Config {
	cfg := &sc.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	return cfg
}
