package api

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sharegate/internal/common"
	"sharegate/internal/server/models"
)

// kindOf maps sentinel errors to the stable machine-readable kinds clients
// switch on. The accompanying message is presentation; the kind is contract.
func kindOf(err error) (string, int) {
	switch {
	case errors.Is(err, common.ErrInvalidOrExpiredLink):
		return "InvalidOrExpiredLink", http.StatusNotFound
	case errors.Is(err, common.ErrAlreadyBound):
		return "AlreadyBound", http.StatusConflict
	case errors.Is(err, common.ErrPinMismatch):
		return "PinMismatch", http.StatusForbidden
	case errors.Is(err, common.ErrWebAuthnUnsupported):
		return "WebAuthnUnsupported", http.StatusBadRequest
	case errors.Is(err, common.ErrNoPlatformAuthenticator):
		return "NoPlatformAuthenticator", http.StatusBadRequest
	case errors.Is(err, common.ErrReplayDetected):
		return "ReplayDetected", http.StatusConflict
	case errors.Is(err, common.ErrSessionInvalidOrExpired):
		return "SessionInvalidOrExpired", http.StatusUnauthorized
	case errors.Is(err, common.ErrDownloadLimitReached):
		return "DownloadLimitReached", http.StatusGone
	case errors.Is(err, common.ErrShareExpired):
		return "ShareExpired", http.StatusGone
	case errors.Is(err, common.ErrQuotaExceeded):
		return "QuotaExceeded", http.StatusRequestEntityTooLarge
	case errors.Is(err, common.ErrTransientStore):
		return "TransientStoreError", http.StatusServiceUnavailable
	case errors.Is(err, common.ErrorUnauthorized):
		return "Unauthorized", http.StatusUnauthorized
	default:
		return "Internal", http.StatusInternalServerError
	}
}

func errorBody(err error) gin.H {
	kind, _ := kindOf(err)
	return gin.H{"error": err.Error(), "kind": kind}
}

func (s *Server) fail(c *gin.Context, err error) {
	kind, status := kindOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "err", err.Error())
		// do not leak internals
		c.JSON(status, gin.H{"error": "internal error", "kind": kind})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}

type shareRef struct {
	ShareID string `json:"shareId" binding:"required"`
}

type shareView struct {
	ShareID      string `json:"shareId"`
	Mode         string `json:"mode"`
	BoundSubject string `json:"boundSubject,omitempty"`
}

type fileView struct {
	FileID             string `json:"fileId"`
	DisplayName        string `json:"displayName"`
	SizeBytes          int64  `json:"sizeBytes"`
	ContentType        string `json:"contentType"`
	ExpiresAt          int64  `json:"expiresAt"`
	MaxDownloads       int    `json:"maxDownloads"`
	RemainingDownloads int    `json:"remainingDownloads"`
}

func (s *Server) handleGetInfo(c *gin.Context) {
	var req shareRef
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "BadRequest"})
		return
	}

	info, err := s.shares.GetInfo(c.Request.Context(), req.ShareID)
	if err != nil {
		s.fail(c, err)
		return
	}

	sv := shareView{ShareID: info.Share.ID, Mode: string(info.Share.Mode)}
	if info.Share.BoundSubject.Valid {
		sv.BoundSubject = info.Share.BoundSubject.String
	}
	c.JSON(http.StatusOK, gin.H{
		"share": sv,
		"file": fileView{
			FileID:             info.File.ID,
			DisplayName:        info.File.DisplayName,
			SizeBytes:          info.File.SizeBytes,
			ContentType:        info.File.ContentType,
			ExpiresAt:          info.File.ExpiresAt.Unix(),
			MaxDownloads:       info.File.MaxDownloads,
			RemainingDownloads: info.File.RemainingDownloads,
		},
	})
}

type createShareRequest struct {
	FileID string `json:"fileId" binding:"required"`
	Mode   string `json:"mode" binding:"required"`
	Pin    string `json:"pin"`
}

func (s *Server) handleCreateShare(c *gin.Context) {
	var req createShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "BadRequest"})
		return
	}

	share, err := s.shares.Create(c.Request.Context(), subjectFrom(c), req.FileID, models.ShareMode(req.Mode), req.Pin)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shareId": share.ID})
}

func (s *Server) handleRevokeShare(c *gin.Context) {
	var req shareRef
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "BadRequest"})
		return
	}

	if err := s.shares.Revoke(c.Request.Context(), subjectFrom(c), req.ShareID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleBindAccount(c *gin.Context) {
	var req shareRef
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "BadRequest"})
		return
	}

	if err := s.shares.BindAccount(c.Request.Context(), req.ShareID, subjectFrom(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type verifyPinRequest struct {
	ShareID string `json:"shareId" binding:"required"`
	Pin     string `json:"pin" binding:"required"`
}

func (s *Server) handleVerifyPin(c *gin.Context) {
	var req verifyPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "BadRequest"})
		return
	}

	token, err := s.shares.VerifyPin(c.Request.Context(), req.ShareID, req.Pin)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionToken": token})
}

func (s *Server) handleRegisterBegin(c *gin.Context) {
	var req shareRef
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "BadRequest"})
		return
	}

	challenge, err := s.shares.DeviceBeginRegister(c.Request.Context(), req.ShareID, subjectFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"challenge": base64.RawURLEncoding.EncodeToString(challenge)})
}

type registerFinishRequest struct {
	ShareID     string `json:"shareId" binding:"required"`
	Label       string `json:"label" binding:"required"`
	Attestation string `json:"attestation" binding:"required"` // base64
}

func (s *Server) handleRegisterFinish(c *gin.Context) {
	var req registerFinishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "BadRequest"})
		return
	}

	attestation, err := base64.StdEncoding.DecodeString(req.Attestation)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "BadRequest"})
		return
	}

	token, err := s.shares.DeviceFinishRegister(c.Request.Context(), req.ShareID, subjectFrom(c), req.Label, attestation)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionToken": token})
}

func (s *Server) handleVerifyBegin(c *gin.Context) {
	var req shareRef
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "BadRequest"})
		return
	}

	challenge, err := s.shares.DeviceBeginVerify(c.Request.Context(), req.ShareID, subjectFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"challenge": base64.RawURLEncoding.EncodeToString(challenge)})
}

type verifyFinishRequest struct {
	ShareID   string `json:"shareId" binding:"required"`
	Assertion string `json:"assertion" binding:"required"` // base64
}

func (s *Server) handleVerifyFinish(c *gin.Context) {
	var req verifyFinishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "BadRequest"})
		return
	}

	assertion, err := base64.StdEncoding.DecodeString(req.Assertion)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "BadRequest"})
		return
	}

	token, err := s.shares.DeviceFinishVerify(c.Request.Context(), req.ShareID, subjectFrom(c), assertion)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionToken": token})
}

type issueURLRequest struct {
	ShareID      string `json:"shareId" binding:"required"`
	SessionToken string `json:"sessionToken"`
	NotifyEmail  string `json:"notifyEmail"`
}

func (s *Server) handleIssueURL(c *gin.Context) {
	var req issueURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "BadRequest"})
		return
	}

	// Notifications are recorded only for authenticated callers.
	notifyEmail := ""
	if subjectFrom(c) != "" {
		notifyEmail = req.NotifyEmail
	}

	grant, err := s.downloads.Issue(c.Request.Context(), req.ShareID, req.SessionToken, subjectFrom(c), notifyEmail)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"downloadUrl": grant.URL, "remainingDownloads": grant.Remaining})
}

type initUploadRequest struct {
	Name        string `json:"name" binding:"required"`
	Size        int64  `json:"size" binding:"required"`
	ContentType string `json:"contentType"`
}

func (s *Server) handleInitUpload(c *gin.Context) {
	var req initUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "BadRequest"})
		return
	}

	file, task, err := s.uploads.InitUpload(c.Request.Context(), subjectFrom(c), req.Name, req.Size, req.ContentType)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fileId": file.ID, "uploadUrl": task.URL})
}

func (s *Server) handleQuotaUsage(c *gin.Context) {
	quota, err := s.quotas.Usage(c.Request.Context(), subjectFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"usedBytes": quota.UsedBytes, "ceilingBytes": quota.CeilingBytes})
}
