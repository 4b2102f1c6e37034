// Package api exposes the share verification and download-issuance protocol
// over HTTP. Handlers are thin: they decode requests, call the services, and
// map typed errors onto status codes. No business logic lives here.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sharegate/internal/logging"
	"sharegate/internal/server/services"
)

// Server is the HTTP front of the share protocol.
type Server struct {
	addr      string
	engine    *gin.Engine
	server    *http.Server
	logger    logging.Logger
	jwtSecret []byte

	shares    *services.ShareService
	downloads *services.DownloadService
	uploads   *services.UploadService
	quotas    *services.QuotaService
}

// NewServer wires the router. The bearer middleware resolves an identity
// token (if present) into the request context; individual routes decide
// whether a subject is required.
func NewServer(addr string, logger logging.Logger, jwtSecret []byte,
	shares *services.ShareService, downloads *services.DownloadService,
	uploads *services.UploadService, quotas *services.QuotaService) *Server {

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		addr:      addr,
		engine:    engine,
		logger:    logger,
		jwtSecret: jwtSecret,
		shares:    shares,
		downloads: downloads,
		uploads:   uploads,
		quotas:    quotas,
	}

	engine.Use(s.resolveSubject())

	engine.POST("/share/get-info", s.handleGetInfo)
	engine.POST("/share/create", s.requireSubject(), s.handleCreateShare)
	engine.POST("/share/revoke", s.requireSubject(), s.handleRevokeShare)
	engine.POST("/share/bind-account", s.requireSubject(), s.handleBindAccount)
	engine.POST("/share/verify-pin", s.handleVerifyPin)
	engine.POST("/share/webauthn/register-begin", s.requireSubject(), s.handleRegisterBegin)
	engine.POST("/share/webauthn/register-finish", s.requireSubject(), s.handleRegisterFinish)
	engine.POST("/share/webauthn/verify-begin", s.handleVerifyBegin)
	engine.POST("/share/webauthn/verify-finish", s.handleVerifyFinish)
	engine.POST("/download/issue-url", s.handleIssueURL)
	engine.POST("/upload/init", s.requireSubject(), s.handleInitUpload)
	engine.POST("/quota/usage", s.requireSubject(), s.handleQuotaUsage)

	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{Addr: s.addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info(ctx, "shutting down http server")
		return s.server.Shutdown(context.Background())
	}
}

// Handler exposes the underlying engine for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}
