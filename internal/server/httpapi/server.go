// Package httpapi exposes the auth service over HTTP using echo.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"
)

const shutdownTimeout = 10 * time.Second

// AccessVerifier checks bearer access tokens.
type AccessVerifier interface {
	VerifyAccess(token string) (*auth.AccessClaims, error)
}

// Observer receives one call per finished request.
type Observer interface {
	ObserveHTTP(method, route string, status int, took time.Duration)
}

// Options carries the optional parts of the server.
type Options struct {
	// SecureCookies sets the Secure attribute on the refresh cookie.
	SecureCookies bool
	// Metrics, when non-nil, is served on GET /metrics.
	Metrics http.Handler
	// Observer, when non-nil, is told about every request.
	Observer Observer
}

type HTTPServer struct {
	address string
	echo    *echo.Echo
	auth    *services.AuthService
	access  AccessVerifier
	logger  logging.Logger
	opts    Options
}

func NewHTTPServer(a string, l logging.Logger, svc *services.AuthService, access AccessVerifier, opts Options) *HTTPServer {
	s := &HTTPServer{
		address: a,
		echo:    echo.New(),
		auth:    svc,
		access:  access,
		logger:  l.With("module", "http_server"),
		opts:    opts,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Use(
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			Generator: func() string { return ulid.Make().String() },
		}),
		s.logRequests,
		middleware.Recover(),
		middleware.BodyLimit("64K"),
	)

	s.routes()
	return s
}

// Handler returns the configured router, mainly for httptest.
func (s *HTTPServer) Handler() http.Handler { return s.echo }

func (s *HTTPServer) routes() {
	e := s.echo

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	if s.opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.opts.Metrics))
	}

	g := e.Group("/auth")
	g.POST("/register", s.register)
	g.POST("/login", s.login)
	g.POST("/refresh", s.refresh)
	g.POST("/logout", s.logout)
	g.POST("/password-reset", s.requestPasswordReset)
	g.POST("/password-reset/confirm", s.confirmPasswordReset)
	g.GET("/verify-email/:token", s.verifyEmail)

	private := g.Group("", s.requireAccess)
	private.POST("/resend-verification", s.resendVerification)
	private.POST("/logout-all", s.logoutAll)
	private.POST("/change-password", s.changePassword)
	private.GET("/me", s.me)
	private.DELETE("/me", s.deleteMe)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
