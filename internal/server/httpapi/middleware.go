package httpapi

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/labstack/echo/v4"
)

const userIDKey = "user_id"

// logRequests logs one line per request and feeds the observer.
func (s *HTTPServer) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			// commit the response so the status below is final
			c.Error(err)
		}
		took := time.Since(start)

		req := c.Request()
		status := c.Response().Status
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}

		if s.opts.Observer != nil {
			s.opts.Observer.ObserveHTTP(req.Method, route, status, took)
		}

		args := []any{
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"method", req.Method,
			"route", route,
			"status", status,
			"duration_ms", took.Milliseconds(),
		}
		if uid, ok := c.Get(userIDKey).(string); ok {
			args = append(args, "user_id", uid)
		}
		if status >= 500 {
			s.logger.Error(req.Context(), "request failed", append(args, "error", err)...)
		} else {
			s.logger.Info(req.Context(), "request", args...)
		}
		return nil
	}
}

// requireAccess accepts "Authorization: Bearer <access token>" and stores
// the subject under userIDKey.
func (s *HTTPServer) requireAccess(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return common.NewTokenError(common.TokenInvalid)
		}
		claims, err := s.access.VerifyAccess(token)
		if err != nil {
			return err
		}
		c.Set(userIDKey, claims.Subject)
		return next(c)
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, common.AuthorizationScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func userID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}
