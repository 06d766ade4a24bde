// Package client talks to the credkeeper HTTP API on behalf of authctl.
//
// HTTPClient keeps the current access and refresh tokens, attaches the
// access token to protected calls and, when the server answers
// TOKEN_EXPIRED, rotates the refresh token once and retries. Every token
// change is reported through the OnTokens hook so callers can persist it.
//
// Server errors come back as *APIError, which matches the sentinels of
// internal/common (ErrConflict, ErrAuthentication, ErrTokenExpired, ...)
// and ErrUnauthorized through errors.Is. Transport failures match
// ErrUnavailable.
package client
