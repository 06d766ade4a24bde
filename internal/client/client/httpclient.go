package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
)

type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu     sync.Mutex
	tokens Tokens

	// OnTokens, when set, is called after every token change.
	OnTokens func(Tokens)
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) SetTokens(t Tokens) {
	c.mu.Lock()
	c.tokens = t
	c.mu.Unlock()
}

func (c *HTTPClient) Tokens() Tokens {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

func (c *HTTPClient) storeTokens(t Tokens) {
	c.SetTokens(t)
	if c.OnTokens != nil {
		c.OnTokens(t)
	}
}

// do sends one request and decodes a 2xx JSON answer into out (if non-nil).
func (c *HTTPClient) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", common.AuthorizationScheme+" "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb struct {
			Error string `json:"error"`
			Code  string `json:"code"`
			Field string `json:"field"`
		}
		if json.NewDecoder(resp.Body).Decode(&eb) == nil {
			apiErr.Message, apiErr.Code, apiErr.Field = eb.Error, eb.Code, eb.Field
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// doAuthed attaches the access token. An expired access token is renewed
// once through the refresh token and the call retried.
func (c *HTTPClient) doAuthed(ctx context.Context, method, path string, in, out any) error {
	t := c.Tokens()
	if t.AccessToken == "" && t.RefreshToken == "" {
		return ErrNotLoggedIn
	}

	err := c.do(ctx, method, path, t.AccessToken, in, out)
	if err == nil || !errors.Is(err, common.ErrTokenExpired) || t.RefreshToken == "" {
		return err
	}

	if _, err := c.Refresh(ctx); err != nil {
		return err
	}
	return c.do(ctx, method, path, c.Tokens().AccessToken, in, out)
}

func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var res AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", req, &res); err != nil {
		return nil, err
	}
	c.storeTokens(res.Tokens)
	return &res, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	in := map[string]string{"email": email, "password": password}
	var res AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", in, &res); err != nil {
		return nil, err
	}
	c.storeTokens(res.Tokens)
	return &res, nil
}

func (c *HTTPClient) Refresh(ctx context.Context) (*Tokens, error) {
	rt := c.Tokens().RefreshToken
	if rt == "" {
		return nil, ErrNotLoggedIn
	}
	var res Tokens
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": rt}, &res); err != nil {
		return nil, err
	}
	c.storeTokens(res)
	return &res, nil
}

// Logout revokes the current refresh token and forgets the tokens even if
// the server call fails.
func (c *HTTPClient) Logout(ctx context.Context) error {
	rt := c.Tokens().RefreshToken
	defer c.storeTokens(Tokens{})
	if rt == "" {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/auth/logout", "", map[string]string{"refreshToken": rt}, nil)
}

func (c *HTTPClient) LogoutAll(ctx context.Context) (int64, error) {
	var res struct {
		Revoked int64 `json:"revoked"`
	}
	if err := c.doAuthed(ctx, http.MethodPost, "/auth/logout-all", nil, &res); err != nil {
		return 0, err
	}
	c.storeTokens(Tokens{})
	return res.Revoked, nil
}

func (c *HTTPClient) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.doAuthed(ctx, http.MethodGet, "/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ChangePassword revokes every session server-side, so the tokens are
// dropped on success.
func (c *HTTPClient) ChangePassword(ctx context.Context, current, next string) error {
	in := map[string]string{"currentPassword": current, "newPassword": next}
	if err := c.doAuthed(ctx, http.MethodPost, "/auth/change-password", in, nil); err != nil {
		return err
	}
	c.storeTokens(Tokens{})
	return nil
}

func (c *HTTPClient) DeleteAccount(ctx context.Context) error {
	if err := c.doAuthed(ctx, http.MethodDelete, "/auth/me", nil, nil); err != nil {
		return err
	}
	c.storeTokens(Tokens{})
	return nil
}

func (c *HTTPClient) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/password-reset", "", map[string]string{"email": email}, nil)
}

func (c *HTTPClient) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	in := map[string]string{"token": token, "newPassword": newPassword}
	return c.do(ctx, http.MethodPost, "/auth/password-reset/confirm", "", in, nil)
}

func (c *HTTPClient) VerifyEmail(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodGet, "/auth/verify-email/"+url.PathEscape(token), "", nil, nil)
}

func (c *HTTPClient) ResendVerification(ctx context.Context) (bool, error) {
	var res struct {
		Sent bool `json:"sent"`
	}
	if err := c.doAuthed(ctx, http.MethodPost, "/auth/resend-verification", nil, &res); err != nil {
		return false, err
	}
	return res.Sent, nil
}
