package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/client/client"
	"github.com/dmitrijs2005/credkeeper/internal/client/session"
	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	tokens   client.Tokens
	onTokens func(client.Tokens)

	registered client.RegisterRequest
	password   string
	changed    [2]string
	resetToken string
	verified   string
	deleted    bool
	err        error
}

var _ client.Client = (*fakeAPI)(nil)

func (f *fakeAPI) set(t client.Tokens) {
	f.tokens = t
	if f.onTokens != nil {
		f.onTokens(t)
	}
}

func (f *fakeAPI) authResponse(email string) *client.AuthResponse {
	return &client.AuthResponse{
		User:   client.User{ID: "u1", Email: strings.ToLower(email), Name: "Ann", BirthYear: 1990},
		Tokens: client.Tokens{AccessToken: "a1", RefreshToken: "r1", AccessTokenExpiresAt: time.Now().Add(time.Minute)},
	}
}

func (f *fakeAPI) Register(_ context.Context, req client.RegisterRequest) (*client.AuthResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.registered = req
	res := f.authResponse(req.Email)
	f.set(res.Tokens)
	return res, nil
}

func (f *fakeAPI) Login(_ context.Context, email, password string) (*client.AuthResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.password = password
	res := f.authResponse(email)
	f.set(res.Tokens)
	return res, nil
}

func (f *fakeAPI) Refresh(context.Context) (*client.Tokens, error) { return &f.tokens, f.err }

func (f *fakeAPI) Logout(context.Context) error {
	f.set(client.Tokens{})
	return f.err
}

func (f *fakeAPI) LogoutAll(context.Context) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.set(client.Tokens{})
	return 3, nil
}

func (f *fakeAPI) Me(context.Context) (*client.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &client.User{ID: "u1", Email: "ann@example.com", Name: "Ann", Gender: "female", BirthYear: 1990}, nil
}

func (f *fakeAPI) ChangePassword(_ context.Context, current, next string) error {
	f.changed = [2]string{current, next}
	return f.err
}

func (f *fakeAPI) DeleteAccount(context.Context) error {
	f.deleted = true
	f.set(client.Tokens{})
	return f.err
}

func (f *fakeAPI) RequestPasswordReset(context.Context, string) error { return f.err }

func (f *fakeAPI) ConfirmPasswordReset(_ context.Context, token, _ string) error {
	f.resetToken = token
	return f.err
}

func (f *fakeAPI) VerifyEmail(_ context.Context, token string) error {
	f.verified = token
	return f.err
}

func (f *fakeAPI) ResendVerification(context.Context) (bool, error) { return true, f.err }

func (f *fakeAPI) SetTokens(t client.Tokens) { f.tokens = t }
func (f *fakeAPI) Tokens() client.Tokens     { return f.tokens }

// newTestApp builds an App over fakeAPI, a temp SQLite session and scripted input.
func newTestApp(t *testing.T, input string, passwords ...string) (*App, *fakeAPI, *bytes.Buffer) {
	t.Helper()

	db, err := session.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "s.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	old := readPassword
	t.Cleanup(func() { readPassword = old })
	readPassword = func(int) ([]byte, error) {
		if len(passwords) == 0 {
			return nil, errors.New("no more passwords")
		}
		pw := passwords[0]
		passwords = passwords[1:]
		return []byte(pw), nil
	}

	var out bytes.Buffer
	api := &fakeAPI{}
	app := &App{api: api, sessions: session.NewSQLiteStore(db), reader: rdr(input), out: &out}
	api.onTokens = app.persist
	return app, api, &out
}

func TestLogin_PersistsSession(t *testing.T) {
	app, api, out := newTestApp(t, "Ann@Example.com\n", "correct horse")
	ctx := context.Background()

	require.NoError(t, app.Login(ctx))
	assert.Equal(t, "correct horse", api.password)
	assert.Contains(t, out.String(), "Logged in as ann@example.com")

	s, err := app.sessions.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", s.RefreshToken)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, "ann@example.com", app.status())

	// a fresh App over the same database resumes the session
	next := &App{api: &fakeAPI{}, sessions: app.sessions, out: out}
	next.restore(ctx)
	assert.True(t, next.isLoggedIn())
	assert.Equal(t, "ann@example.com", next.email)
}

func TestLogin_FailureKeepsPreviousIdentity(t *testing.T) {
	app, api, _ := newTestApp(t, "bob@example.com\n", "nope")
	app.email = "ann@example.com"
	api.err = &client.APIError{Status: http.StatusUnauthorized, Code: "INVALID_CREDENTIALS", Message: "invalid email or password"}

	err := app.Login(context.Background())
	require.Error(t, err)
	assert.Equal(t, "ann@example.com", app.email)
	assert.Equal(t, "invalid email or password", describe(err))
}

func TestRegister(t *testing.T) {
	app, api, out := newTestApp(t, "ann@example.com\nAnn\n1990\nfemale\n", "correct horse")

	require.NoError(t, app.Register(context.Background()))
	assert.Equal(t, "ann@example.com", api.registered.Email)
	assert.Equal(t, 1990, api.registered.BirthYear)
	require.NotNil(t, api.registered.Gender)
	assert.Equal(t, "female", *api.registered.Gender)
	assert.Contains(t, out.String(), "Registered ann@example.com")
	assert.True(t, app.isLoggedIn())
}

func TestRegister_BadBirthYear(t *testing.T) {
	app, _, _ := newTestApp(t, "ann@example.com\nAnn\nnineteen\n")
	assert.EqualError(t, app.Register(context.Background()), "birth year must be a number")
}

func TestLogoutClearsSession(t *testing.T) {
	app, _, out := newTestApp(t, "ann@example.com\n", "correct horse")
	ctx := context.Background()
	require.NoError(t, app.Login(ctx))

	require.NoError(t, app.LogoutAll(ctx))
	assert.Contains(t, out.String(), "Closed 3 session(s)")

	_, err := app.sessions.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)
	assert.Equal(t, "anonymous", app.status())
}

func TestTokenCommands(t *testing.T) {
	app, api, out := newTestApp(t, "tok-1\ntok-2\n", "brand new pass")
	ctx := context.Background()

	require.NoError(t, app.ConfirmReset(ctx))
	assert.Equal(t, "tok-1", api.resetToken)

	require.NoError(t, app.VerifyEmail(ctx))
	assert.Equal(t, "tok-2", api.verified)
	assert.Contains(t, out.String(), "Email verified")
}

func TestChangePasswordAndMe(t *testing.T) {
	app, api, out := newTestApp(t, "", "old pass", "new pass 123")
	ctx := context.Background()

	require.NoError(t, app.ChangePassword(ctx))
	assert.Equal(t, [2]string{"old pass", "new pass 123"}, api.changed)

	require.NoError(t, app.Me(ctx))
	assert.Contains(t, out.String(), "gender:    female")
	assert.Contains(t, out.String(), "verified:  false")
}

func TestDeleteAccount_RequiresConfirmation(t *testing.T) {
	app, api, out := newTestApp(t, "bob@example.com\nANN@example.com\n")
	app.email = "ann@example.com"
	ctx := context.Background()

	require.NoError(t, app.DeleteAccount(ctx))
	assert.False(t, api.deleted)
	assert.Contains(t, out.String(), "Cancelled")

	require.NoError(t, app.DeleteAccount(ctx))
	assert.True(t, api.deleted)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "not logged in, use 'login' first", describe(client.ErrNotLoggedIn))
	assert.Equal(t, "server unavailable", describe(fmt.Errorf("%w: dial tcp", client.ErrUnavailable)))
	assert.Equal(t, "token has expired (log in again or request a new link)",
		describe(&client.APIError{Status: 401, Code: "TOKEN_EXPIRED", Message: "token has expired"}))
	assert.Equal(t, "token rejected", describe(common.NewTokenError(common.TokenInvalid)))
	assert.Equal(t, "boom", describe(errors.New("boom")))
}
