// Package services contains server-side business logic. AuthService
// handles registration, login, token rotation, password reset, email
// verification and session revocation on top of the repositories.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/notify"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// TokenCodec is the part of auth.TokenCodec the service needs.
type TokenCodec interface {
	SignAccess(userID string) (auth.SignedToken, error)
	SignRefresh(userID, tokenID string) (auth.SignedToken, error)
	VerifyRefresh(token string) (*auth.RefreshClaims, error)
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User models.PublicUser
	TokenPair
}

// AuthConfig holds the lifetimes of the single-use tokens. Access and
// refresh lifetimes belong to the codec.
type AuthConfig struct {
	PasswordResetTTL time.Duration
	EmailVerifyTTL   time.Duration
}

// AuthService is stateless apart from its collaborators and is safe for
// concurrent use.
type AuthService struct {
	tx       dbx.Transactor
	repos    repomanager.RepositoryManager
	hasher   auth.PasswordHasher
	codec    TokenCodec
	notifier notify.Notifier
	log      logging.Logger
	outcomes OutcomeRecorder
	cfg      AuthConfig
	now      func() time.Time
}

// Option customizes an AuthService.
type Option func(*AuthService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// WithOutcomeRecorder reports every operation result to r.
func WithOutcomeRecorder(r OutcomeRecorder) Option {
	return func(s *AuthService) { s.outcomes = r }
}

// NewAuthService wires the service.
func NewAuthService(
	tx dbx.Transactor,
	repos repomanager.RepositoryManager,
	hasher auth.PasswordHasher,
	codec TokenCodec,
	notifier notify.Notifier,
	log logging.Logger,
	cfg AuthConfig,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		tx:       tx,
		repos:    repos,
		hasher:   hasher,
		codec:    codec,
		notifier: notifier,
		log:      log.With("module", "auth"),
		outcomes: nopRecorder{},
		cfg:      cfg,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *AuthService) record(op string, err *error) {
	s.outcomes.RecordOutcome(op, common.Classify(*err))
}

// Register creates a user, opens a session and issues an email
// verification token. A taken email fails with common.ErrConflict after a
// dummy hash so the response time matches the success path.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (res *AuthResult, err error) {
	defer s.record(OpRegister, &err)

	now := s.now()
	if err := ValidateRegister(in, now); err != nil {
		return nil, err
	}
	email := models.NormalizeEmail(in.Email)

	_, err = s.repos.Users(s.tx.Conn()).GetByEmail(ctx, email)
	switch {
	case err == nil:
		s.hasher.HashDummy()
		return nil, common.ErrConflict
	case !errors.Is(err, common.ErrNotFound):
		return nil, fmt.Errorf("find user: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	verifyToken, err := cryptox.RandomToken()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Gender:       in.Gender,
		BirthYear:    in.BirthYear,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var refresh auth.SignedToken
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).Create(ctx, user); err != nil {
			if errors.Is(err, common.ErrConflict) {
				return err
			}
			return fmt.Errorf("create user: %w", err)
		}
		var err error
		if refresh, err = s.createRefreshToken(ctx, tx, user.ID, now); err != nil {
			return err
		}
		return s.createVerifyToken(ctx, tx, user.ID, verifyToken, now)
	})
	if err != nil {
		return nil, err
	}

	s.sendVerification(ctx, user.Email, verifyToken)

	access, err := s.codec.SignAccess(user.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return &AuthResult{User: user.Public(), TokenPair: pair(access, refresh)}, nil
}

// Login checks credentials and opens a new session. Unknown email and
// wrong password fail identically with common.ErrAuthentication.
func (s *AuthService) Login(ctx context.Context, email, password string) (res *AuthResult, err error) {
	defer s.record(OpLogin, &err)

	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, invalid("password", "is required")
	}

	user, err := s.repos.Users(s.tx.Conn()).GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.hasher.HashDummy()
			return nil, common.ErrAuthentication
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !s.hasher.Compare(password, user.PasswordHash) {
		return nil, common.ErrAuthentication
	}

	refresh, err := s.createRefreshToken(ctx, s.tx.Conn(), user.ID, s.now())
	if err != nil {
		return nil, err
	}
	access, err := s.codec.SignAccess(user.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return &AuthResult{User: user.Public(), TokenPair: pair(access, refresh)}, nil
}

// RefreshTokens rotates a refresh token: the presented row is deleted and
// a new one inserted in the same transaction. A token that was already
// rotated, revoked or never stored is invalid; an expired row is removed
// and reported as expired.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshJWT string) (res *TokenPair, err error) {
	defer s.record(OpRefresh, &err)

	if refreshJWT == "" {
		return nil, common.NewTokenError(common.TokenInvalid)
	}
	claims, err := s.codec.VerifyRefresh(refreshJWT)
	if err != nil {
		return nil, err
	}

	repo := s.repos.RefreshTokens(s.tx.Conn())
	row, err := repo.FindByTokenID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewTokenError(common.TokenInvalid)
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	if row.UserID != claims.Subject {
		return nil, common.NewTokenError(common.TokenInvalid)
	}

	now := s.now()
	if row.Expired(now) {
		if _, err := repo.DeleteByTokenID(ctx, row.TokenID); err != nil {
			return nil, fmt.Errorf("delete expired refresh token: %w", err)
		}
		return nil, common.NewTokenError(common.TokenExpired)
	}

	var refresh auth.SignedToken
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		deleted, err := s.repos.RefreshTokens(tx).DeleteByTokenID(ctx, row.TokenID)
		if err != nil {
			return fmt.Errorf("delete refresh token: %w", err)
		}
		if !deleted {
			// a concurrent rotation consumed it first
			return common.NewTokenError(common.TokenInvalid)
		}
		refresh, err = s.createRefreshToken(ctx, tx, row.UserID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	access, err := s.codec.SignAccess(row.UserID)
	if err != nil {
		return nil, err
	}
	p := pair(access, refresh)
	return &p, nil
}

// RequestPasswordReset mails a reset link if email belongs to a user. The
// result is true whether or not the user exists; only datastore failures
// are reported.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (ok bool, err error) {
	defer s.record(OpRequestReset, &err)

	if err := ValidateEmail(email); err != nil {
		return false, err
	}

	user, err := s.repos.Users(s.tx.Conn()).GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("find user: %w", err)
	}

	token, err := cryptox.RandomToken()
	if err != nil {
		return false, fmt.Errorf("generate reset token: %w", err)
	}
	now := s.now()
	row := models.NewSingleUseToken(uuid.NewString(), user.ID, cryptox.SHA256Hex(token), now, now.Add(s.cfg.PasswordResetTTL))
	if err := s.repos.PasswordResets(s.tx.Conn()).Create(ctx, &row); err != nil {
		return false, fmt.Errorf("create reset token: %w", err)
	}

	if err := s.notifier.SendPasswordResetEmail(ctx, notify.PasswordResetEmail{To: user.Email, ResetToken: token}); err != nil {
		s.log.Warn(ctx, "password reset email not delivered", "user_id", user.ID, "error", err)
	}
	return true, nil
}

// ConfirmPasswordReset spends a reset token: the password is replaced, the
// token is consumed and every refresh token of the user is revoked, all in
// one transaction.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) (err error) {
	defer s.record(OpConfirmReset, &err)

	if token == "" {
		return common.NewTokenError(common.TokenInvalid)
	}
	if err := ValidatePassword("newPassword", newPassword); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	var userID string
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		now := s.now()
		resets := s.repos.PasswordResets(tx)
		row, err := consumable(ctx, resets.FindByHashForUpdate, token, now)
		if err != nil {
			return err
		}
		userID = row.UserID

		if err := s.repos.Users(tx).UpdatePassword(ctx, row.UserID, hash, now); err != nil {
			return notFoundIsInvalid(err, "update password")
		}
		if err := resets.MarkConsumed(ctx, row.ID, now); err != nil {
			return consumedIsInvalid(err)
		}
		if _, err := s.repos.RefreshTokens(tx).DeleteByUser(ctx, row.UserID); err != nil {
			return fmt.Errorf("revoke refresh tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "password reset", "user_id", userID)
	return nil
}

// VerifyEmail spends a verification token and marks the owner verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (err error) {
	defer s.record(OpVerifyEmail, &err)

	if token == "" {
		return common.NewTokenError(common.TokenInvalid)
	}

	return s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		now := s.now()
		verifies := s.repos.EmailVerifications(tx)
		row, err := consumable(ctx, verifies.FindByHashForUpdate, token, now)
		if err != nil {
			return err
		}
		if err := s.repos.Users(tx).MarkEmailVerified(ctx, row.UserID, now); err != nil {
			return notFoundIsInvalid(err, "mark email verified")
		}
		if err := verifies.MarkConsumed(ctx, row.ID, now); err != nil {
			return consumedIsInvalid(err)
		}
		return nil
	})
}

// ResendEmailVerification issues a fresh verification token and revokes
// the ones still outstanding. It returns false, doing nothing, when the
// email is already verified.
func (s *AuthService) ResendEmailVerification(ctx context.Context, userID string) (sent bool, err error) {
	defer s.record(OpResendVerification, &err)

	user, err := s.repos.Users(s.tx.Conn()).GetByID(ctx, userID)
	if err != nil {
		return false, wrapLookup(err, "find user")
	}
	if user.EmailVerified {
		return false, nil
	}

	token, err := cryptox.RandomToken()
	if err != nil {
		return false, fmt.Errorf("generate verification token: %w", err)
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		now := s.now()
		if _, err := s.repos.EmailVerifications(tx).ConsumeActiveForUser(ctx, user.ID, now); err != nil {
			return fmt.Errorf("revoke verification tokens: %w", err)
		}
		return s.createVerifyToken(ctx, tx, user.ID, token, now)
	})
	if err != nil {
		return false, err
	}

	s.sendVerification(ctx, user.Email, token)
	return true, nil
}

// Logout revokes the session of one refresh token. Tokens that do not
// verify are not an error; the result is simply false.
func (s *AuthService) Logout(ctx context.Context, refreshJWT string) (deleted bool, err error) {
	defer s.record(OpLogout, &err)

	claims, verr := s.codec.VerifyRefresh(refreshJWT)
	if verr != nil {
		return false, nil
	}
	deleted, err = s.repos.RefreshTokens(s.tx.Conn()).DeleteByTokenID(ctx, claims.ID)
	if err != nil {
		return false, fmt.Errorf("delete refresh token: %w", err)
	}
	return deleted, nil
}

// LogoutAll revokes every refresh token of userID and returns how many
// there were.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (n int64, err error) {
	defer s.record(OpLogoutAll, &err)

	n, err = s.repos.RefreshTokens(s.tx.Conn()).DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens: %w", err)
	}
	s.log.Info(ctx, "all sessions revoked", "user_id", userID, "count", n)
	return n, nil
}

// ChangePassword replaces the password after checking the current one and
// revokes every refresh token of the user.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) (err error) {
	defer s.record(OpChangePassword, &err)

	if current == "" {
		return invalid("currentPassword", "is required")
	}
	if err := ValidatePassword("newPassword", next); err != nil {
		return err
	}

	user, err := s.repos.Users(s.tx.Conn()).GetByID(ctx, userID)
	if err != nil {
		return wrapLookup(err, "find user")
	}
	if !s.hasher.Compare(current, user.PasswordHash) {
		return common.ErrAuthentication
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).UpdatePassword(ctx, user.ID, hash, s.now()); err != nil {
			return wrapLookup(err, "update password")
		}
		if _, err := s.repos.RefreshTokens(tx).DeleteByUser(ctx, user.ID); err != nil {
			return fmt.Errorf("revoke refresh tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "password changed", "user_id", user.ID)
	return nil
}

// DeleteAccount removes the user; the datastore cascades to its tokens.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) (err error) {
	defer s.record(OpDeleteAccount, &err)

	if err := s.repos.Users(s.tx.Conn()).Delete(ctx, userID); err != nil {
		return wrapLookup(err, "delete user")
	}
	s.log.Info(ctx, "account deleted", "user_id", userID)
	return nil
}

// GetCurrentUser returns the public projection of userID.
func (s *AuthService) GetCurrentUser(ctx context.Context, userID string) (u *models.PublicUser, err error) {
	defer s.record(OpGetCurrentUser, &err)

	user, err := s.repos.Users(s.tx.Conn()).GetByID(ctx, userID)
	if err != nil {
		return nil, wrapLookup(err, "find user")
	}
	p := user.Public()
	return &p, nil
}

// --- helpers below ---

func (s *AuthService) createRefreshToken(ctx context.Context, db dbx.DBTX, userID string, now time.Time) (auth.SignedToken, error) {
	tokenID, err := cryptox.RandomID()
	if err != nil {
		return auth.SignedToken{}, fmt.Errorf("generate refresh token id: %w", err)
	}
	signed, err := s.codec.SignRefresh(userID, tokenID)
	if err != nil {
		return auth.SignedToken{}, err
	}
	row := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenID:   tokenID,
		ExpiresAt: signed.ExpiresAt,
		CreatedAt: now,
	}
	if err := s.repos.RefreshTokens(db).Create(ctx, row); err != nil {
		return auth.SignedToken{}, fmt.Errorf("create refresh token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) createVerifyToken(ctx context.Context, db dbx.DBTX, userID, token string, now time.Time) error {
	row := models.NewSingleUseToken(uuid.NewString(), userID, cryptox.SHA256Hex(token), now, now.Add(s.cfg.EmailVerifyTTL))
	if err := s.repos.EmailVerifications(db).Create(ctx, &row); err != nil {
		return fmt.Errorf("create verification token: %w", err)
	}
	return nil
}

func (s *AuthService) sendVerification(ctx context.Context, to, token string) {
	err := s.notifier.SendEmailVerificationEmail(ctx, notify.VerificationEmail{To: to, VerificationToken: token})
	if err != nil {
		s.log.Warn(ctx, "verification email not delivered", "error", err)
	}
}

// consumable loads the token row for plaintext and checks it may be spent:
// missing or consumed is invalid, past expiry is expired.
func consumable(
	ctx context.Context,
	find func(context.Context, string) (*models.SingleUseToken, error),
	plaintext string,
	now time.Time,
) (*models.SingleUseToken, error) {
	row, err := find(ctx, cryptox.SHA256Hex(plaintext))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewTokenError(common.TokenInvalid)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}
	if row.State == models.TokenConsumed {
		return nil, common.NewTokenError(common.TokenInvalid)
	}
	if row.Expired(now) {
		return nil, common.NewTokenError(common.TokenExpired)
	}
	return row, nil
}

func consumedIsInvalid(err error) error {
	if errors.Is(err, models.ErrTokenAlreadyConsumed) {
		return common.NewTokenError(common.TokenInvalid)
	}
	return fmt.Errorf("consume token: %w", err)
}

func notFoundIsInvalid(err error, op string) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.NewTokenError(common.TokenInvalid)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// wrapLookup keeps common.ErrNotFound matchable and adds context to
// everything else.
func wrapLookup(err error, op string) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func pair(access, refresh auth.SignedToken) TokenPair {
	return TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}
}
