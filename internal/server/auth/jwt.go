// Package auth holds the password hasher and the bearer token codec.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims identify a user for a single API call.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// RefreshClaims add the server-side token id (jti) to the identity.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// TokenCodecConfig configures TokenCodec. The two secrets must differ.
type TokenCodecConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// SignedToken is a minted token and its expiry.
type SignedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenCodec signs and verifies access and refresh tokens with HS256.
// It has no mutable state.
type TokenCodec struct {
	cfg TokenCodecConfig
	now func() time.Time
}

// NewTokenCodec validates cfg and returns a codec using the wall clock.
func NewTokenCodec(cfg TokenCodecConfig) (*TokenCodec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token secrets must not be empty")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &TokenCodec{cfg: cfg, now: time.Now}, nil
}

// WithClock returns a copy of c that reads time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// AccessTTL returns the access token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

// RefreshTTL returns the refresh token lifetime.
func (c *TokenCodec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }

func (c *TokenCodec) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := c.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    c.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

// SignAccess mints an access token for userID.
func (c *TokenCodec) SignAccess(userID string) (SignedToken, error) {
	claims := AccessClaims{RegisteredClaims: c.registered(userID, c.cfg.AccessTTL)}
	return sign(claims, claims.ExpiresAt.Time, c.cfg.AccessSecret)
}

// SignRefresh mints a refresh token for userID bound to tokenID.
func (c *TokenCodec) SignRefresh(userID, tokenID string) (SignedToken, error) {
	claims := RefreshClaims{RegisteredClaims: c.registered(userID, c.cfg.RefreshTTL)}
	claims.ID = tokenID
	return sign(claims, claims.ExpiresAt.Time, c.cfg.RefreshSecret)
}

func sign(claims jwt.Claims, exp time.Time, secret []byte) (SignedToken, error) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return SignedToken{}, fmt.Errorf("sign token: %w", err)
	}
	return SignedToken{Token: s, ExpiresAt: exp}, nil
}

// VerifyAccess returns the claims of a valid access token, or a
// *common.TokenError.
func (c *TokenCodec) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(token, claims, c.cfg.AccessSecret); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, common.NewTokenError(common.TokenInvalid)
	}
	return claims, nil
}

// VerifyRefresh returns the claims of a valid refresh token, or a
// *common.TokenError. A token without jti is invalid.
func (c *TokenCodec) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(token, claims, c.cfg.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, common.NewTokenError(common.TokenInvalid)
	}
	return claims, nil
}

func (c *TokenCodec) parse(token string, claims jwt.Claims, secret []byte) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.cfg.Issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return common.NewTokenError(common.TokenExpired)
		}
		return common.NewTokenError(common.TokenInvalid)
	}
	if !parsed.Valid {
		return common.NewTokenError(common.TokenInvalid)
	}
	return nil
}
