package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/labstack/echo/v4"
)

type registerRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	Name      string  `json:"name"`
	Gender    *string `json:"gender"`
	BirthYear int     `json:"birthYear"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type confirmResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type tokensResponse struct {
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

type authResponse struct {
	User models.PublicUser `json:"user"`
	tokensResponse
}

type messageResponse struct {
	Message string `json:"message"`
}

func tokens(p services.TokenPair) tokensResponse {
	return tokensResponse{
		AccessToken:           p.AccessToken,
		AccessTokenExpiresAt:  p.AccessExpiresAt,
		RefreshToken:          p.RefreshToken,
		RefreshTokenExpiresAt: p.RefreshExpiresAt,
	}
}

func (s *HTTPServer) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	in := services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		BirthYear: req.BirthYear,
	}
	if req.Gender != nil {
		g := models.Gender(*req.Gender)
		in.Gender = &g
	}

	res, err := s.auth.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}

	s.setRefreshCookie(c, res.RefreshToken, res.RefreshExpiresAt)
	return c.JSON(http.StatusCreated, authResponse{User: res.User, tokensResponse: tokens(res.TokenPair)})
}

func (s *HTTPServer) login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	res, err := s.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	s.setRefreshCookie(c, res.RefreshToken, res.RefreshExpiresAt)
	return c.JSON(http.StatusOK, authResponse{User: res.User, tokensResponse: tokens(res.TokenPair)})
}

func (s *HTTPServer) refresh(c echo.Context) error {
	token, err := refreshTokenFrom(c)
	if err != nil {
		return err
	}

	p, err := s.auth.RefreshTokens(c.Request().Context(), token)
	if err != nil {
		s.clearRefreshCookie(c)
		return err
	}

	s.setRefreshCookie(c, p.RefreshToken, p.RefreshExpiresAt)
	return c.JSON(http.StatusOK, tokens(*p))
}

func (s *HTTPServer) logout(c echo.Context) error {
	token, err := refreshTokenFrom(c)
	if err != nil {
		return err
	}

	deleted, err := s.auth.Logout(c.Request().Context(), token)
	if err != nil {
		return err
	}

	s.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"loggedOut": deleted})
}

func (s *HTTPServer) logoutAll(c echo.Context) error {
	n, err := s.auth.LogoutAll(c.Request().Context(), userID(c))
	if err != nil {
		return err
	}

	s.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"revoked": n})
}

func (s *HTTPServer) requestPasswordReset(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	if _, err := s.auth.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, messageResponse{
		Message: "if the email is registered, a reset link has been sent",
	})
}

func (s *HTTPServer) confirmPasswordReset(c echo.Context) error {
	var req confirmResetRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	if err := s.auth.ConfirmPasswordReset(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return err
	}
	s.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, messageResponse{Message: "password updated"})
}

func (s *HTTPServer) verifyEmail(c echo.Context) error {
	if err := s.auth.VerifyEmail(c.Request().Context(), c.Param("token")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "email verified"})
}

func (s *HTTPServer) resendVerification(c echo.Context) error {
	sent, err := s.auth.ResendEmailVerification(c.Request().Context(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"sent": sent})
}

func (s *HTTPServer) changePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	err := s.auth.ChangePassword(c.Request().Context(), userID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		return err
	}
	s.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, messageResponse{Message: "password changed"})
}

func (s *HTTPServer) me(c echo.Context) error {
	u, err := s.auth.GetCurrentUser(c.Request().Context(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (s *HTTPServer) deleteMe(c echo.Context) error {
	if err := s.auth.DeleteAccount(c.Request().Context(), userID(c)); err != nil {
		return err
	}
	s.clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// refreshTokenFrom prefers the cookie and falls back to the JSON body.
func refreshTokenFrom(c echo.Context) (string, error) {
	if ck, err := c.Cookie(common.RefreshTokenCookieName); err == nil && ck.Value != "" {
		return ck.Value, nil
	}
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return "", err
	}
	return req.RefreshToken, nil
}

func (s *HTTPServer) setRefreshCookie(c echo.Context, token string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    token,
		Path:     "/auth",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *HTTPServer) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
