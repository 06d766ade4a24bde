package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/client/client"
	"github.com/dmitrijs2005/credkeeper/internal/common"
)

// describe turns API errors into short operator-facing text.
func describe(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrNotLoggedIn):
		return "not logged in, use 'login' first"
	case errors.Is(err, client.ErrUnavailable):
		return "server unavailable"
	case errors.Is(err, common.ErrTokenExpired), errors.Is(err, common.ErrTokenInvalid):
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return apiErr.Message + " (log in again or request a new link)"
		}
		return "token rejected"
	case errors.As(err, &apiErr):
		return apiErr.Error()
	default:
		return err.Error()
	}
}

func (a *App) prompt(text string) (string, error) {
	return GetSimpleText(a.reader, text, a.out)
}

func (a *App) password(text string) (string, error) {
	pw, err := GetPassword(text, a.out)
	if err != nil {
		return "", err
	}
	defer wipe(pw)
	return string(pw), nil
}

func (a *App) Register(ctx context.Context) error {
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	name, err := a.prompt("Name")
	if err != nil {
		return err
	}
	yearText, err := a.prompt("Birth year")
	if err != nil {
		return err
	}
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return fmt.Errorf("birth year must be a number")
	}
	genderText, err := a.prompt("Gender (male, female, other; empty to skip)")
	if err != nil {
		return err
	}
	pw, err := a.password("Password")
	if err != nil {
		return err
	}

	req := client.RegisterRequest{Email: email, Password: pw, Name: name, BirthYear: year}
	if genderText != "" {
		req.Gender = &genderText
	}

	prev := a.email
	a.email = strings.ToLower(email)
	res, err := a.api.Register(ctx, req)
	if err != nil {
		a.email = prev
		return err
	}
	a.loggedIn(res)

	fmt.Fprintf(a.out, "Registered %s. Check your mail for the verification link.\n", res.User.Email)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	pw, err := a.password("Password")
	if err != nil {
		return err
	}

	prev := a.email
	a.email = strings.ToLower(email)
	res, err := a.api.Login(ctx, email, pw)
	if err != nil {
		a.email = prev
		return err
	}
	a.loggedIn(res)

	fmt.Fprintf(a.out, "Logged in as %s\n", res.User.Email)
	return nil
}

func (a *App) loggedIn(res *client.AuthResponse) {
	a.email, a.userID = res.User.Email, res.User.ID
	a.persist(res.Tokens)
}

func (a *App) Me(ctx context.Context) error {
	u, err := a.api.Me(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "id:        %s\n", u.ID)
	fmt.Fprintf(a.out, "email:     %s\n", u.Email)
	fmt.Fprintf(a.out, "name:      %s\n", u.Name)
	if u.Gender != "" {
		fmt.Fprintf(a.out, "gender:    %s\n", u.Gender)
	}
	fmt.Fprintf(a.out, "born:      %d\n", u.BirthYear)
	fmt.Fprintf(a.out, "verified:  %t\n", u.EmailVerified)
	fmt.Fprintf(a.out, "created:   %s\n", u.CreatedAt.Format("2006-01-02 15:04"))
	return nil
}

func (a *App) ChangePassword(ctx context.Context) error {
	current, err := a.password("Current password")
	if err != nil {
		return err
	}
	next, err := a.password("New password")
	if err != nil {
		return err
	}

	if err := a.api.ChangePassword(ctx, current, next); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed. All sessions were closed, please log in again.")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.api.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) LogoutAll(ctx context.Context) error {
	n, err := a.api.LogoutAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Closed %d session(s)\n", n)
	return nil
}

func (a *App) RequestReset(ctx context.Context) error {
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	if err := a.api.RequestPasswordReset(ctx, email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "If the email is registered, a reset link is on its way.")
	return nil
}

func (a *App) ConfirmReset(ctx context.Context) error {
	token, err := a.prompt("Reset token")
	if err != nil {
		return err
	}
	pw, err := a.password("New password")
	if err != nil {
		return err
	}
	if err := a.api.ConfirmPasswordReset(ctx, token, pw); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password updated, you can log in now.")
	return nil
}

func (a *App) VerifyEmail(ctx context.Context) error {
	token, err := a.prompt("Verification token")
	if err != nil {
		return err
	}
	if err := a.api.VerifyEmail(ctx, token); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Email verified")
	return nil
}

func (a *App) ResendVerification(ctx context.Context) error {
	sent, err := a.api.ResendVerification(ctx)
	if err != nil {
		return err
	}
	if sent {
		fmt.Fprintln(a.out, "Verification email sent")
	} else {
		fmt.Fprintln(a.out, "Email is already verified")
	}
	return nil
}

func (a *App) DeleteAccount(ctx context.Context) error {
	answer, err := a.prompt(fmt.Sprintf("Type the account email (%s) to confirm deletion", a.email))
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, a.email) || a.email == "" {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}
	if err := a.api.DeleteAccount(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Account deleted")
	return nil
}
