// Package notify delivers account emails. The auth service treats delivery
// as best effort: errors are logged by the caller and never abort the
// operation that triggered the email.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// PasswordResetEmail carries the plaintext reset token to its owner.
type PasswordResetEmail struct {
	To         string
	ResetToken string
}

// VerificationEmail carries the plaintext verification token to its owner.
type VerificationEmail struct {
	To                string
	VerificationToken string
}

// Notifier sends account emails.
type Notifier interface {
	SendPasswordResetEmail(ctx context.Context, msg PasswordResetEmail) error
	SendEmailVerificationEmail(ctx context.Context, msg VerificationEmail) error
}

// Message is a rendered email.
type Message struct {
	Kind    string `json:"kind"`
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	Link    string `json:"link"`
}

const (
	KindPasswordReset     = "password_reset"
	KindEmailVerification = "email_verification"
)

// Renderer turns notifications into Messages with links into the web app.
type Renderer struct {
	From    string
	BaseURL string
}

func (r Renderer) link(path, token string) string {
	return strings.TrimRight(r.BaseURL, "/") + path + url.PathEscape(token)
}

func (r Renderer) PasswordReset(msg PasswordResetEmail) Message {
	link := r.link("/reset-password/", msg.ResetToken)
	return Message{
		Kind:    KindPasswordReset,
		From:    r.From,
		To:      msg.To,
		Subject: "Reset your password",
		Link:    link,
		Text: fmt.Sprintf("Someone asked to reset the password for this address.\n\n"+
			"Open %s within the next hour to choose a new one. If it was not you, ignore this email.\n", link),
	}
}

func (r Renderer) Verification(msg VerificationEmail) Message {
	link := r.link("/verify-email/", msg.VerificationToken)
	return Message{
		Kind:    KindEmailVerification,
		From:    r.From,
		To:      msg.To,
		Subject: "Confirm your email address",
		Link:    link,
		Text:    fmt.Sprintf("Welcome!\n\nOpen %s to confirm your email address.\n", link),
	}
}
