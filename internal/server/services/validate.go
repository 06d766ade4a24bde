package services

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Input bounds.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	MaxEmailLength    = 254
	MaxNameLength     = 100
	MinBirthYear      = 1900
)

func invalid(field, reason string) error {
	return &common.ValidationError{Field: field, Reason: reason}
}

// ValidateEmail accepts a bare addr-spec such as "a@x.com". Display names
// and angle brackets are rejected.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("email", "is required")
	}
	if len(email) > MaxEmailLength {
		return invalid("email", "is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return invalid("email", "is not a valid address")
	}
	return nil
}

// ValidatePassword checks the length bounds in characters, not bytes.
func ValidatePassword(field, password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n < MinPasswordLength:
		return invalid(field, "must be at least 8 characters")
	case n > MaxPasswordLength:
		return invalid(field, "must be at most 128 characters")
	}
	return nil
}

// RegisterInput is the payload of Register.
type RegisterInput struct {
	Email     string
	Password  string
	Name      string
	Gender    *models.Gender
	BirthYear int
}

// ValidateRegister checks every field of in. now bounds the birth year.
func ValidateRegister(in RegisterInput, now time.Time) error {
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	if err := ValidatePassword("password", in.Password); err != nil {
		return err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return invalid("name", "is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return invalid("name", "is too long")
	}
	if in.Gender != nil && !in.Gender.Valid() {
		return invalid("gender", "must be one of male, female, other")
	}
	if in.BirthYear < MinBirthYear || in.BirthYear > now.Year() {
		return invalid("birthYear", "is out of range")
	}
	return nil
}
