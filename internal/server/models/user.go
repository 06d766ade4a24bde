// Package models defines server-side data models persisted in the database.
package models

import (
	"strings"
	"time"
)

// Gender is the optional self-reported gender of a user.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Valid reports whether g is one of the known values.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// User is the identity record. Email is stored lowercased.
type User struct {
	ID              string
	Email           string
	PasswordHash    string
	Name            string
	Gender          *Gender
	BirthYear       int
	EmailVerified   bool
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PublicUser is the projection of User that is safe to hand to clients.
type PublicUser struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Gender        *Gender    `json:"gender,omitempty"`
	BirthYear     int        `json:"birthYear"`
	EmailVerified bool       `json:"emailVerified"`
	VerifiedAt    *time.Time `json:"emailVerifiedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Public returns the client-safe projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Gender:        u.Gender,
		BirthYear:     u.BirthYear,
		EmailVerified: u.EmailVerified,
		VerifiedAt:    u.EmailVerifiedAt,
		CreatedAt:     u.CreatedAt,
	}
}

// NormalizeEmail trims and lowercases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
