package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
)

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var ve *common.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *common.ValidationError, got %v", err)
	}
	return ve.Field
}

func TestValidateEmail(t *testing.T) {
	valid := []string{"a@x.com", "Ann@Example.com", "first.last+tag@sub.example.org"}
	for _, e := range valid {
		assert.NoError(t, ValidateEmail(e), e)
	}

	invalidEmails := []string{
		"",
		"   ",
		"plain",
		"@x.com",
		"a@",
		"Ann <ann@example.com>",
		"<ann@example.com>",
		strings.Repeat("a", 250) + "@x.com",
	}
	for _, e := range invalidEmails {
		err := ValidateEmail(e)
		assert.ErrorIs(t, err, common.ErrValidation, e)
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("password", "12345678"))
	assert.NoError(t, ValidatePassword("password", strings.Repeat("x", MaxPasswordLength)))
	// eight runes, more than eight bytes
	assert.NoError(t, ValidatePassword("password", "ääääääää"))

	err := ValidatePassword("newPassword", "1234567")
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, "newPassword", fieldOf(t, err))

	err = ValidatePassword("password", strings.Repeat("x", MaxPasswordLength+1))
	assert.Equal(t, "password", fieldOf(t, err))
}

func TestValidateRegister(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	good := func() RegisterInput {
		return RegisterInput{Email: "ann@example.com", Password: "correct horse", Name: "Ann", BirthYear: 1990}
	}
	gender := func(g string) *models.Gender {
		v := models.Gender(g)
		return &v
	}

	assert.NoError(t, ValidateRegister(good(), now))

	withGender := good()
	withGender.Gender = gender("other")
	assert.NoError(t, ValidateRegister(withGender, now))

	tests := []struct {
		name  string
		edit  func(*RegisterInput)
		field string
	}{
		{"bad email", func(in *RegisterInput) { in.Email = "nope" }, "email"},
		{"short password", func(in *RegisterInput) { in.Password = "short" }, "password"},
		{"blank name", func(in *RegisterInput) { in.Name = "   " }, "name"},
		{"long name", func(in *RegisterInput) { in.Name = strings.Repeat("n", MaxNameLength+1) }, "name"},
		{"unknown gender", func(in *RegisterInput) { in.Gender = gender("robot") }, "gender"},
		{"birth year too old", func(in *RegisterInput) { in.BirthYear = MinBirthYear - 1 }, "birthYear"},
		{"birth year in future", func(in *RegisterInput) { in.BirthYear = 2026 }, "birthYear"},
		{"birth year missing", func(in *RegisterInput) { in.BirthYear = 0 }, "birthYear"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := good()
			tt.edit(&in)
			assert.Equal(t, tt.field, fieldOf(t, ValidateRegister(in, now)))
		})
	}
}
