package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/credkeeper/internal/common"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotLoggedIn  = errors.New("not logged in")
)

// APIError is a non-2xx answer of the API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Field   string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case common.ErrValidation:
		return e.Code == "VALIDATION_ERROR"
	case common.ErrConflict:
		return e.Code == "CONFLICT"
	case common.ErrAuthentication:
		return e.Code == "INVALID_CREDENTIALS"
	case common.ErrTokenInvalid:
		return e.Code == "TOKEN_INVALID"
	case common.ErrTokenExpired:
		return e.Code == "TOKEN_EXPIRED"
	case common.ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}
