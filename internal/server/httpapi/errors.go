package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/labstack/echo/v4"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeConflict           = "CONFLICT"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeNotFound           = "NOT_FOUND"
	CodeInternal           = "INTERNAL"
	CodeHTTP               = "HTTP_ERROR"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// errorResponse maps err onto a status and a body. Authentication and
// internal failures get fixed messages.
func errorResponse(err error) (int, errorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		return he.Code, errorBody{Error: msg, Code: CodeHTTP}
	}

	switch common.Classify(err) {
	case common.KindValidation:
		body := errorBody{Error: err.Error(), Code: CodeValidation}
		var ve *common.ValidationError
		if errors.As(err, &ve) {
			body.Error = ve.Error()
			body.Field = ve.Field
		}
		return http.StatusBadRequest, body
	case common.KindConflict:
		return http.StatusConflict, errorBody{Error: "email already registered", Code: CodeConflict}
	case common.KindAuthentication:
		return http.StatusUnauthorized, errorBody{Error: "invalid email or password", Code: CodeInvalidCredentials}
	case common.KindTokenInvalid:
		return http.StatusUnauthorized, errorBody{Error: "token is invalid", Code: CodeTokenInvalid}
	case common.KindTokenExpired:
		return http.StatusUnauthorized, errorBody{Error: "token has expired", Code: CodeTokenExpired}
	case common.KindNotFound:
		return http.StatusNotFound, errorBody{Error: "not found", Code: CodeNotFound}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal server error", Code: CodeInternal}
	}
}

func (s *HTTPServer) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, body := errorResponse(err)

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, body)
	}
	if werr != nil {
		s.logger.Error(c.Request().Context(), "write error response", "error", werr)
	}
}
