package services

import "github.com/dmitrijs2005/credkeeper/internal/common"

// Operation names reported to an OutcomeRecorder.
const (
	OpRegister           = "register"
	OpLogin              = "login"
	OpRefresh            = "refresh"
	OpRequestReset       = "request_password_reset"
	OpConfirmReset       = "confirm_password_reset"
	OpVerifyEmail        = "verify_email"
	OpResendVerification = "resend_verification"
	OpLogout             = "logout"
	OpLogoutAll          = "logout_all"
	OpChangePassword     = "change_password"
	OpDeleteAccount      = "delete_account"
	OpGetCurrentUser     = "get_current_user"
)

// OutcomeRecorder observes the result of every AuthService operation.
type OutcomeRecorder interface {
	RecordOutcome(op string, kind common.ErrorKind)
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(string, common.ErrorKind) {}
