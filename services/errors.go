package services

import (
	"errors"
	"strings"

	"github.com/letsplay/tournament-hub/authz"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	ErrNotFound           = errors.New("requested resource not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrOrganizerNotFound  = errors.New("organizer not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrApplicantNotFound  = errors.New("applicant not found")

	ErrValidationFailed   = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrUnauthenticated = errors.New("not authorized - please login")
	ErrInvalidToken    = errors.New("invalid authentication token")
	ErrSessionExpired  = errors.New("session expired - please login again")
	ErrForbidden       = authz.ErrForbidden

	ErrConflict               = errors.New("resource conflict")
	ErrUserEmailConflict      = errors.New("user already exists")
	ErrOrganizerEmailConflict = errors.New("organizer already exists")
	ErrApplicationConflict    = errors.New("team or captain is already registered for this tournament")
	ErrTournamentSlugConflict = errors.New("tournament with the same title already exists")
	ErrEditConflict           = errors.New("tournament was modified concurrently, reload and retry")

	ErrAlreadyVerified = errors.New("account already verified")
	ErrInvalidCode     = errors.New("invalid OTP")
	ErrOTPExpired      = errors.New("OTP expired")

	ErrRegistrationClosed       = authz.ErrRegistrationClosed
	ErrTournamentFull           = errors.New("tournament registration is full")
	ErrInvalidStatusTransition  = errors.New("invalid applicant status transition")
	ErrInvalidRegistrationState = errors.New("invalid registration status change")
	ErrLastTournamentAdmin      = errors.New("a tournament must keep at least one admin organizer")

	ErrRateLimited = errors.New("too many requests, try again later")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries one or more field errors and matches ErrValidationFailed.
type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidationFailed.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// ErrorKind возвращает стабильный машиночитаемый код ошибки для API.
func ErrorKind(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr), errors.Is(err, ErrValidationFailed):
		return "validation_error"
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials):
		return "unauthenticated"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrLastTournamentAdmin):
		return "forbidden"
	case errors.Is(err, ErrAlreadyVerified):
		return "already_verified"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrOTPExpired):
		return "expired"
	case errors.Is(err, ErrRegistrationClosed):
		return "registration_closed"
	case errors.Is(err, ErrTournamentFull):
		return "full"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidStatusTransition), errors.Is(err, ErrInvalidRegistrationState):
		return "invalid_transition"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUserNotFound), errors.Is(err, ErrOrganizerNotFound),
		errors.Is(err, ErrTournamentNotFound), errors.Is(err, ErrApplicantNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict), errors.Is(err, ErrUserEmailConflict), errors.Is(err, ErrOrganizerEmailConflict),
		errors.Is(err, ErrApplicationConflict), errors.Is(err, ErrTournamentSlugConflict), errors.Is(err, ErrEditConflict):
		return "conflict"
	default:
		return "internal_error"
	}
}
