package models

import (
	"time"

	"github.com/google/uuid"
)

// User — игрок/участник платформы.
type User struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	IsVerified         bool       `json:"is_verified"`
	IsAdmin            bool       `json:"is_admin"`
	VerifyOTP          string     `json:"-"`
	VerifyOTPExpiresAt *time.Time `json:"-"`
	ResetOTP           string     `json:"-"`
	ResetOTPExpiresAt  *time.Time `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// OTPKind различает два независимых одноразовых кода пользователя.
type OTPKind string

const (
	OTPVerification  OTPKind = "verification"
	OTPPasswordReset OTPKind = "password_reset"
)

// StoredOTP returns the code and expiry currently stored for kind.
func (u *User) StoredOTP(kind OTPKind) (string, *time.Time) {
	if kind == OTPPasswordReset {
		return u.ResetOTP, u.ResetOTPExpiresAt
	}
	return u.VerifyOTP, u.VerifyOTPExpiresAt
}

// UserFilter — параметры выборки пользователей для админки.
type UserFilter struct {
	Search string
	Limit  int
	Offset int
}

type UserListResponse struct {
	Users      []User `json:"users"`
	TotalCount int    `json:"total_count"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
}
