package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/metrics"
	"github.com/letsplay/tournament-hub/models"
	"github.com/letsplay/tournament-hub/repositories"
	"github.com/letsplay/tournament-hub/utils"
)

const (
	DefaultVerifyOTPTTL = 24 * time.Hour
	DefaultResetOTPTTL  = 10 * time.Minute
)

type OTPConfig struct {
	VerifyTTL time.Duration
	ResetTTL  time.Duration
}

// OTPService issues and consumes one-time codes for account verification and password reset.
type OTPService struct {
	users     repositories.UserRepository
	email     *EmailService
	logger    *slog.Logger
	verifyTTL time.Duration
	resetTTL  time.Duration
	now       func() time.Time
	generate  func() (string, error)
}

func NewOTPService(users repositories.UserRepository, email *EmailService, cfg OTPConfig, logger *slog.Logger) *OTPService {
	if cfg.VerifyTTL <= 0 {
		cfg.VerifyTTL = DefaultVerifyOTPTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetOTPTTL
	}
	return &OTPService{
		users:     users,
		email:     email,
		logger:    logger,
		verifyTTL: cfg.VerifyTTL,
		resetTTL:  cfg.ResetTTL,
		now:       time.Now,
		generate:  utils.GenerateOTP,
	}
}

func (s *OTPService) WithClock(now func() time.Time) *OTPService {
	s.now = now
	return s
}

func (s *OTPService) IssueVerificationCode(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return handleRepositoryError(err)
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	code, err := s.store(ctx, user.ID, models.OTPVerification, s.verifyTTL)
	if err != nil {
		return err
	}
	if err := s.email.SendVerificationOTP(ctx, user.Name, user.Email, code, s.verifyTTL); err != nil {
		return fmt.Errorf("failed to send verification otp: %w", err)
	}
	s.logger.InfoContext(ctx, "verification otp issued", slog.String("user_id", user.ID.String()))
	return nil
}

// VerifyCode checks code against the stored code of kind. A verification code
// is consumed and the account marked verified; a reset code is only checked,
// ConsumeResetCode spends it.
func (s *OTPService) VerifyCode(ctx context.Context, userID uuid.UUID, code string, kind models.OTPKind) (err error) {
	defer func() {
		metrics.OTPVerifications.WithLabelValues(string(kind), metrics.Outcome(err, ErrorKind)).Inc()
	}()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return handleRepositoryError(err)
	}
	now := s.now()
	if err := classifyOTP(user, kind, code, now); err != nil {
		return err
	}
	if kind != models.OTPVerification {
		return nil
	}
	if err := s.users.ConsumeOTP(ctx, user.ID, kind, code, now, ""); err != nil {
		return handleRepositoryError(err)
	}
	s.logger.InfoContext(ctx, "account verified", slog.String("user_id", user.ID.String()))
	return nil
}

func (s *OTPService) IssueResetCode(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return handleRepositoryError(err)
	}

	code, err := s.store(ctx, user.ID, models.OTPPasswordReset, s.resetTTL)
	if err != nil {
		return err
	}
	if err := s.email.SendPasswordResetOTP(ctx, user.Name, user.Email, code, s.resetTTL); err != nil {
		return fmt.Errorf("failed to send reset otp: %w", err)
	}
	s.logger.InfoContext(ctx, "password reset otp issued", slog.String("user_id", user.ID.String()))
	return nil
}

type ResetPasswordInput struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

// ConsumeResetCode replaces the password and clears the reset code in one conditional update.
func (s *OTPService) ConsumeResetCode(ctx context.Context, email, code, newPassword string) (err error) {
	defer func() {
		metrics.OTPVerifications.WithLabelValues(string(models.OTPPasswordReset), metrics.Outcome(err, ErrorKind)).Inc()
	}()

	input := ResetPasswordInput{Email: normalizeEmail(email), OTP: code, NewPassword: newPassword}
	if verr := validateStruct(input); verr != nil {
		return verr
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return handleRepositoryError(err)
	}
	now := s.now()
	if err := classifyOTP(user, models.OTPPasswordReset, code, now); err != nil {
		return err
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.ConsumeOTP(ctx, user.ID, models.OTPPasswordReset, code, now, hash); err != nil {
		return handleRepositoryError(err)
	}
	s.logger.InfoContext(ctx, "password reset", slog.String("user_id", user.ID.String()))
	return nil
}

func (s *OTPService) store(ctx context.Context, userID uuid.UUID, kind models.OTPKind, ttl time.Duration) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", err
	}
	if err := s.users.SetOTP(ctx, userID, kind, code, s.now().Add(ttl)); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to store %s otp: %w", kind, err)
	}
	metrics.OTPIssued.WithLabelValues(string(kind)).Inc()
	return code, nil
}

// classifyOTP checks the code first, so a consumed code reads as invalid
// even after the account is verified. Mismatch wins over expiry.
func classifyOTP(user *models.User, kind models.OTPKind, code string, now time.Time) error {
	stored, expiresAt := user.StoredOTP(kind)
	if code == "" || stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrInvalidCode
	}
	if kind == models.OTPVerification && user.IsVerified {
		return ErrAlreadyVerified
	}
	if expiresAt == nil || now.After(*expiresAt) {
		return ErrOTPExpired
	}
	return nil
}
