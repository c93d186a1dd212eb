package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserEmailConflict = errors.New("user email conflict")
	// ErrOTPNotConsumed: the conditional update matched no row (code changed, cleared or expired meanwhile).
	ErrOTPNotConsumed = errors.New("otp was not consumed")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// SetOTP overwrites the stored code of the given kind.
	SetOTP(ctx context.Context, id uuid.UUID, kind models.OTPKind, code string, expiresAt time.Time) error
	// ConsumeOTP clears a matching, unexpired code in a single statement. For the
	// verification kind the account is marked verified; for the reset kind
	// newPasswordHash replaces the stored hash.
	ConsumeOTP(ctx context.Context, id uuid.UUID, kind models.OTPKind, code string, now time.Time, newPasswordHash string) error
	// List returns one page of users, newest first, and the total number of matches.
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

const userColumns = `id, name, email, password_hash, is_verified, is_admin,
	verify_otp, verify_otp_expires_at, reset_otp, reset_otp_expires_at, created_at, updated_at`

func (r *postgresUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	query := `
		INSERT INTO users (id, name, email, password_hash, is_verified, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := executor(ctx, r.db).QueryRowContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.IsVerified,
		user.IsAdmin,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "users_email_key" {
			return ErrUserEmailConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(executor(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(executor(ctx, r.db).QueryRowContext(ctx, query, email))
}

func (r *postgresUserRepository) SetOTP(ctx context.Context, id uuid.UUID, kind models.OTPKind, code string, expiresAt time.Time) error {
	query := `UPDATE users SET verify_otp = $1, verify_otp_expires_at = $2, updated_at = NOW() WHERE id = $3`
	if kind == models.OTPPasswordReset {
		query = `UPDATE users SET reset_otp = $1, reset_otp_expires_at = $2, updated_at = NOW() WHERE id = $3`
	}
	result, err := executor(ctx, r.db).ExecContext(ctx, query, code, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to store %s otp: %w", kind, err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) ConsumeOTP(ctx context.Context, id uuid.UUID, kind models.OTPKind, code string, now time.Time, newPasswordHash string) error {
	var (
		result sql.Result
		err    error
	)
	exec := executor(ctx, r.db)
	switch kind {
	case models.OTPVerification:
		query := `
			UPDATE users SET
				is_verified = TRUE,
				verify_otp = '',
				verify_otp_expires_at = NULL,
				updated_at = NOW()
			WHERE id = $1
			  AND verify_otp = $2
			  AND verify_otp <> ''
			  AND verify_otp_expires_at >= $3
			  AND is_verified = FALSE`
		result, err = exec.ExecContext(ctx, query, id, code, now)
	case models.OTPPasswordReset:
		query := `
			UPDATE users SET
				password_hash = $4,
				reset_otp = '',
				reset_otp_expires_at = NULL,
				updated_at = NOW()
			WHERE id = $1
			  AND reset_otp = $2
			  AND reset_otp <> ''
			  AND reset_otp_expires_at >= $3`
		result, err = exec.ExecContext(ctx, query, id, code, now, newPasswordHash)
	default:
		return fmt.Errorf("unknown otp kind %q", kind)
	}
	if err != nil {
		return fmt.Errorf("failed to consume %s otp: %w", kind, err)
	}
	return checkAffectedRows(result, ErrOTPNotConsumed)
}

func (r *postgresUserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	where := ""
	args := []interface{}{filter.Limit, filter.Offset}
	if filter.Search != "" {
		where = `WHERE name ILIKE $3 OR email ILIKE $3`
		args = append(args, "%"+filter.Search+"%")
	}
	query := `SELECT ` + userColumns + `, COUNT(*) OVER() FROM users ` + where + `
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	total := 0
	for rows.Next() {
		user, scanErr := scanUser(countingScanner{rows: rows, total: &total})
		if scanErr != nil {
			return nil, 0, scanErr
		}
		users = append(users, *user)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// countingScanner appends the COUNT(*) OVER() column to the destinations of scanUser.
type countingScanner struct {
	rows  *sql.Rows
	total *int
}

func (s countingScanner) Scan(dest ...interface{}) error {
	return s.rows.Scan(append(dest, s.total)...)
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var verifyExp, resetExp sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.IsVerified,
		&user.IsAdmin,
		&user.VerifyOTP,
		&verifyExp,
		&user.ResetOTP,
		&resetExp,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if verifyExp.Valid {
		t := verifyExp.Time
		user.VerifyOTPExpiresAt = &t
	}
	if resetExp.Valid {
		t := resetExp.Time
		user.ResetOTPExpiresAt = &t
	}
	return user, nil
}
