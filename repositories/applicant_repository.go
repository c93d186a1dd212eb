package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/models"
)

var (
	ErrApplicantNotFound = errors.New("applicant not found")
	ErrApplicantConflict = errors.New("applicant conflict")
	// ErrApplicantStatusChanged: the row exists but its status is no longer the expected one.
	ErrApplicantStatusChanged = errors.New("applicant status changed concurrently")
)

type ApplicantRepository interface {
	Create(ctx context.Context, a *models.Applicant) error
	GetByID(ctx context.Context, tournamentID, id uuid.UUID) (*models.Applicant, error)
	ListByTournament(ctx context.Context, tournamentID uuid.UUID, filter models.ApplicantFilter) ([]models.Applicant, error)
	CountByStatus(ctx context.Context, tournamentID uuid.UUID, status models.ApplicantStatus) (int, error)
	// UpdateStatus moves the applicant from -> to only if it is still in from.
	UpdateStatus(ctx context.Context, tournamentID, id uuid.UUID, from, to models.ApplicantStatus) (*models.Applicant, error)
	SetPaymentVerified(ctx context.Context, tournamentID, id uuid.UUID, verified bool) (*models.Applicant, error)
}

type postgresApplicantRepository struct {
	db *sql.DB
}

func NewPostgresApplicantRepository(db *sql.DB) ApplicantRepository {
	return &postgresApplicantRepository{db: db}
}

const applicantColumns = `
	id, tournament_id, team_name, captain_user_id, captain_name, captain_email, captain_phone,
	members, payment_proof_key, esewa_number, esewa_name, payment_verified, status, applied_at, updated_at`

func (r *postgresApplicantRepository) Create(ctx context.Context, a *models.Applicant) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Members == nil {
		a.Members = []models.TeamMember{}
	}
	members, err := marshalJSON(a.Members)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO applicants (
			id, tournament_id, team_name, captain_user_id, captain_name, captain_email, captain_phone,
			members, payment_proof_key, esewa_number, esewa_name, payment_verified, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING applied_at, updated_at`

	err = executor(ctx, r.db).QueryRowContext(ctx, query,
		a.ID, a.TournamentID, a.TeamName, a.Captain.UserID, a.Captain.Name, a.Captain.Email, a.Captain.Phone,
		members, a.Payment.ProofKey, a.Payment.EsewaNumber, a.Payment.EsewaName, a.Payment.Verified, a.Status,
	).Scan(&a.AppliedAt, &a.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			switch constraint {
			case "applicants_tournament_team_name_key", "applicants_tournament_captain_key":
				return ErrApplicantConflict
			}
		}
		return fmt.Errorf("failed to create applicant: %w", err)
	}
	return nil
}

func (r *postgresApplicantRepository) GetByID(ctx context.Context, tournamentID, id uuid.UUID) (*models.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE tournament_id = $1 AND id = $2`
	return scanApplicant(executor(ctx, r.db).QueryRowContext(ctx, query, tournamentID, id))
}

func (r *postgresApplicantRepository) ListByTournament(ctx context.Context, tournamentID uuid.UUID, filter models.ApplicantFilter) ([]models.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	argID := 2

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND (team_name ILIKE $%d OR captain_name ILIKE $%d OR captain_email ILIKE $%d)", argID, argID, argID)
		args = append(args, "%"+filter.Search+"%")
		argID++
	}

	query += " ORDER BY applied_at ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applicants: %w", err)
	}
	defer rows.Close()

	applicants := make([]models.Applicant, 0)
	for rows.Next() {
		a, scanErr := scanApplicant(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		applicants = append(applicants, *a)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return applicants, nil
}

func (r *postgresApplicantRepository) CountByStatus(ctx context.Context, tournamentID uuid.UUID, status models.ApplicantStatus) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM applicants WHERE tournament_id = $1 AND status = $2`
	if err := executor(ctx, r.db).QueryRowContext(ctx, query, tournamentID, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count applicants: %w", err)
	}
	return count, nil
}

func (r *postgresApplicantRepository) UpdateStatus(ctx context.Context, tournamentID, id uuid.UUID, from, to models.ApplicantStatus) (*models.Applicant, error) {
	query := `
		UPDATE applicants SET status = $4, updated_at = NOW()
		WHERE tournament_id = $1 AND id = $2 AND status = $3
		RETURNING ` + applicantColumns

	a, err := scanApplicant(executor(ctx, r.db).QueryRowContext(ctx, query, tournamentID, id, from, to))
	if errors.Is(err, ErrApplicantNotFound) {
		if _, getErr := r.GetByID(ctx, tournamentID, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrApplicantStatusChanged
	}
	return a, err
}

func (r *postgresApplicantRepository) SetPaymentVerified(ctx context.Context, tournamentID, id uuid.UUID, verified bool) (*models.Applicant, error) {
	query := `
		UPDATE applicants SET payment_verified = $3, updated_at = NOW()
		WHERE tournament_id = $1 AND id = $2
		RETURNING ` + applicantColumns
	return scanApplicant(executor(ctx, r.db).QueryRowContext(ctx, query, tournamentID, id, verified))
}

func scanApplicant(row rowScanner) (*models.Applicant, error) {
	a := &models.Applicant{}
	var members []byte
	err := row.Scan(
		&a.ID, &a.TournamentID, &a.TeamName,
		&a.Captain.UserID, &a.Captain.Name, &a.Captain.Email, &a.Captain.Phone,
		&members, &a.Payment.ProofKey, &a.Payment.EsewaNumber, &a.Payment.EsewaName, &a.Payment.Verified,
		&a.Status, &a.AppliedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrApplicantNotFound
		}
		return nil, fmt.Errorf("failed to scan applicant: %w", err)
	}
	if err := unmarshalJSON(members, &a.Members); err != nil {
		return nil, err
	}
	return a, nil
}
