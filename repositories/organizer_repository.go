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
	ErrOrganizerNotFound      = errors.New("organizer not found")
	ErrOrganizerEmailConflict = errors.New("organizer email conflict")
)

type OrganizerRepository interface {
	Create(ctx context.Context, organizer *models.Organizer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organizer, error)
	GetByEmail(ctx context.Context, email string) (*models.Organizer, error)
	Update(ctx context.Context, organizer *models.Organizer) error
	List(ctx context.Context, limit, offset int) ([]models.Organizer, error)
}

type postgresOrganizerRepository struct {
	db *sql.DB
}

func NewPostgresOrganizerRepository(db *sql.DB) OrganizerRepository {
	return &postgresOrganizerRepository{db: db}
}

const organizerColumns = `id, name, email, password_hash, contact_number,
	document_image_key, holding_document_key, created_at, updated_at`

func (r *postgresOrganizerRepository) Create(ctx context.Context, o *models.Organizer) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	query := `
		INSERT INTO organizers (id, name, email, password_hash, contact_number, document_image_key, holding_document_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := executor(ctx, r.db).QueryRowContext(ctx, query,
		o.ID, o.Name, o.Email, o.PasswordHash, o.ContactNumber, o.DocumentImageKey, o.HoldingDocumentKey,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	return r.handleOrganizerError(err)
}

func (r *postgresOrganizerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organizer, error) {
	query := `SELECT ` + organizerColumns + ` FROM organizers WHERE id = $1`
	return scanOrganizer(executor(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *postgresOrganizerRepository) GetByEmail(ctx context.Context, email string) (*models.Organizer, error) {
	query := `SELECT ` + organizerColumns + ` FROM organizers WHERE email = $1`
	return scanOrganizer(executor(ctx, r.db).QueryRowContext(ctx, query, email))
}

func (r *postgresOrganizerRepository) Update(ctx context.Context, o *models.Organizer) error {
	query := `
		UPDATE organizers SET
			name = $1,
			email = $2,
			password_hash = $3,
			contact_number = $4,
			document_image_key = $5,
			holding_document_key = $6,
			updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at`

	err := executor(ctx, r.db).QueryRowContext(ctx, query,
		o.Name, o.Email, o.PasswordHash, o.ContactNumber, o.DocumentImageKey, o.HoldingDocumentKey, o.ID,
	).Scan(&o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOrganizerNotFound
	}
	return r.handleOrganizerError(err)
}

func (r *postgresOrganizerRepository) List(ctx context.Context, limit, offset int) ([]models.Organizer, error) {
	query := `SELECT ` + organizerColumns + ` FROM organizers ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := executor(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizers: %w", err)
	}
	defer rows.Close()

	organizers := make([]models.Organizer, 0)
	for rows.Next() {
		o, scanErr := scanOrganizer(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		organizers = append(organizers, *o)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return organizers, nil
}

func (r *postgresOrganizerRepository) handleOrganizerError(err error) error {
	if err == nil {
		return nil
	}
	if constraint, ok := uniqueViolation(err); ok && constraint == "organizers_email_key" {
		return ErrOrganizerEmailConflict
	}
	return fmt.Errorf("organizer query failed: %w", err)
}

func scanOrganizer(row rowScanner) (*models.Organizer, error) {
	o := &models.Organizer{}
	err := row.Scan(
		&o.ID, &o.Name, &o.Email, &o.PasswordHash, &o.ContactNumber,
		&o.DocumentImageKey, &o.HoldingDocumentKey, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrganizerNotFound
		}
		return nil, fmt.Errorf("failed to scan organizer: %w", err)
	}
	return o, nil
}
