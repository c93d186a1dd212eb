package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound        = errors.New("tournament not found")
	ErrTournamentSlugConflict    = errors.New("tournament slug conflict")
	ErrTournamentVersionConflict = errors.New("tournament version conflict")
	ErrTournamentCapacityReached = errors.New("tournament capacity reached")
)

// TeamCount is the post-update capacity state returned by the counter updates.
type TeamCount struct {
	CurrentTeams int
	MaxTeams     int
	Status       models.RegistrationStatus
}

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tournament, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tournament, error)
	List(ctx context.Context, filter models.TournamentFilter) ([]models.Tournament, error)
	// Update writes every editable field if t.Version still matches the stored
	// version, and bumps the version. current_teams is never written here.
	Update(ctx context.Context, t *models.Tournament) error
	// IncrementTeams adds one team only while current_teams < max_teams and
	// flips the registration status to full in the same statement.
	IncrementTeams(ctx context.Context, id uuid.UUID) (*TeamCount, error)
	// DecrementTeams frees one seat; a full tournament re-opens if its window
	// has not ended yet, otherwise it closes.
	DecrementTeams(ctx context.Context, id uuid.UUID, now time.Time) (*TeamCount, error)
	CloseExpiredRegistrations(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `
	id, slug, title, game, description, start_date, end_date, prize_pool, entry_fee,
	max_teams, current_teams, registration_status, registration_start, registration_end,
	rules, format, organizers, min_team_size, max_team_size, platforms, regions,
	version, created_at, updated_at`

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	prizePool, entryFee, rules, organizers, err := encodeTournamentDocs(t)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tournaments (
			id, slug, title, game, description, start_date, end_date, prize_pool, entry_fee,
			max_teams, current_teams, registration_status, registration_start, registration_end,
			rules, format, organizers, min_team_size, max_team_size, platforms, regions
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING version, created_at, updated_at`

	err = executor(ctx, r.db).QueryRowContext(ctx, query,
		t.ID, t.Slug, t.Title, t.Game, t.Description, t.StartDate, t.EndDate, prizePool, entryFee,
		t.MaxTeams, t.CurrentTeams, t.Registration.Status, t.Registration.StartDate, t.Registration.EndDate,
		rules, t.Format, organizers, t.MinTeamSize, t.MaxTeamSize, pq.Array(t.Platforms), pq.Array(t.Regions),
	).Scan(&t.Version, &t.CreatedAt, &t.UpdatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	return scanTournament(executor(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) GetBySlug(ctx context.Context, slug string) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE slug = $1`
	return scanTournament(executor(ctx, r.db).QueryRowContext(ctx, query, slug))
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter models.TournamentFilter) ([]models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.Game != nil {
		query += fmt.Sprintf(" AND game = $%d", argID)
		args = append(args, *filter.Game)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND registration_status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.OrganizerID != nil {
		query += fmt.Sprintf(" AND organizers @> jsonb_build_array(jsonb_build_object('user_id', $%d::text))", argID)
		args = append(args, filter.OrganizerID.String())
		argID++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND title ILIKE $%d", argID)
		args = append(args, "%"+filter.Search+"%")
		argID++
	}

	query += " ORDER BY start_date ASC, created_at DESC"

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
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	prizePool, entryFee, rules, organizers, err := encodeTournamentDocs(t)
	if err != nil {
		return err
	}

	query := `
		UPDATE tournaments SET
			slug = $1,
			title = $2,
			game = $3,
			description = $4,
			start_date = $5,
			end_date = $6,
			prize_pool = $7,
			entry_fee = $8,
			max_teams = $9,
			registration_status = $10,
			registration_start = $11,
			registration_end = $12,
			rules = $13,
			format = $14,
			organizers = $15,
			min_team_size = $16,
			max_team_size = $17,
			platforms = $18,
			regions = $19,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $20 AND version = $21
		RETURNING version, updated_at`

	err = executor(ctx, r.db).QueryRowContext(ctx, query,
		t.Slug, t.Title, t.Game, t.Description, t.StartDate, t.EndDate, prizePool, entryFee,
		t.MaxTeams, t.Registration.Status, t.Registration.StartDate, t.Registration.EndDate,
		rules, t.Format, organizers, t.MinTeamSize, t.MaxTeamSize, pq.Array(t.Platforms), pq.Array(t.Regions),
		t.ID, t.Version,
	).Scan(&t.Version, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		if exists, existsErr := r.exists(ctx, t.ID); existsErr != nil {
			return existsErr
		} else if !exists {
			return ErrTournamentNotFound
		}
		return ErrTournamentVersionConflict
	}
	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) IncrementTeams(ctx context.Context, id uuid.UUID) (*TeamCount, error) {
	query := `
		UPDATE tournaments SET
			current_teams = current_teams + 1,
			registration_status = CASE
				WHEN registration_status = 'open' AND current_teams + 1 >= max_teams THEN 'full'
				ELSE registration_status
			END,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND current_teams < max_teams
		RETURNING current_teams, max_teams, registration_status`

	count := &TeamCount{}
	err := executor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&count.CurrentTeams, &count.MaxTeams, &count.Status)
	if errors.Is(err, sql.ErrNoRows) {
		if exists, existsErr := r.exists(ctx, id); existsErr != nil {
			return nil, existsErr
		} else if !exists {
			return nil, ErrTournamentNotFound
		}
		return nil, ErrTournamentCapacityReached
	}
	if err != nil {
		return nil, fmt.Errorf("failed to increment team count for tournament %s: %w", id, err)
	}
	return count, nil
}

func (r *postgresTournamentRepository) DecrementTeams(ctx context.Context, id uuid.UUID, now time.Time) (*TeamCount, error) {
	query := `
		UPDATE tournaments SET
			current_teams = current_teams - 1,
			registration_status = CASE
				WHEN registration_status = 'full' AND registration_end >= $2 THEN 'open'
				WHEN registration_status = 'full' THEN 'closed'
				ELSE registration_status
			END,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND current_teams > 0
		RETURNING current_teams, max_teams, registration_status`

	count := &TeamCount{}
	err := executor(ctx, r.db).QueryRowContext(ctx, query, id, now).Scan(&count.CurrentTeams, &count.MaxTeams, &count.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTournamentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decrement team count for tournament %s: %w", id, err)
	}
	return count, nil
}

func (r *postgresTournamentRepository) CloseExpiredRegistrations(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE tournaments SET
			registration_status = 'closed',
			version = version + 1,
			updated_at = NOW()
		WHERE registration_status IN ('open', 'full') AND registration_end < $1
		RETURNING id`

	rows, err := executor(ctx, r.db).QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to close expired registrations: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresTournamentRepository) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := executor(ctx, r.db).QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tournaments WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tournament existence: %w", err)
	}
	return exists, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if constraint, ok := uniqueViolation(err); ok && constraint == "tournaments_slug_key" {
		return ErrTournamentSlugConflict
	}
	return fmt.Errorf("tournament query failed: %w", err)
}

func encodeTournamentDocs(t *models.Tournament) (prizePool, entryFee, rules, organizers []byte, err error) {
	if prizePool, err = marshalJSON(t.PrizePool); err != nil {
		return
	}
	if entryFee, err = marshalJSON(t.EntryFee); err != nil {
		return
	}
	if t.Rules == nil {
		t.Rules = []models.Rule{}
	}
	if rules, err = marshalJSON(t.Rules); err != nil {
		return
	}
	organizers, err = marshalJSON(t.Organizers)
	return
}

func scanTournament(row rowScanner) (*models.Tournament, error) {
	t := &models.Tournament{}
	var prizePool, entryFee, rules, organizers []byte
	err := row.Scan(
		&t.ID, &t.Slug, &t.Title, &t.Game, &t.Description, &t.StartDate, &t.EndDate, &prizePool, &entryFee,
		&t.MaxTeams, &t.CurrentTeams, &t.Registration.Status, &t.Registration.StartDate, &t.Registration.EndDate,
		&rules, &t.Format, &organizers, &t.MinTeamSize, &t.MaxTeamSize, pq.Array(&t.Platforms), pq.Array(&t.Regions),
		&t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament: %w", err)
	}
	if err := unmarshalJSON(prizePool, &t.PrizePool); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(entryFee, &t.EntryFee); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(rules, &t.Rules); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(organizers, &t.Organizers); err != nil {
		return nil, err
	}
	return t, nil
}
