package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/letsplay/tournament-hub/authz"
	"github.com/letsplay/tournament-hub/live"
	"github.com/letsplay/tournament-hub/metrics"
	"github.com/letsplay/tournament-hub/models"
	"github.com/letsplay/tournament-hub/repositories"
	"golang.org/x/sync/errgroup"
)

const slugAttempts = 3

// TournamentInput — тело запроса на создание турнира.
type TournamentInput struct {
	Title              string                    `json:"title"`
	Game               models.Game               `json:"game"`
	Description        string                    `json:"description"`
	StartDate          time.Time                 `json:"start_date"`
	EndDate            time.Time                 `json:"end_date"`
	PrizePool          models.PrizePool          `json:"prize_pool"`
	EntryFee           models.EntryFee           `json:"entry_fee"`
	MaxTeams           int                       `json:"max_teams"`
	RegistrationStart  time.Time                 `json:"registration_start"`
	RegistrationEnd    time.Time                 `json:"registration_end"`
	RegistrationStatus models.RegistrationStatus `json:"registration_status,omitempty"`
	Rules              []models.Rule             `json:"rules"`
	Format             models.TournamentFormat   `json:"format"`
	MinTeamSize        int                       `json:"min_team_size"`
	MaxTeamSize        int                       `json:"max_team_size"`
	Platforms          []string                  `json:"platforms"`
	Regions            []string                  `json:"regions"`
}

// TournamentDetails is the public detail view.
type TournamentDetails struct {
	*models.Tournament
	ApprovedTeams       int `json:"approved_teams"`
	PendingApplications int `json:"pending_applications"`
	SeatsLeft           int `json:"seats_left"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, creator *models.Identity, input TournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, idOrSlug string) (*TournamentDetails, error)
	GetTournamentByID(ctx context.Context, id uuid.UUID) (*models.Tournament, error)
	ListTournaments(ctx context.Context, filter models.TournamentFilter) ([]models.Tournament, error)
	EditTournament(ctx context.Context, id uuid.UUID, patch models.TournamentUpdate, actor *models.Identity) (*models.Tournament, error)
	SetRegistrationStatus(ctx context.Context, id uuid.UUID, status models.RegistrationStatus, actor *models.Identity) (*models.Tournament, error)
	AddOrganizer(ctx context.Context, id uuid.UUID, organizer models.TournamentOrganizer, actor *models.Identity) (*models.Tournament, error)
	RemoveOrganizer(ctx context.Context, id uuid.UUID, userID uuid.UUID, actor *models.Identity) (*models.Tournament, error)
	// IncrementTeamCount and DecrementTeamCount join the transaction carried by ctx, if any.
	IncrementTeamCount(ctx context.Context, id uuid.UUID) (*repositories.TeamCount, error)
	DecrementTeamCount(ctx context.Context, id uuid.UUID) (*repositories.TeamCount, error)
	CloseExpiredRegistrations(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	Now() time.Time
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	applicantRepo  repositories.ApplicantRepository
	userRepo       repositories.UserRepository
	organizerRepo  repositories.OrganizerRepository
	publisher      live.Publisher
	logger         *slog.Logger
	now            func() time.Time
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	applicantRepo repositories.ApplicantRepository,
	userRepo repositories.UserRepository,
	organizerRepo repositories.OrganizerRepository,
	publisher live.Publisher,
	logger *slog.Logger,
	now func() time.Time,
) TournamentService {
	if publisher == nil {
		publisher = live.NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		applicantRepo:  applicantRepo,
		userRepo:       userRepo,
		organizerRepo:  organizerRepo,
		publisher:      publisher,
		logger:         logger,
		now:            now,
	}
}

func (s *tournamentService) Now() time.Time {
	return s.now()
}

func (s *tournamentService) CreateTournament(ctx context.Context, creator *models.Identity, input TournamentInput) (*models.Tournament, error) {
	if err := authz.CanCreateTournament(creator); err != nil {
		return nil, err
	}

	status := input.RegistrationStatus
	if status == "" {
		status = models.RegistrationOpen
	}
	if status != models.RegistrationOpen && status != models.RegistrationClosed {
		return nil, NewValidationError("registration_status", "must be open or closed")
	}
	if input.MinTeamSize == 0 {
		input.MinTeamSize = 1
	}
	if input.MaxTeamSize == 0 {
		input.MaxTeamSize = input.MinTeamSize
	}

	t := &models.Tournament{
		Title:        strings.TrimSpace(input.Title),
		Game:         input.Game,
		Description:  strings.TrimSpace(input.Description),
		StartDate:    input.StartDate.UTC(),
		EndDate:      input.EndDate.UTC(),
		PrizePool:    normalizePrizePool(input.PrizePool),
		EntryFee:     input.EntryFee,
		MaxTeams:     input.MaxTeams,
		CurrentTeams: 0,
		Registration: models.RegistrationWindow{
			Status:    status,
			StartDate: input.RegistrationStart.UTC(),
			EndDate:   input.RegistrationEnd.UTC(),
		},
		Rules:       nonNilSlice(input.Rules),
		Format:      input.Format,
		Organizers:  []models.TournamentOrganizer{{UserID: creator.ID, Role: models.OrganizerRoleAdmin}},
		MinTeamSize: input.MinTeamSize,
		MaxTeamSize: input.MaxTeamSize,
		Platforms:   nonNilSlice(input.Platforms),
		Regions:     nonNilSlice(input.Regions),
	}

	if err := validateTournament(t); err != nil {
		return nil, err
	}
	if verr := checkStartInFuture(t, s.now()); verr != nil {
		return nil, verr
	}

	base := slug.Make(t.Title)
	if base == "" {
		base = "tournament"
	}
	var err error
	for attempt := 0; attempt < slugAttempts; attempt++ {
		t.ID = uuid.Nil
		t.Slug = base
		if attempt > 0 {
			t.Slug = base + "-" + uuid.NewString()[:8]
		}
		err = s.tournamentRepo.Create(ctx, t)
		if !errors.Is(err, repositories.ErrTournamentSlugConflict) {
			break
		}
	}
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	s.logger.InfoContext(ctx, "tournament created",
		slog.String("tournament_id", t.ID.String()),
		slog.String("slug", t.Slug),
		slog.String("creator_id", creator.ID.String()))
	return t, nil
}

// GetTournament accepts a UUID or a slug. Counts are loaded concurrently with the tournament when the id is known.
func (s *tournamentService) GetTournament(ctx context.Context, idOrSlug string) (*TournamentDetails, error) {
	details := &TournamentDetails{}

	id, parseErr := uuid.Parse(idOrSlug)
	if parseErr != nil {
		t, err := s.tournamentRepo.GetBySlug(ctx, idOrSlug)
		if err != nil {
			return nil, handleRepositoryError(err)
		}
		id = t.ID
		details.Tournament = t
	}

	g, gctx := errgroup.WithContext(ctx)
	if details.Tournament == nil {
		g.Go(func() error {
			t, err := s.tournamentRepo.GetByID(gctx, id)
			if err != nil {
				return handleRepositoryError(err)
			}
			details.Tournament = t
			return nil
		})
	}
	g.Go(func() error {
		n, err := s.applicantRepo.CountByStatus(gctx, id, models.ApplicantApproved)
		details.ApprovedTeams = n
		return err
	})
	g.Go(func() error {
		n, err := s.applicantRepo.CountByStatus(gctx, id, models.ApplicantPending)
		details.PendingApplications = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	details.SeatsLeft = details.Tournament.SeatsLeft()
	return details, nil
}

func (s *tournamentService) GetTournamentByID(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return t, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, filter models.TournamentFilter) ([]models.Tournament, error) {
	if filter.Game != nil && !filter.Game.Valid() {
		return nil, NewValidationError("game", "must be one of: "+joinEnum(models.Games))
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, NewValidationError("status", "must be one of: open, closed, full")
	}
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return tournaments, nil
}

func (s *tournamentService) EditTournament(ctx context.Context, id uuid.UUID, patch models.TournamentUpdate, actor *models.Identity) (*models.Tournament, error) {
	if patch.Empty() {
		return nil, NewValidationError("body", "no fields to update")
	}

	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if err := authz.CanManageTournament(actor, t); err != nil {
		return nil, err
	}

	applyTournamentPatch(t, patch)
	now := s.now()
	t.Registration.Status = deriveRegistrationStatus(t, now)

	if err := validateTournament(t); err != nil {
		return nil, err
	}
	if patch.StartDate != nil {
		if verr := checkStartInFuture(t, now); verr != nil {
			return nil, verr
		}
	}

	if err := s.tournamentRepo.Update(ctx, t); err != nil {
		return nil, handleRepositoryError(err)
	}

	s.logger.InfoContext(ctx, "tournament edited", slog.String("tournament_id", t.ID.String()), slog.String("actor_id", actor.ID.String()))
	s.publisher.PublishTournament(t.ID, live.EventTournamentUpdated, t)
	return t, nil
}

// SetRegistrationStatus handles manual open/close. Reopening is refused once the
// window has ended; reopening at capacity leaves the tournament full.
func (s *tournamentService) SetRegistrationStatus(ctx context.Context, id uuid.UUID, status models.RegistrationStatus, actor *models.Identity) (*models.Tournament, error) {
	if status != models.RegistrationOpen && status != models.RegistrationClosed {
		return nil, NewValidationError("status", "must be open or closed")
	}

	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if err := authz.CanManageTournament(actor, t); err != nil {
		return nil, err
	}

	current := t.Registration.Status
	switch {
	case status == models.RegistrationClosed && current == models.RegistrationClosed:
		return t, nil
	case status == models.RegistrationOpen && current != models.RegistrationClosed:
		return t, nil
	case status == models.RegistrationOpen && s.now().After(t.Registration.EndDate):
		return nil, fmt.Errorf("%w: registration window ended at %s", ErrInvalidRegistrationState, t.Registration.EndDate.Format(time.RFC3339))
	}

	t.Registration.Status = status
	if status == models.RegistrationOpen && t.CurrentTeams >= t.MaxTeams {
		t.Registration.Status = models.RegistrationFull
	}
	if err := s.tournamentRepo.Update(ctx, t); err != nil {
		return nil, handleRepositoryError(err)
	}

	s.logger.InfoContext(ctx, "registration status changed",
		slog.String("tournament_id", t.ID.String()),
		slog.String("from", string(current)),
		slog.String("to", string(t.Registration.Status)))
	s.publishCount(t.ID, &repositories.TeamCount{CurrentTeams: t.CurrentTeams, MaxTeams: t.MaxTeams, Status: t.Registration.Status})
	return t, nil
}

// AddOrganizer adds userID with role, or changes the role of an existing co-organizer.
func (s *tournamentService) AddOrganizer(ctx context.Context, id uuid.UUID, organizer models.TournamentOrganizer, actor *models.Identity) (*models.Tournament, error) {
	if !organizer.Role.Valid() {
		return nil, NewValidationError("role", "must be one of: admin, moderator, observer")
	}
	if organizer.UserID == uuid.Nil {
		return nil, NewValidationError("user_id", "is required")
	}

	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if err := authz.CanManageOrganizers(actor, t); err != nil {
		return nil, err
	}
	if err := s.ensurePrincipalExists(ctx, organizer.UserID); err != nil {
		return nil, err
	}

	updated := false
	for i := range t.Organizers {
		if t.Organizers[i].UserID == organizer.UserID {
			t.Organizers[i].Role = organizer.Role
			updated = true
		}
	}
	if !updated {
		t.Organizers = append(t.Organizers, organizer)
	}
	if !hasAdminOrganizer(t.Organizers) {
		return nil, ErrLastTournamentAdmin
	}

	if err := s.tournamentRepo.Update(ctx, t); err != nil {
		return nil, handleRepositoryError(err)
	}
	s.logger.InfoContext(ctx, "tournament organizer set",
		slog.String("tournament_id", t.ID.String()),
		slog.String("user_id", organizer.UserID.String()),
		slog.String("role", string(organizer.Role)))
	return t, nil
}

func (s *tournamentService) RemoveOrganizer(ctx context.Context, id uuid.UUID, userID uuid.UUID, actor *models.Identity) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if err := authz.CanManageOrganizers(actor, t); err != nil {
		return nil, err
	}

	kept := make([]models.TournamentOrganizer, 0, len(t.Organizers))
	for _, o := range t.Organizers {
		if o.UserID != userID {
			kept = append(kept, o)
		}
	}
	if len(kept) == len(t.Organizers) {
		return nil, fmt.Errorf("%w: user is not an organizer of this tournament", ErrNotFound)
	}
	if !hasAdminOrganizer(kept) {
		return nil, ErrLastTournamentAdmin
	}
	t.Organizers = kept

	if err := s.tournamentRepo.Update(ctx, t); err != nil {
		return nil, handleRepositoryError(err)
	}
	s.logger.InfoContext(ctx, "tournament organizer removed", slog.String("tournament_id", t.ID.String()), slog.String("user_id", userID.String()))
	return t, nil
}

func (s *tournamentService) IncrementTeamCount(ctx context.Context, id uuid.UUID) (*repositories.TeamCount, error) {
	count, err := s.tournamentRepo.IncrementTeams(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if count.Status == models.RegistrationFull {
		s.logger.InfoContext(ctx, "tournament reached capacity", slog.String("tournament_id", id.String()), slog.Int("max_teams", count.MaxTeams))
	}
	return count, nil
}

func (s *tournamentService) DecrementTeamCount(ctx context.Context, id uuid.UUID) (*repositories.TeamCount, error) {
	count, err := s.tournamentRepo.DecrementTeams(ctx, id, s.now())
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return count, nil
}

func (s *tournamentService) CloseExpiredRegistrations(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	ids, err := s.tournamentRepo.CloseExpiredRegistrations(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to close expired registrations: %w", err)
	}
	for _, id := range ids {
		metrics.RegistrationsClosed.Inc()
		s.publisher.PublishTournament(id, live.EventRegistrationUpdated, map[string]string{"status": string(models.RegistrationClosed)})
	}
	if len(ids) > 0 {
		s.logger.InfoContext(ctx, "registration windows closed", slog.Int("count", len(ids)))
	}
	return ids, nil
}

func (s *tournamentService) publishCount(id uuid.UUID, count *repositories.TeamCount) {
	s.publisher.PublishTournament(id, live.EventRegistrationUpdated, map[string]interface{}{
		"current_teams": count.CurrentTeams,
		"max_teams":     count.MaxTeams,
		"status":        count.Status,
	})
}

func (s *tournamentService) ensurePrincipalExists(ctx context.Context, id uuid.UUID) error {
	_, err := s.organizerRepo.GetByID(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repositories.ErrOrganizerNotFound) {
		return err
	}
	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return fmt.Errorf("%w: no user or organizer with id %s", ErrNotFound, id)
		}
		return err
	}
	return nil
}

func hasAdminOrganizer(organizers []models.TournamentOrganizer) bool {
	for _, o := range organizers {
		if o.Role == models.OrganizerRoleAdmin {
			return true
		}
	}
	return false
}

func applyTournamentPatch(t *models.Tournament, p models.TournamentUpdate) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Game != nil {
		t.Game = *p.Game
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.StartDate != nil {
		t.StartDate = p.StartDate.UTC()
	}
	if p.EndDate != nil {
		t.EndDate = p.EndDate.UTC()
	}
	if p.PrizePool != nil {
		t.PrizePool = normalizePrizePool(*p.PrizePool)
	}
	if p.EntryFee != nil {
		t.EntryFee = *p.EntryFee
	}
	if p.MaxTeams != nil {
		t.MaxTeams = *p.MaxTeams
	}
	if p.RegistrationStart != nil {
		t.Registration.StartDate = p.RegistrationStart.UTC()
	}
	if p.RegistrationEnd != nil {
		t.Registration.EndDate = p.RegistrationEnd.UTC()
	}
	if p.Rules != nil {
		t.Rules = nonNilSlice(*p.Rules)
	}
	if p.Format != nil {
		t.Format = *p.Format
	}
	if p.MinTeamSize != nil {
		t.MinTeamSize = *p.MinTeamSize
	}
	if p.MaxTeamSize != nil {
		t.MaxTeamSize = *p.MaxTeamSize
	}
	if p.Platforms != nil {
		t.Platforms = nonNilSlice(*p.Platforms)
	}
	if p.Regions != nil {
		t.Regions = nonNilSlice(*p.Regions)
	}
}

// normalizePrizePool fills share currencies from the pool currency.
func normalizePrizePool(p models.PrizePool) models.PrizePool {
	p.Distribution = nonNilSlice(p.Distribution)
	for i := range p.Distribution {
		if p.Distribution[i].Currency == "" {
			p.Distribution[i].Currency = p.Currency
		}
	}
	return p
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
