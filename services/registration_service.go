package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/authz"
	"github.com/letsplay/tournament-hub/live"
	"github.com/letsplay/tournament-hub/metrics"
	"github.com/letsplay/tournament-hub/models"
	"github.com/letsplay/tournament-hub/repositories"
	"github.com/letsplay/tournament-hub/storage"
)

const paymentProofPrefix = "payments"

// ApplicationInput — заявка команды (multipart-форма).
type ApplicationInput struct {
	TeamName          string              `json:"teamName" validate:"required,max=80"`
	CaptainName       string              `json:"name" validate:"required,max=80"`
	CaptainEmail      string              `json:"email" validate:"required,email"`
	CaptainPhone      string              `json:"phone" validate:"required,max=20"`
	EsewaNumber       string              `json:"esewaNumber" validate:"required,max=20"`
	EsewaName         string              `json:"esewaName" validate:"required,max=80"`
	Members           []models.TeamMember `json:"members" validate:"dive"`
	PaymentScreenshot *FileInput          `json:"paymentScreenshot" validate:"required"`
}

type RegistrationService interface {
	SubmitApplication(ctx context.Context, tournamentID uuid.UUID, identity *models.Identity, input ApplicationInput) (*models.Applicant, error)
	UpdateApplicantStatus(ctx context.Context, tournamentID, applicantID uuid.UUID, status models.ApplicantStatus, actor *models.Identity) (*models.Applicant, error)
	SetPaymentVerified(ctx context.Context, tournamentID, applicantID uuid.UUID, verified bool, actor *models.Identity) (*models.Applicant, error)
	GetApplicant(ctx context.Context, tournamentID, applicantID uuid.UUID, actor *models.Identity) (*models.Applicant, error)
	ListApplicants(ctx context.Context, tournamentID uuid.UUID, filter models.ApplicantFilter, actor *models.Identity) ([]models.Applicant, error)
	// ListApprovedTeams returns the approved roster; callers gate access themselves.
	ListApprovedTeams(ctx context.Context, tournamentID uuid.UUID) ([]models.Applicant, error)
	ExportApplicants(ctx context.Context, tournamentID uuid.UUID, actor *models.Identity) (*ApplicantExport, error)
}

type registrationService struct {
	tournaments    TournamentService
	tournamentRepo repositories.TournamentRepository
	applicantRepo  repositories.ApplicantRepository
	transactor     repositories.Transactor
	uploader       storage.FileUploader
	publisher      live.Publisher
	logger         *slog.Logger
}

func NewRegistrationService(
	tournaments TournamentService,
	tournamentRepo repositories.TournamentRepository,
	applicantRepo repositories.ApplicantRepository,
	transactor repositories.Transactor,
	uploader storage.FileUploader,
	publisher live.Publisher,
	logger *slog.Logger,
) RegistrationService {
	if publisher == nil {
		publisher = live.NopPublisher{}
	}
	return &registrationService{
		tournaments:    tournaments,
		tournamentRepo: tournamentRepo,
		applicantRepo:  applicantRepo,
		transactor:     transactor,
		uploader:       uploader,
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *registrationService) SubmitApplication(ctx context.Context, tournamentID uuid.UUID, identity *models.Identity, input ApplicationInput) (*models.Applicant, error) {
	if identity == nil {
		return nil, ErrUnauthenticated
	}

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if err := authz.RegistrationWindowOpen(t, s.tournaments.Now()); err != nil {
		return nil, err
	}
	switch t.Registration.Status {
	case models.RegistrationClosed:
		return nil, ErrRegistrationClosed
	case models.RegistrationFull:
		return nil, ErrTournamentFull
	}

	input.TeamName = strings.TrimSpace(input.TeamName)
	input.CaptainName = strings.TrimSpace(input.CaptainName)
	input.CaptainEmail = normalizeEmail(input.CaptainEmail)
	input.CaptainPhone = strings.TrimSpace(input.CaptainPhone)
	if verr := validateStruct(input); verr.HasErrors() {
		return nil, verr
	}
	teamSize := 1 + len(input.Members)
	if teamSize < t.MinTeamSize || teamSize > t.MaxTeamSize {
		return nil, NewValidationError("members",
			fmt.Sprintf("team size %d is outside the allowed range %d-%d", teamSize, t.MinTeamSize, t.MaxTeamSize))
	}

	ext, err := storage.ExtensionFor(input.PaymentScreenshot.ContentType)
	if err != nil {
		return nil, NewValidationError("paymentScreenshot", "must be a JPEG, PNG, WEBP or PDF file")
	}
	proofKey := storage.ObjectKey(paymentProofPrefix+"/"+t.ID.String(), ext)
	if _, err := s.uploader.Upload(ctx, proofKey, input.PaymentScreenshot.ContentType, input.PaymentScreenshot.Reader); err != nil {
		return nil, fmt.Errorf("failed to upload payment screenshot: %w", err)
	}

	applicant := &models.Applicant{
		TournamentID: t.ID,
		TeamName:     input.TeamName,
		Captain: models.Captain{
			UserID: identity.ID,
			Name:   input.CaptainName,
			Email:  input.CaptainEmail,
			Phone:  input.CaptainPhone,
		},
		Members: nonNilSlice(input.Members),
		Payment: models.Payment{
			ProofKey:    proofKey,
			EsewaNumber: strings.TrimSpace(input.EsewaNumber),
			EsewaName:   strings.TrimSpace(input.EsewaName),
		},
		Status: models.ApplicantPending,
	}
	if err := s.applicantRepo.Create(ctx, applicant); err != nil {
		if delErr := s.uploader.Delete(ctx, proofKey); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete orphaned payment proof", slog.String("key", proofKey), slog.Any("error", delErr))
		}
		return nil, handleRepositoryError(err)
	}

	metrics.ApplicationsSubmitted.Inc()
	s.logger.InfoContext(ctx, "application submitted",
		slog.String("tournament_id", t.ID.String()),
		slog.String("applicant_id", applicant.ID.String()),
		slog.String("team_name", applicant.TeamName))
	s.publisher.PublishTournament(t.ID, live.EventApplicantSubmitted, map[string]interface{}{
		"applicant_id": applicant.ID,
		"team_name":    applicant.TeamName,
	})
	return s.present(applicant), nil
}

// UpdateApplicantStatus applies the status change and the team counter change in one transaction.
func (s *registrationService) UpdateApplicantStatus(ctx context.Context, tournamentID, applicantID uuid.UUID, status models.ApplicantStatus, actor *models.Identity) (applicant *models.Applicant, err error) {
	defer func() {
		metrics.ApplicantTransitions.WithLabelValues(string(status), metrics.Outcome(err, ErrorKind)).Inc()
	}()

	if !status.Valid() {
		return nil, NewValidationError("status", "must be one of: Pending, Approved, Rejected")
	}
	if status == models.ApplicantPending {
		return nil, fmt.Errorf("%w: an application cannot be moved back to Pending", ErrInvalidStatusTransition)
	}
	if _, err := s.loadManaged(ctx, tournamentID, actor); err != nil {
		return nil, err
	}

	var (
		count    *repositories.TeamCount
		previous models.ApplicantStatus
	)
	err = s.transactor.WithinTx(ctx, func(txCtx context.Context) error {
		current, err := s.applicantRepo.GetByID(txCtx, tournamentID, applicantID)
		if err != nil {
			return handleRepositoryError(err)
		}
		previous = current.Status
		if current.Status == status {
			applicant = current
			return nil
		}

		updated, err := s.applicantRepo.UpdateStatus(txCtx, tournamentID, applicantID, current.Status, status)
		if err != nil {
			return handleRepositoryError(err)
		}
		switch {
		case status == models.ApplicantApproved:
			count, err = s.tournaments.IncrementTeamCount(txCtx, tournamentID)
		case current.Status == models.ApplicantApproved:
			count, err = s.tournaments.DecrementTeamCount(txCtx, tournamentID)
		}
		if err != nil {
			return err
		}
		applicant = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if previous != status {
		s.logger.InfoContext(ctx, "applicant status changed",
			slog.String("tournament_id", tournamentID.String()),
			slog.String("applicant_id", applicantID.String()),
			slog.String("from", string(previous)),
			slog.String("to", string(status)),
			slog.String("actor_id", actor.ID.String()))
		s.publisher.PublishTournament(tournamentID, live.EventApplicantStatusChanged, map[string]interface{}{
			"applicant_id": applicantID,
			"status":       status,
		})
	}
	if count != nil {
		s.publisher.PublishTournament(tournamentID, live.EventRegistrationUpdated, map[string]interface{}{
			"current_teams": count.CurrentTeams,
			"max_teams":     count.MaxTeams,
			"status":        count.Status,
		})
	}
	return s.present(applicant), nil
}

func (s *registrationService) SetPaymentVerified(ctx context.Context, tournamentID, applicantID uuid.UUID, verified bool, actor *models.Identity) (*models.Applicant, error) {
	if _, err := s.loadManaged(ctx, tournamentID, actor); err != nil {
		return nil, err
	}
	applicant, err := s.applicantRepo.SetPaymentVerified(ctx, tournamentID, applicantID, verified)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	s.logger.InfoContext(ctx, "payment verification updated",
		slog.String("applicant_id", applicantID.String()),
		slog.Bool("verified", verified))
	return s.present(applicant), nil
}

func (s *registrationService) GetApplicant(ctx context.Context, tournamentID, applicantID uuid.UUID, actor *models.Identity) (*models.Applicant, error) {
	if _, err := s.loadManaged(ctx, tournamentID, actor); err != nil {
		return nil, err
	}
	applicant, err := s.applicantRepo.GetByID(ctx, tournamentID, applicantID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return s.present(applicant), nil
}

func (s *registrationService) ListApplicants(ctx context.Context, tournamentID uuid.UUID, filter models.ApplicantFilter, actor *models.Identity) ([]models.Applicant, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, NewValidationError("status", "must be one of: Pending, Approved, Rejected")
	}
	if _, err := s.loadManaged(ctx, tournamentID, actor); err != nil {
		return nil, err
	}
	applicants, err := s.applicantRepo.ListByTournament(ctx, tournamentID, filter)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	for i := range applicants {
		s.present(&applicants[i])
	}
	return applicants, nil
}

func (s *registrationService) ListApprovedTeams(ctx context.Context, tournamentID uuid.UUID) ([]models.Applicant, error) {
	approved := models.ApplicantApproved
	applicants, err := s.applicantRepo.ListByTournament(ctx, tournamentID, models.ApplicantFilter{Status: &approved})
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	for i := range applicants {
		// payment details stay with the organizers
		applicants[i].Payment = models.Payment{Verified: applicants[i].Payment.Verified}
		applicants[i].Captain.Phone = ""
	}
	return applicants, nil
}

func (s *registrationService) loadManaged(ctx context.Context, tournamentID uuid.UUID, actor *models.Identity) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if err := authz.CanManageTournament(actor, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *registrationService) present(a *models.Applicant) *models.Applicant {
	if a != nil && a.Payment.ProofKey != "" {
		a.Payment.ProofURL = s.uploader.GetPublicURL(a.Payment.ProofKey)
	}
	return a
}
