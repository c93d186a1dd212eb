package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/models"
	"github.com/letsplay/tournament-hub/repositories"
	"github.com/letsplay/tournament-hub/storage"
	"github.com/letsplay/tournament-hub/utils"
	"golang.org/x/sync/errgroup"
)

const (
	organizerDocumentPrefix = "organizers/documents"
	organizerHoldingPrefix  = "organizers/holding"
)

// FileInput — загруженный файл из multipart-формы.
type FileInput struct {
	Reader      io.Reader
	ContentType string
}

type OrganizerRegisterInput struct {
	Name            string     `json:"name" validate:"required,max=80"`
	Email           string     `json:"email" validate:"required,email"`
	Password        string     `json:"password" validate:"required,min=6,max=72"`
	ContactNumber   string     `json:"contactNumber" validate:"required,max=20"`
	DocumentImage   *FileInput `json:"documentImage" validate:"required"`
	HoldingDocument *FileInput `json:"holdingDocumentImage" validate:"required"`
}

type OrganizerUpdateInput struct {
	Name            *string    `json:"name" validate:"omitempty,max=80"`
	ContactNumber   *string    `json:"contactNumber" validate:"omitempty,max=20"`
	DocumentImage   *FileInput `json:"documentImage"`
	HoldingDocument *FileInput `json:"holdingDocumentImage"`
}

type OrganizerService interface {
	Register(ctx context.Context, input OrganizerRegisterInput) (*models.Organizer, error)
	Login(ctx context.Context, input LoginInput) (*models.Organizer, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Organizer, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, input OrganizerUpdateInput) (*models.Organizer, error)
	List(ctx context.Context, limit, offset int) ([]models.Organizer, error)
}

type organizerService struct {
	organizerRepo repositories.OrganizerRepository
	uploader      storage.FileUploader
	logger        *slog.Logger
}

func NewOrganizerService(organizerRepo repositories.OrganizerRepository, uploader storage.FileUploader, logger *slog.Logger) OrganizerService {
	return &organizerService{
		organizerRepo: organizerRepo,
		uploader:      uploader,
		logger:        logger,
	}
}

func (s *organizerService) Register(ctx context.Context, input OrganizerRegisterInput) (*models.Organizer, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if verr := validateStruct(input); verr != nil {
		return nil, verr
	}

	if _, err := s.organizerRepo.GetByEmail(ctx, input.Email); err == nil {
		return nil, ErrOrganizerEmailConflict
	} else if !errors.Is(err, repositories.ErrOrganizerNotFound) {
		return nil, fmt.Errorf("failed to check organizer email: %w", err)
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	docKey, holdingKey, err := s.uploadDocuments(ctx, input.DocumentImage, input.HoldingDocument)
	if err != nil {
		return nil, err
	}

	organizer := &models.Organizer{
		Name:               input.Name,
		Email:              input.Email,
		PasswordHash:       hash,
		ContactNumber:      input.ContactNumber,
		DocumentImageKey:   docKey,
		HoldingDocumentKey: holdingKey,
	}
	if err := s.organizerRepo.Create(ctx, organizer); err != nil {
		s.deleteKeys(ctx, docKey, holdingKey)
		return nil, handleRepositoryError(err)
	}

	s.logger.InfoContext(ctx, "organizer registered", slog.String("organizer_id", organizer.ID.String()))
	return s.present(organizer), nil
}

func (s *organizerService) Login(ctx context.Context, input LoginInput) (*models.Organizer, error) {
	input.Email = normalizeEmail(input.Email)
	if verr := validateStruct(input); verr != nil {
		return nil, verr
	}
	organizer, err := s.organizerRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrOrganizerNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find organizer by email: %w", err)
	}
	if !utils.CheckPasswordHash(input.Password, organizer.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.present(organizer), nil
}

func (s *organizerService) GetProfile(ctx context.Context, id uuid.UUID) (*models.Organizer, error) {
	organizer, err := s.organizerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return s.present(organizer), nil
}

// UpdateProfile overwrites the document keys only when a new file is supplied.
// Replaced objects are deleted after the row is saved.
func (s *organizerService) UpdateProfile(ctx context.Context, id uuid.UUID, input OrganizerUpdateInput) (*models.Organizer, error) {
	if verr := validateStruct(input); verr != nil {
		return nil, verr
	}
	organizer, err := s.organizerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, NewValidationError("name", "is required")
		}
		organizer.Name = name
	}
	if input.ContactNumber != nil {
		organizer.ContactNumber = *input.ContactNumber
	}

	docKey, holdingKey, err := s.uploadDocuments(ctx, input.DocumentImage, input.HoldingDocument)
	if err != nil {
		return nil, err
	}
	var replaced []string
	if docKey != "" {
		replaced = append(replaced, organizer.DocumentImageKey)
		organizer.DocumentImageKey = docKey
	}
	if holdingKey != "" {
		replaced = append(replaced, organizer.HoldingDocumentKey)
		organizer.HoldingDocumentKey = holdingKey
	}

	if err := s.organizerRepo.Update(ctx, organizer); err != nil {
		s.deleteKeys(ctx, docKey, holdingKey)
		return nil, handleRepositoryError(err)
	}
	s.deleteKeys(ctx, replaced...)
	return s.present(organizer), nil
}

func (s *organizerService) List(ctx context.Context, limit, offset int) ([]models.Organizer, error) {
	organizers, err := s.organizerRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	for i := range organizers {
		s.present(&organizers[i])
	}
	return organizers, nil
}

// uploadDocuments uploads whichever files are present concurrently. On failure
// every object uploaded by this call is removed again.
func (s *organizerService) uploadDocuments(ctx context.Context, document, holding *FileInput) (string, string, error) {
	var docKey, holdingKey string
	g, gctx := errgroup.WithContext(ctx)

	if document != nil {
		g.Go(func() error {
			key, err := s.upload(gctx, organizerDocumentPrefix, "documentImage", document)
			docKey = key
			return err
		})
	}
	if holding != nil {
		g.Go(func() error {
			key, err := s.upload(gctx, organizerHoldingPrefix, "holdingDocumentImage", holding)
			holdingKey = key
			return err
		})
	}

	if err := g.Wait(); err != nil {
		s.deleteKeys(ctx, docKey, holdingKey)
		return "", "", err
	}
	return docKey, holdingKey, nil
}

func (s *organizerService) upload(ctx context.Context, prefix, field string, file *FileInput) (string, error) {
	ext, err := storage.ExtensionFor(file.ContentType)
	if err != nil {
		return "", NewValidationError(field, "must be a JPEG, PNG, WEBP or PDF file")
	}
	key := storage.ObjectKey(prefix, ext)
	if _, err := s.uploader.Upload(ctx, key, file.ContentType, file.Reader); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", field, err)
	}
	return key, nil
}

func (s *organizerService) deleteKeys(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.uploader.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "failed to delete stored object", slog.String("key", key), slog.Any("error", err))
		}
	}
}

func (s *organizerService) present(o *models.Organizer) *models.Organizer {
	o.PasswordHash = ""
	o.DocumentImageURL = s.uploader.GetPublicURL(o.DocumentImageKey)
	o.HoldingDocumentURL = s.uploader.GetPublicURL(o.HoldingDocumentKey)
	return o
}
