package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/models"
	"github.com/letsplay/tournament-hub/repositories"
	"github.com/letsplay/tournament-hub/utils"
)

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	// ResolveIdentity turns a validated session into the request identity.
	ResolveIdentity(ctx context.Context, session *Session) (*models.Identity, error)
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=80"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authService struct {
	userRepo      repositories.UserRepository
	organizerRepo repositories.OrganizerRepository
	email         *EmailService
	logger        *slog.Logger
}

func NewAuthService(
	userRepo repositories.UserRepository,
	organizerRepo repositories.OrganizerRepository,
	email *EmailService,
	logger *slog.Logger,
) AuthService {
	return &authService{
		userRepo:      userRepo,
		organizerRepo: organizerRepo,
		email:         email,
		logger:        logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if verr := validateStruct(input); verr != nil {
		return nil, verr
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hashedPassword,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, handleRepositoryError(err)
	}

	// Приветственное письмо не должно ломать регистрацию.
	if err := s.email.SendWelcomeEmail(ctx, user.Name, user.Email); err != nil {
		s.logger.WarnContext(ctx, "failed to send welcome email", slog.String("user_id", user.ID.String()), slog.Any("error", err))
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*models.User, error) {
	input.Email = normalizeEmail(input.Email)
	if verr := validateStruct(input); verr != nil {
		return nil, verr
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if !utils.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *authService) ResolveIdentity(ctx context.Context, session *Session) (*models.Identity, error) {
	switch session.Kind {
	case models.PrincipalUser:
		user, err := s.userRepo.GetByID(ctx, session.Subject)
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", ErrInvalidToken)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user identity: %w", err)
		}
		return &models.Identity{ID: user.ID, Kind: models.PrincipalUser, Name: user.Name, Email: user.Email, IsAdmin: user.IsAdmin}, nil
	case models.PrincipalOrganizer:
		organizer, err := s.organizerRepo.GetByID(ctx, session.Subject)
		if errors.Is(err, repositories.ErrOrganizerNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", ErrInvalidToken)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve organizer identity: %w", err)
		}
		return &models.Identity{ID: organizer.ID, Kind: models.PrincipalOrganizer, Name: organizer.Name, Email: organizer.Email}, nil
	default:
		return nil, ErrInvalidToken
	}
}
