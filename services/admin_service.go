package services

import (
	"context"
	"strings"

	"github.com/letsplay/tournament-hub/models"
	"github.com/letsplay/tournament-hub/repositories"
)

// AdminService backs the platform-admin endpoints.
type AdminService interface {
	ListUsers(ctx context.Context, filter models.UserFilter) (models.UserListResponse, error)
}

type adminService struct {
	userRepo repositories.UserRepository
}

func NewAdminService(userRepo repositories.UserRepository) AdminService {
	return &adminService{userRepo: userRepo}
}

func (s *adminService) ListUsers(ctx context.Context, filter models.UserFilter) (models.UserListResponse, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	users, total, err := s.userRepo.List(ctx, filter)
	if err != nil {
		return models.UserListResponse{}, handleRepositoryError(err)
	}

	for i := range users {
		users[i].PasswordHash = ""
		users[i].VerifyOTP, users[i].ResetOTP = "", ""
	}
	return models.UserListResponse{
		Users:      users,
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}
