package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/models"
)

type memoryUserRepository struct {
	store *MemoryStore
}

func NewMemoryUserRepository(store *MemoryStore) UserRepository {
	return &memoryUserRepository{store: store}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.VerifyOTPExpiresAt = cloneTime(u.VerifyOTPExpiresAt)
	c.ResetOTPExpiresAt = cloneTime(u.ResetOTPExpiresAt)
	return &c
}

func (r *memoryUserRepository) Create(ctx context.Context, user *models.User) error {
	s := r.store
	return s.write(ctx, func(log *undoLog) error {
		for _, existing := range s.users {
			if strings.EqualFold(existing.Email, user.Email) {
				return ErrUserEmailConflict
			}
		}
		if user.ID == uuid.Nil {
			user.ID = uuid.New()
		}
		now := s.now()
		user.CreatedAt, user.UpdatedAt = now, now
		s.users[user.ID] = cloneUser(user)
		id := user.ID
		log.add(func() { delete(s.users, id) })
		return nil
	})
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var found *models.User
	r.store.read(ctx, func() {
		if u, ok := r.store.users[id]; ok {
			found = cloneUser(u)
		}
	})
	if found == nil {
		return nil, ErrUserNotFound
	}
	return found, nil
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var found *models.User
	r.store.read(ctx, func() {
		for _, u := range r.store.users {
			if strings.EqualFold(u.Email, email) {
				found = cloneUser(u)
				return
			}
		}
	})
	if found == nil {
		return nil, ErrUserNotFound
	}
	return found, nil
}

func (r *memoryUserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	search := strings.ToLower(filter.Search)
	users := make([]models.User, 0)
	r.store.read(ctx, func() {
		for _, u := range r.store.users {
			if search != "" && !strings.Contains(strings.ToLower(u.Name), search) && !strings.Contains(strings.ToLower(u.Email), search) {
				continue
			}
			users = append(users, *cloneUser(u))
		}
	})
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return page(users, filter.Limit, filter.Offset), len(users), nil
}

func (r *memoryUserRepository) SetOTP(ctx context.Context, id uuid.UUID, kind models.OTPKind, code string, expiresAt time.Time) error {
	s := r.store
	return s.write(ctx, func(log *undoLog) error {
		u, ok := s.users[id]
		if !ok {
			return ErrUserNotFound
		}
		prev := cloneUser(u)
		exp := expiresAt
		switch kind {
		case models.OTPVerification:
			u.VerifyOTP, u.VerifyOTPExpiresAt = code, &exp
		case models.OTPPasswordReset:
			u.ResetOTP, u.ResetOTPExpiresAt = code, &exp
		default:
			return fmt.Errorf("unknown otp kind %q", kind)
		}
		u.UpdatedAt = s.now()
		log.add(func() { s.users[id] = prev })
		return nil
	})
}

func (r *memoryUserRepository) ConsumeOTP(ctx context.Context, id uuid.UUID, kind models.OTPKind, code string, now time.Time, newPasswordHash string) error {
	s := r.store
	return s.write(ctx, func(log *undoLog) error {
		u, ok := s.users[id]
		if !ok {
			return ErrOTPNotConsumed
		}
		stored, expiresAt := u.StoredOTP(kind)
		if stored == "" || stored != code || expiresAt == nil || now.After(*expiresAt) {
			return ErrOTPNotConsumed
		}
		prev := cloneUser(u)
		switch kind {
		case models.OTPVerification:
			if u.IsVerified {
				return ErrOTPNotConsumed
			}
			u.IsVerified = true
			u.VerifyOTP, u.VerifyOTPExpiresAt = "", nil
		case models.OTPPasswordReset:
			u.PasswordHash = newPasswordHash
			u.ResetOTP, u.ResetOTPExpiresAt = "", nil
		default:
			return fmt.Errorf("unknown otp kind %q", kind)
		}
		u.UpdatedAt = s.now()
		log.add(func() { s.users[id] = prev })
		return nil
	})
}
