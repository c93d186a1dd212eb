package repositories

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/models"
)

type memoryApplicantRepository struct {
	store *MemoryStore
}

func NewMemoryApplicantRepository(store *MemoryStore) ApplicantRepository {
	return &memoryApplicantRepository{store: store}
}

func cloneApplicant(a *models.Applicant) *models.Applicant {
	c := *a
	c.Members = append([]models.TeamMember(nil), a.Members...)
	return &c
}

func (r *memoryApplicantRepository) Create(ctx context.Context, a *models.Applicant) error {
	s := r.store
	return s.write(ctx, func(log *undoLog) error {
		for _, existing := range s.applicants {
			if existing.TournamentID != a.TournamentID {
				continue
			}
			if strings.EqualFold(existing.TeamName, a.TeamName) || existing.Captain.UserID == a.Captain.UserID {
				return ErrApplicantConflict
			}
		}
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if a.Members == nil {
			a.Members = []models.TeamMember{}
		}
		now := s.now()
		a.AppliedAt, a.UpdatedAt = now, now
		s.applicants[a.ID] = cloneApplicant(a)
		id := a.ID
		log.add(func() { delete(s.applicants, id) })
		return nil
	})
}

func (r *memoryApplicantRepository) GetByID(ctx context.Context, tournamentID, id uuid.UUID) (*models.Applicant, error) {
	var found *models.Applicant
	r.store.read(ctx, func() {
		if a, ok := r.store.applicants[id]; ok && a.TournamentID == tournamentID {
			found = cloneApplicant(a)
		}
	})
	if found == nil {
		return nil, ErrApplicantNotFound
	}
	return found, nil
}

func (r *memoryApplicantRepository) ListByTournament(ctx context.Context, tournamentID uuid.UUID, filter models.ApplicantFilter) ([]models.Applicant, error) {
	search := strings.ToLower(filter.Search)
	applicants := make([]models.Applicant, 0)
	r.store.read(ctx, func() {
		for _, a := range r.store.applicants {
			if a.TournamentID != tournamentID {
				continue
			}
			if filter.Status != nil && a.Status != *filter.Status {
				continue
			}
			if search != "" &&
				!strings.Contains(strings.ToLower(a.TeamName), search) &&
				!strings.Contains(strings.ToLower(a.Captain.Name), search) &&
				!strings.Contains(strings.ToLower(a.Captain.Email), search) {
				continue
			}
			applicants = append(applicants, *cloneApplicant(a))
		}
	})
	sort.Slice(applicants, func(i, j int) bool {
		return applicants[i].AppliedAt.Before(applicants[j].AppliedAt)
	})
	return page(applicants, filter.Limit, filter.Offset), nil
}

func (r *memoryApplicantRepository) CountByStatus(ctx context.Context, tournamentID uuid.UUID, status models.ApplicantStatus) (int, error) {
	count := 0
	r.store.read(ctx, func() {
		for _, a := range r.store.applicants {
			if a.TournamentID == tournamentID && a.Status == status {
				count++
			}
		}
	})
	return count, nil
}

func (r *memoryApplicantRepository) UpdateStatus(ctx context.Context, tournamentID, id uuid.UUID, from, to models.ApplicantStatus) (*models.Applicant, error) {
	var updated *models.Applicant
	s := r.store
	err := s.write(ctx, func(log *undoLog) error {
		prev, ok := s.applicants[id]
		if !ok || prev.TournamentID != tournamentID {
			return ErrApplicantNotFound
		}
		if prev.Status != from {
			return ErrApplicantStatusChanged
		}
		next := cloneApplicant(prev)
		next.Status = to
		next.UpdatedAt = s.now()
		s.applicants[id] = next
		log.add(func() { s.applicants[id] = prev })
		updated = cloneApplicant(next)
		return nil
	})
	return updated, err
}

func (r *memoryApplicantRepository) SetPaymentVerified(ctx context.Context, tournamentID, id uuid.UUID, verified bool) (*models.Applicant, error) {
	var updated *models.Applicant
	s := r.store
	err := s.write(ctx, func(log *undoLog) error {
		prev, ok := s.applicants[id]
		if !ok || prev.TournamentID != tournamentID {
			return ErrApplicantNotFound
		}
		next := cloneApplicant(prev)
		next.Payment.Verified = verified
		next.UpdatedAt = s.now()
		s.applicants[id] = next
		log.add(func() { s.applicants[id] = prev })
		updated = cloneApplicant(next)
		return nil
	})
	return updated, err
}
