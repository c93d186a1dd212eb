package repositories

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/models"
)

type memoryTournamentRepository struct {
	store *MemoryStore
}

func NewMemoryTournamentRepository(store *MemoryStore) TournamentRepository {
	return &memoryTournamentRepository{store: store}
}

func cloneTournament(t *models.Tournament) *models.Tournament {
	c := *t
	c.PrizePool.Distribution = append([]models.PrizeShare(nil), t.PrizePool.Distribution...)
	c.Rules = append([]models.Rule(nil), t.Rules...)
	c.Organizers = append([]models.TournamentOrganizer(nil), t.Organizers...)
	c.Platforms = append([]string(nil), t.Platforms...)
	c.Regions = append([]string(nil), t.Regions...)
	return &c
}

func (r *memoryTournamentRepository) slugTaken(slug string, except uuid.UUID) bool {
	for id, t := range r.store.tournaments {
		if id != except && t.Slug == slug {
			return true
		}
	}
	return false
}

func (r *memoryTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	s := r.store
	return s.write(ctx, func(log *undoLog) error {
		if r.slugTaken(t.Slug, uuid.Nil) {
			return ErrTournamentSlugConflict
		}
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		now := s.now()
		t.Version = 1
		t.CreatedAt, t.UpdatedAt = now, now
		s.tournaments[t.ID] = cloneTournament(t)
		id := t.ID
		log.add(func() { delete(s.tournaments, id) })
		return nil
	})
}

func (r *memoryTournamentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	var found *models.Tournament
	r.store.read(ctx, func() {
		if t, ok := r.store.tournaments[id]; ok {
			found = cloneTournament(t)
		}
	})
	if found == nil {
		return nil, ErrTournamentNotFound
	}
	return found, nil
}

func (r *memoryTournamentRepository) GetBySlug(ctx context.Context, slug string) (*models.Tournament, error) {
	var found *models.Tournament
	r.store.read(ctx, func() {
		for _, t := range r.store.tournaments {
			if t.Slug == slug {
				found = cloneTournament(t)
				return
			}
		}
	})
	if found == nil {
		return nil, ErrTournamentNotFound
	}
	return found, nil
}

func (r *memoryTournamentRepository) List(ctx context.Context, filter models.TournamentFilter) ([]models.Tournament, error) {
	search := strings.ToLower(filter.Search)
	tournaments := make([]models.Tournament, 0)
	r.store.read(ctx, func() {
		for _, t := range r.store.tournaments {
			if filter.Game != nil && t.Game != *filter.Game {
				continue
			}
			if filter.Status != nil && t.Registration.Status != *filter.Status {
				continue
			}
			if filter.OrganizerID != nil && !t.HasOrganizer(*filter.OrganizerID) {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(t.Title), search) {
				continue
			}
			tournaments = append(tournaments, *cloneTournament(t))
		}
	})
	sort.Slice(tournaments, func(i, j int) bool {
		if !tournaments[i].StartDate.Equal(tournaments[j].StartDate) {
			return tournaments[i].StartDate.Before(tournaments[j].StartDate)
		}
		return tournaments[i].CreatedAt.After(tournaments[j].CreatedAt)
	})
	return page(tournaments, filter.Limit, filter.Offset), nil
}

func (r *memoryTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	s := r.store
	return s.write(ctx, func(log *undoLog) error {
		prev, ok := s.tournaments[t.ID]
		if !ok {
			return ErrTournamentNotFound
		}
		if prev.Version != t.Version {
			return ErrTournamentVersionConflict
		}
		if r.slugTaken(t.Slug, t.ID) {
			return ErrTournamentSlugConflict
		}
		next := cloneTournament(t)
		next.CurrentTeams = prev.CurrentTeams
		next.CreatedAt = prev.CreatedAt
		next.Version = prev.Version + 1
		next.UpdatedAt = s.now()
		s.tournaments[t.ID] = next
		t.Version, t.UpdatedAt = next.Version, next.UpdatedAt
		id := t.ID
		log.add(func() { s.tournaments[id] = prev })
		return nil
	})
}

func (r *memoryTournamentRepository) IncrementTeams(ctx context.Context, id uuid.UUID) (*TeamCount, error) {
	var count *TeamCount
	s := r.store
	err := s.write(ctx, func(log *undoLog) error {
		prev, ok := s.tournaments[id]
		if !ok {
			return ErrTournamentNotFound
		}
		if prev.CurrentTeams >= prev.MaxTeams {
			return ErrTournamentCapacityReached
		}
		next := cloneTournament(prev)
		next.CurrentTeams++
		// a manually closed tournament stays closed
		if next.Registration.Status == models.RegistrationOpen && next.CurrentTeams >= next.MaxTeams {
			next.Registration.Status = models.RegistrationFull
		}
		next.Version++
		next.UpdatedAt = s.now()
		s.tournaments[id] = next
		log.add(func() { s.tournaments[id] = prev })
		count = &TeamCount{CurrentTeams: next.CurrentTeams, MaxTeams: next.MaxTeams, Status: next.Registration.Status}
		return nil
	})
	return count, err
}

func (r *memoryTournamentRepository) DecrementTeams(ctx context.Context, id uuid.UUID, now time.Time) (*TeamCount, error) {
	var count *TeamCount
	s := r.store
	err := s.write(ctx, func(log *undoLog) error {
		prev, ok := s.tournaments[id]
		if !ok || prev.CurrentTeams <= 0 {
			return ErrTournamentNotFound
		}
		next := cloneTournament(prev)
		next.CurrentTeams--
		if next.Registration.Status == models.RegistrationFull {
			if next.Registration.EndDate.Before(now) {
				next.Registration.Status = models.RegistrationClosed
			} else {
				next.Registration.Status = models.RegistrationOpen
			}
		}
		next.Version++
		next.UpdatedAt = s.now()
		s.tournaments[id] = next
		log.add(func() { s.tournaments[id] = prev })
		count = &TeamCount{CurrentTeams: next.CurrentTeams, MaxTeams: next.MaxTeams, Status: next.Registration.Status}
		return nil
	})
	return count, err
}

func (r *memoryTournamentRepository) CloseExpiredRegistrations(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	s := r.store
	err := s.write(ctx, func(log *undoLog) error {
		for id, prev := range s.tournaments {
			status := prev.Registration.Status
			if status == models.RegistrationClosed || !prev.Registration.EndDate.Before(now) {
				continue
			}
			next := cloneTournament(prev)
			next.Registration.Status = models.RegistrationClosed
			next.Version++
			next.UpdatedAt = s.now()
			s.tournaments[id] = next
			tid, old := id, prev
			log.add(func() { s.tournaments[tid] = old })
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}
