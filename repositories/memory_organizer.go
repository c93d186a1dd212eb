package repositories

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/models"
)

type memoryOrganizerRepository struct {
	store *MemoryStore
}

func NewMemoryOrganizerRepository(store *MemoryStore) OrganizerRepository {
	return &memoryOrganizerRepository{store: store}
}

func (r *memoryOrganizerRepository) emailTaken(email string, except uuid.UUID) bool {
	for id, o := range r.store.organizers {
		if id != except && strings.EqualFold(o.Email, email) {
			return true
		}
	}
	return false
}

func (r *memoryOrganizerRepository) Create(ctx context.Context, o *models.Organizer) error {
	s := r.store
	return s.write(ctx, func(log *undoLog) error {
		if r.emailTaken(o.Email, uuid.Nil) {
			return ErrOrganizerEmailConflict
		}
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
		now := s.now()
		o.CreatedAt, o.UpdatedAt = now, now
		stored := *o
		s.organizers[o.ID] = &stored
		id := o.ID
		log.add(func() { delete(s.organizers, id) })
		return nil
	})
}

func (r *memoryOrganizerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organizer, error) {
	var found *models.Organizer
	r.store.read(ctx, func() {
		if o, ok := r.store.organizers[id]; ok {
			c := *o
			found = &c
		}
	})
	if found == nil {
		return nil, ErrOrganizerNotFound
	}
	return found, nil
}

func (r *memoryOrganizerRepository) GetByEmail(ctx context.Context, email string) (*models.Organizer, error) {
	var found *models.Organizer
	r.store.read(ctx, func() {
		for _, o := range r.store.organizers {
			if strings.EqualFold(o.Email, email) {
				c := *o
				found = &c
				return
			}
		}
	})
	if found == nil {
		return nil, ErrOrganizerNotFound
	}
	return found, nil
}

func (r *memoryOrganizerRepository) Update(ctx context.Context, o *models.Organizer) error {
	s := r.store
	return s.write(ctx, func(log *undoLog) error {
		prev, ok := s.organizers[o.ID]
		if !ok {
			return ErrOrganizerNotFound
		}
		if r.emailTaken(o.Email, o.ID) {
			return ErrOrganizerEmailConflict
		}
		o.CreatedAt = prev.CreatedAt
		o.UpdatedAt = s.now()
		stored := *o
		s.organizers[o.ID] = &stored
		id := o.ID
		log.add(func() { s.organizers[id] = prev })
		return nil
	})
}

func (r *memoryOrganizerRepository) List(ctx context.Context, limit, offset int) ([]models.Organizer, error) {
	organizers := make([]models.Organizer, 0)
	r.store.read(ctx, func() {
		for _, o := range r.store.organizers {
			organizers = append(organizers, *o)
		}
	})
	sort.Slice(organizers, func(i, j int) bool {
		return organizers[i].CreatedAt.After(organizers[j].CreatedAt)
	})
	return page(organizers, limit, offset), nil
}
