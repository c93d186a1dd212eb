package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/models"
)

// MemoryStore keeps every aggregate in process memory. It backs STORAGE_DRIVER=memory
// and the package tests. Writes are serialized with transactions; a failed
// transaction replays its undo log.
type MemoryStore struct {
	txMu sync.RWMutex
	mu   sync.RWMutex

	users       map[uuid.UUID]*models.User
	organizers  map[uuid.UUID]*models.Organizer
	tournaments map[uuid.UUID]*models.Tournament
	applicants  map[uuid.UUID]*models.Applicant

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[uuid.UUID]*models.User),
		organizers:  make(map[uuid.UUID]*models.Organizer),
		tournaments: make(map[uuid.UUID]*models.Tournament),
		applicants:  make(map[uuid.UUID]*models.Applicant),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type memoryTxKey struct{}

type undoLog struct {
	steps []func()
}

// add is a no-op outside a transaction.
func (l *undoLog) add(step func()) {
	if l != nil {
		l.steps = append(l.steps, step)
	}
}

func (l *undoLog) rollback() {
	for i := len(l.steps) - 1; i >= 0; i-- {
		l.steps[i]()
	}
	l.steps = nil
}

// Transactor returns the memory counterpart of the Postgres transactor.
func (s *MemoryStore) Transactor() Transactor {
	return memoryTransactor{store: s}
}

type memoryTransactor struct {
	store *MemoryStore
}

func (t memoryTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (txErr error) {
	if _, ok := ctx.Value(memoryTxKey{}).(*undoLog); ok {
		return fn(ctx)
	}

	s := t.store
	s.txMu.Lock()
	defer s.txMu.Unlock()

	log := &undoLog{}
	defer func() {
		if p := recover(); p != nil {
			s.mu.Lock()
			log.rollback()
			s.mu.Unlock()
			panic(p)
		} else if txErr != nil {
			s.mu.Lock()
			log.rollback()
			s.mu.Unlock()
		}
	}()

	return fn(context.WithValue(ctx, memoryTxKey{}, log))
}

// write runs fn under the data lock. Outside a transaction it also takes the
// transaction lock so a plain write never interleaves with a pending undo log.
func (s *MemoryStore) write(ctx context.Context, fn func(log *undoLog) error) error {
	if log, ok := ctx.Value(memoryTxKey{}).(*undoLog); ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(log)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(nil)
}

// read runs fn under the data read lock. Outside a transaction it first waits
// for running transactions, so it never observes writes that may roll back.
func (s *MemoryStore) read(ctx context.Context, fn func()) {
	if _, ok := ctx.Value(memoryTxKey{}).(*undoLog); !ok {
		s.txMu.RLock()
		defer s.txMu.RUnlock()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
