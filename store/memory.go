package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mdfalcon104/survey-response-sync/model"
)

// MemoryStore is an in-process ResponseStore backed by a mutex-guarded map.
// It satisfies the same durability-after-restart contract trivially (there
// is no restart within a process) and is used by engine/cleanup unit tests
// that don't want a database/sql + CGO-free-sqlite dependency in their
// critical path.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*model.ResponseRecord
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*model.ResponseRecord)}
}

func (s *MemoryStore) InsertOrReplace(_ context.Context, record *model.ResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := record.Clone()
	if existing, ok := s.records[record.ID]; ok {
		next.FarmerID = existing.FarmerID
		next.CreatedAt = existing.CreatedAt
		next.AnswersJSON = existing.AnswersJSON
	}
	s.records[record.ID] = next
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*model.ResponseRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

func (s *MemoryStore) GetPending(_ context.Context) ([]*model.ResponseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]*model.ResponseRecord, 0, len(s.records))
	for _, r := range s.records {
		if r.Status == model.StatusPending || r.Status == model.StatusFailedRetryable {
			pending = append(pending, r.Clone())
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt != pending[j].CreatedAt {
			return pending[i].CreatedAt < pending[j].CreatedAt
		}
		return pending[i].ID < pending[j].ID
	})

	return pending, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status model.Status, retryCount int, lastAttemptAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil
	}

	r.Status = status
	r.RetryCount = retryCount
	r.LastAttemptAt = &lastAttemptAt
	return nil
}

func (s *MemoryStore) MarkSynced(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil
	}

	r.Status = model.StatusSynced
	r.MediaPaths = nil
	return nil
}

func (s *MemoryStore) DeleteSyncedBefore(_ context.Context, ts int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, r := range s.records {
		if r.Status == model.StatusSynced && r.CreatedAt < ts {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.records)), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
