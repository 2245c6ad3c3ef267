package record

import (
	"context"
	"sync"

	"neuramark/internal/did/models"
	id "neuramark/pkg/domain"
	"neuramark/pkg/platform/sentinel"
)

// InMemory keeps current-pointer records in a map guarded by a mutex. The
// mutex only makes single calls atomic; read-modify-write safety across calls
// comes from the version check in Update, exactly as with Postgres.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.AccountID]*models.Record
	dids    map[string]id.AccountID
}

func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[id.AccountID]*models.Record),
		dids:    make(map[string]id.AccountID),
	}
}

func (s *InMemory) FindByAccount(_ context.Context, accountID id.AccountID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *InMemory) FindByDID(_ context.Context, did string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accountID, ok := s.dids[did]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyRecord(s.records[accountID]), nil
}

func (s *InMemory) Create(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.AccountID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.dids[rec.DIDID]; ok {
		return sentinel.ErrConflict
	}
	s.records[rec.AccountID] = copyRecord(rec)
	s.dids[rec.DIDID] = rec.AccountID
	return nil
}

func (s *InMemory) Update(_ context.Context, rec *models.Record, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[rec.AccountID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	s.records[rec.AccountID] = copyRecord(rec)
	return nil
}

func copyRecord(rec *models.Record) *models.Record {
	c := *rec
	c.Document = *rec.Document.Clone()
	return &c
}
