package store

import (
	"context"
	"sync"

	"neuramark/internal/proof/models"
	id "neuramark/pkg/domain"
	"neuramark/pkg/platform/sentinel"
)

// InMemory is a proof store for tests and single-process runs.
type InMemory struct {
	mu     sync.RWMutex
	proofs map[id.ProofID]*models.Proof
}

func NewInMemory() *InMemory {
	return &InMemory{proofs: make(map[id.ProofID]*models.Proof)}
}

func (s *InMemory) FindByID(_ context.Context, proofID id.ProofID) (*models.Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proofs[proofID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *InMemory) Save(_ context.Context, proof *models.Proof) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proofs[proof.ProofID]; ok {
		return sentinel.ErrConflict
	}
	c := *proof
	s.proofs[proof.ProofID] = &c
	return nil
}

// AssignUser binds the proof to accountID unless it is bound to someone else.
func (s *InMemory) AssignUser(_ context.Context, proofID id.ProofID, accountID id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proofs[proofID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.HasOwner() && p.UserID != accountID {
		return sentinel.ErrConflict
	}
	p.UserID = accountID
	return nil
}
