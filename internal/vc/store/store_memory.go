package store

import (
	"context"
	"sync"

	"neuramark/internal/vc/models"
	"neuramark/pkg/platform/sentinel"
)

// InMemory holds issued credentials keyed by credential id.
type InMemory struct {
	mu          sync.RWMutex
	credentials map[string]*models.Credential
}

func NewInMemory() *InMemory {
	return &InMemory{credentials: make(map[string]*models.Credential)}
}

// Save stores cred, replacing an earlier issuance for the same proof.
func (s *InMemory) Save(_ context.Context, cred *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[cred.ID] = cred.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, credentialID string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.credentials[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cred.Clone(), nil
}
