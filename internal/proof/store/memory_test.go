package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"neuramark/internal/proof/models"
	"neuramark/pkg/platform/sentinel"
)

type ProofStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestProofStoreSuite(t *testing.T) {
	suite.Run(t, new(ProofStoreSuite))
}

func (s *ProofStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.Require().NoError(s.store.Save(s.ctx, &models.Proof{
		ProofID:    "p1",
		OutputHash: "0xout",
		TxHash:     "0xtx",
		Wallet:     "0xabcdef0123456789abcdef0123456789abcdef01",
		CreatedAt:  time.Now(),
	}))
}

func (s *ProofStoreSuite) TestSave() {
	s.Run("duplicate proof id is a conflict", func() {
		err := s.store.Save(s.ctx, &models.Proof{ProofID: "p1"})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown proof is not found", func() {
		_, err := s.store.FindByID(s.ctx, "p404")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ProofStoreSuite) TestAssignUser() {
	s.Run("binds an unowned proof", func() {
		s.Require().NoError(s.store.AssignUser(s.ctx, "p1", "u1"))
		p, err := s.store.FindByID(s.ctx, "p1")
		s.Require().NoError(err)
		s.Equal("u1", p.UserID.String())
	})

	s.Run("repeating the same binding succeeds", func() {
		s.NoError(s.store.AssignUser(s.ctx, "p1", "u1"))
	})

	s.Run("rebinding to another account is a conflict", func() {
		s.ErrorIs(s.store.AssignUser(s.ctx, "p1", "u2"), sentinel.ErrConflict)
		p, err := s.store.FindByID(s.ctx, "p1")
		s.Require().NoError(err)
		s.Equal("u1", p.UserID.String())
	})

	s.Run("missing proof is not found", func() {
		s.ErrorIs(s.store.AssignUser(s.ctx, "p404", "u1"), sentinel.ErrNotFound)
	})
}
