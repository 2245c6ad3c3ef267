package service

import (
	"context"
	"errors"
	"log/slog"

	"neuramark/internal/proof/models"
	id "neuramark/pkg/domain"
	dErrors "neuramark/pkg/domain-errors"
	"neuramark/pkg/platform/retry"
	"neuramark/pkg/platform/sentinel"
)

type Store interface {
	FindByID(ctx context.Context, proofID id.ProofID) (*models.Proof, error)
	Save(ctx context.Context, proof *models.Proof) error
	AssignUser(ctx context.Context, proofID id.ProofID, accountID id.AccountID) error
}

// Service records proofs handed over by the registration subsystem and serves
// them to issuance.
type Service struct {
	store       Store
	retryPolicy retry.Policy
	logger      *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Service) {
		s.retryPolicy = p
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, retryPolicy: retry.DefaultPolicy()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register stores a proof. Re-registering the same anchored proof returns the
// stored copy; a different proof under a taken id is a Conflict.
func (s *Service) Register(ctx context.Context, proof *models.Proof) (*models.Proof, error) {
	if err := proof.Validate(); err != nil {
		return nil, err
	}
	err := retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		return s.store.Save(ctx, proof)
	})
	if err == nil {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "proof_registered",
				"proof_id", proof.ProofID.String(),
				"tx_hash", proof.TxHash,
			)
		}
		return proof, nil
	}
	if !errors.Is(err, sentinel.ErrConflict) {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to save proof")
	}

	existing, err := s.Get(ctx, proof.ProofID)
	if err != nil {
		return nil, err
	}
	if existing.TxHash != proof.TxHash || existing.OutputHash != proof.OutputHash {
		return nil, dErrors.New(dErrors.CodeConflict, "proof id already registered with different content")
	}
	return existing, nil
}

// Get loads a proof by id.
func (s *Service) Get(ctx context.Context, proofID id.ProofID) (*models.Proof, error) {
	var proof *models.Proof
	err := retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		p, err := s.store.FindByID(ctx, proofID)
		if err != nil {
			return err
		}
		proof = p
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "proof not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to load proof")
	}
	return proof, nil
}
