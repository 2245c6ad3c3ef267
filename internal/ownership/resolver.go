// Package ownership decides whether an account owns a proof.
//
// A proof is owned directly when its userId names the account, or
// transitively when the wallet that registered it is linked to the account.
// The first successful wallet match binds the proof to the account, after
// which the direct rule applies.
package ownership

import (
	"context"
	"errors"
	"log/slog"

	didmodels "neuramark/internal/did/models"
	"neuramark/internal/platform/metrics"
	"neuramark/internal/proof/models"
	id "neuramark/pkg/domain"
	dErrors "neuramark/pkg/domain-errors"
	"neuramark/pkg/platform/retry"
	"neuramark/pkg/platform/sentinel"
)

// OwnerStore binds a proof to an account. It must only succeed when the
// proof is unbound or already bound to the same account.
type OwnerStore interface {
	AssignUser(ctx context.Context, proofID id.ProofID, accountID id.AccountID) error
}

type Result struct {
	Owned    bool
	Migrated bool
}

type Resolver struct {
	owners      OwnerStore
	retryPolicy retry.Policy
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(r *Resolver) {
		r.retryPolicy = p
	}
}

func New(owners OwnerStore, opts ...Option) *Resolver {
	r := &Resolver{owners: owners, retryPolicy: retry.DefaultPolicy()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve reports whether accountID owns proof. A wallet-based match is
// migrated to a direct binding and reported with Migrated set; calling again
// with the reloaded proof yields Owned without Migrated.
func (r *Resolver) Resolve(ctx context.Context, proof *models.Proof, accountID id.AccountID, accountWallets []string) (Result, error) {
	if proof == nil || accountID.IsNil() {
		return Result{}, dErrors.New(dErrors.CodeInvalidInput, "proof and account are required")
	}
	if proof.HasOwner() {
		return Result{Owned: proof.UserID == accountID}, nil
	}
	if !walletLinked(proof.Wallet, accountWallets) {
		return Result{}, nil
	}

	err := retry.Do(ctx, r.retryPolicy, func(ctx context.Context) error {
		return r.owners.AssignUser(ctx, proof.ProofID, accountID)
	})
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrConflict):
		// bound to another account between our read and write
		if r.logger != nil {
			r.logger.WarnContext(ctx, "proof ownership taken concurrently",
				"proof_id", proof.ProofID.String(),
				"account_id", accountID.String(),
			)
		}
		return Result{}, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return Result{}, dErrors.New(dErrors.CodeNotFound, "proof not found")
	default:
		return Result{}, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to migrate proof ownership")
	}

	proof.UserID = accountID
	if r.logger != nil {
		r.logger.InfoContext(ctx, "proof_ownership_migrated",
			"proof_id", proof.ProofID.String(),
			"account_id", accountID.String(),
			"wallet", proof.Wallet,
		)
	}
	if r.metrics != nil {
		r.metrics.IncrementOwnershipMigrations()
	}
	return Result{Owned: true, Migrated: true}, nil
}

func walletLinked(wallet string, accountWallets []string) bool {
	if wallet == "" {
		return false
	}
	for _, w := range accountWallets {
		if didmodels.SameWallet(w, wallet) {
			return true
		}
	}
	return false
}
