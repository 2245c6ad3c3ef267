// Package service orchestrates credential issuance and verification:
// ownership check, anchor lookup, signing and storage.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"neuramark/internal/anchor"
	didmodels "neuramark/internal/did/models"
	"neuramark/internal/ownership"
	"neuramark/internal/platform/metrics"
	proofmodels "neuramark/internal/proof/models"
	"neuramark/internal/vc/issuer"
	"neuramark/internal/vc/models"
	"neuramark/internal/vc/verifier"
	id "neuramark/pkg/domain"
	dErrors "neuramark/pkg/domain-errors"
	"neuramark/pkg/platform/retry"
	"neuramark/pkg/platform/sentinel"
	"neuramark/pkg/requestcontext"
)

// lookupTimeout bounds the parallel proof and DID fetches.
const lookupTimeout = 10 * time.Second

type ProofReader interface {
	Get(ctx context.Context, proofID id.ProofID) (*proofmodels.Proof, error)
}

type DIDReader interface {
	Get(ctx context.Context, accountID id.AccountID) (*didmodels.Record, error)
}

type OwnershipResolver interface {
	Resolve(ctx context.Context, proof *proofmodels.Proof, accountID id.AccountID, accountWallets []string) (ownership.Result, error)
}

type Store interface {
	Save(ctx context.Context, cred *models.Credential) error
	FindByID(ctx context.Context, credentialID string) (*models.Credential, error)
}

type Service struct {
	proofs      ProofReader
	dids        DIDReader
	owners      OwnershipResolver
	anchors     anchor.Source
	issuer      *issuer.Issuer
	verifier    *verifier.Verifier
	store       Store
	retryPolicy retry.Policy
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Service) {
		s.retryPolicy = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// Deps groups the collaborators of Service.
type Deps struct {
	Proofs   ProofReader
	DIDs     DIDReader
	Owners   OwnershipResolver
	Anchors  anchor.Source
	Issuer   *issuer.Issuer
	Verifier *verifier.Verifier
	Store    Store
}

func New(deps Deps, opts ...Option) *Service {
	s := &Service{
		proofs:      deps.Proofs,
		dids:        deps.DIDs,
		owners:      deps.Owners,
		anchors:     deps.Anchors,
		issuer:      deps.Issuer,
		verifier:    deps.Verifier,
		store:       deps.Store,
		retryPolicy: retry.DefaultPolicy(),
		tracer:      otel.Tracer("neuramark/vc"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueForProof issues a signed credential for proofID to accountID, after
// confirming the account owns the proof. A wallet-based ownership match is
// migrated to a direct binding on the way.
func (s *Service) IssueForProof(ctx context.Context, accountID id.AccountID, proofID id.ProofID) (*models.Credential, error) {
	ctx, span := s.tracer.Start(ctx, "vc.IssueForProof", trace.WithAttributes(
		attribute.String("account_id", accountID.String()),
		attribute.String("proof_id", proofID.String()),
	))
	defer span.End()

	cred, err := s.issueForProof(ctx, accountID, proofID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return cred, nil
}

func (s *Service) issueForProof(ctx context.Context, accountID id.AccountID, proofID id.ProofID) (*models.Credential, error) {
	if accountID.IsNil() || proofID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "accountId and proofId are required")
	}

	proof, record, err := s.lookup(ctx, accountID, proofID)
	if err != nil {
		return nil, err
	}

	owned, err := s.owners.Resolve(ctx, proof, accountID, record.Document.Wallets)
	if err != nil {
		return nil, err
	}
	if !owned.Owned {
		s.logAudit(ctx, "credential_issuance_denied",
			"account_id", accountID.String(),
			"proof_id", proofID.String(),
		)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "account does not own this proof")
	}

	a, err := s.anchor(ctx, proof)
	if err != nil {
		return nil, err
	}
	if a.Provisional && s.logger != nil {
		s.logger.WarnContext(ctx, "issuing with provisional anchor",
			"proof_id", proofID.String(),
			"tx_hash", a.TransactionHash,
		)
	}

	unsigned, err := s.issuer.Issue(ctx, proof, record.DIDID, a)
	if err != nil {
		return nil, err
	}
	cred, err := s.issuer.Sign(ctx, unsigned)
	if err != nil {
		return nil, err
	}

	err = retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		return s.store.Save(ctx, cred)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to store credential")
	}

	s.logAudit(ctx, "credential_issued",
		"account_id", accountID.String(),
		"proof_id", proofID.String(),
		"credential_id", cred.ID,
		"migrated", owned.Migrated,
	)
	if s.metrics != nil {
		s.metrics.IncrementCredentialsIssued()
	}
	return cred, nil
}

// lookup fetches the proof and the account's DID record in parallel.
func (s *Service) lookup(ctx context.Context, accountID id.AccountID, proofID id.ProofID) (*proofmodels.Proof, *didmodels.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	var (
		proof  *proofmodels.Proof
		record *didmodels.Record
	)
	g.Go(func() error {
		p, err := s.proofs.Get(ctx, proofID)
		if err != nil {
			return err
		}
		proof = p
		return nil
	})
	g.Go(func() error {
		r, err := s.dids.Get(ctx, accountID)
		if err != nil {
			return err
		}
		record = r
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return proof, record, nil
}

func (s *Service) anchor(ctx context.Context, proof *proofmodels.Proof) (anchor.Anchor, error) {
	var a anchor.Anchor
	err := retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		found, err := s.anchors.Anchor(ctx, proof)
		if err != nil {
			return err
		}
		a = found
		return nil
	})
	switch {
	case err == nil:
		return a, nil
	case errors.Is(err, anchor.ErrNotAnchored):
		return anchor.Anchor{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "proof is not anchored on chain")
	case errors.Is(err, sentinel.ErrNotFound):
		return anchor.Anchor{}, dErrors.New(dErrors.CodeNotFound, "proof transaction not found on chain")
	default:
		return anchor.Anchor{}, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to read proof anchor")
	}
}

// Get returns a stored credential by id.
func (s *Service) Get(ctx context.Context, credentialID string) (*models.Credential, error) {
	var cred *models.Credential
	err := retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		c, err := s.store.FindByID(ctx, credentialID)
		if err != nil {
			return err
		}
		cred = c
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to load credential")
	}
	return cred, nil
}

// Verify parses input and reports its verification outcome, status and
// summary. Only unparseable input is an error.
func (s *Service) Verify(ctx context.Context, input any) (*models.Report, error) {
	cred, err := verifier.Parse(input)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	result := s.verifier.Verify(cred)
	report := &models.Report{
		VerificationResult: result,
		StatusView:         verifier.Status(cred, result, now),
		Summary:            verifier.Summarize(cred),
		VerifiedAt:         now.UTC(),
	}
	if s.metrics != nil {
		s.metrics.IncrementVerification(string(report.Status))
	}
	s.logAudit(ctx, "credential_verified",
		"credential_id", cred.ID,
		"verified", result.Verified,
		"reason", string(result.Reason),
	)
	return report, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, event, attrs...)
}
