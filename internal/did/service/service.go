// Package service manages DID documents: creation, lookup and the
// read → apply → persist → commit mutation protocol.
//
// Every document version is written to the content-addressed blob store
// before the current-pointer record is moved to it, so a record never names
// a blob that was not acknowledged. Concurrent mutations of one account are
// serialized by optimistic concurrency on Record.Version: a commit that lost
// the race restarts the whole protocol from a fresh read.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"neuramark/internal/canonical"
	"neuramark/internal/did/models"
	"neuramark/internal/platform/metrics"
	id "neuramark/pkg/domain"
	dErrors "neuramark/pkg/domain-errors"
	"neuramark/pkg/platform/retry"
	"neuramark/pkg/platform/sentinel"
	"neuramark/pkg/requestcontext"
)

// DefaultMaxAttempts bounds how many times Mutate runs the full protocol.
const DefaultMaxAttempts = 5

type RecordStore interface {
	FindByAccount(ctx context.Context, accountID id.AccountID) (*models.Record, error)
	FindByDID(ctx context.Context, did string) (*models.Record, error)
	Create(ctx context.Context, rec *models.Record) error
	Update(ctx context.Context, rec *models.Record, expectedVersion int64) error
}

type BlobStore interface {
	Put(ctx context.Context, data []byte, name string) (string, error)
	Get(ctx context.Context, contentID string) ([]byte, error)
}

// Service is the DID Document Manager.
type Service struct {
	records       RecordStore
	blobs         BlobStore
	namespace     string
	maxAttempts   int
	conflictPause time.Duration
	retryPolicy   retry.Policy
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
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

// WithNamespace sets the DID method name ("did:<namespace>:<account>").
func WithNamespace(namespace string) Option {
	return func(s *Service) {
		if namespace != "" {
			s.namespace = namespace
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithConflictPause sets the upper bound of the jittered pause between
// mutation attempts after a version conflict.
func WithConflictPause(d time.Duration) Option {
	return func(s *Service) {
		s.conflictPause = d
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

// New constructs a Service.
func New(records RecordStore, blobs BlobStore, opts ...Option) *Service {
	s := &Service{
		records:       records,
		blobs:         blobs,
		namespace:     models.DefaultNamespace,
		maxAttempts:   DefaultMaxAttempts,
		conflictPause: 20 * time.Millisecond,
		retryPolicy:   retry.DefaultPolicy(),
		tracer:        otel.Tracer("neuramark/did"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Namespace returns the configured DID method name.
func (s *Service) Namespace() string {
	return s.namespace
}

// Create builds, persists and registers the first document of an account.
func (s *Service) Create(ctx context.Context, accountID id.AccountID, email, displayName string, wallets []string) (*models.Document, error) {
	ctx, span := s.tracer.Start(ctx, "did.Create", trace.WithAttributes(attribute.String("account_id", accountID.String())))
	defer span.End()

	doc, err := models.NewDocument(s.namespace, accountID, email, displayName, wallets, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	contentID, err := s.Persist(ctx, doc)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	rec := models.NewRecord(accountID, doc, contentID)
	err = retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		return s.records.Create(ctx, rec)
	})
	if err != nil {
		recordSpanError(span, err)
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "did document already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to create did record")
	}

	s.logAudit(ctx, "did_created",
		"account_id", accountID.String(),
		"did", doc.ID,
		"cid", contentID,
	)
	s.incrementMutation("create", "ok")
	return doc, nil
}

// Get returns the current record of an account.
func (s *Service) Get(ctx context.Context, accountID id.AccountID) (*models.Record, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "account_id is required")
	}
	var rec *models.Record
	err := retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		found, err := s.records.FindByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		rec = found
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "did document not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to load did record")
	}
	return rec, nil
}

// GetByDID resolves a DID to its current record.
func (s *Service) GetByDID(ctx context.Context, did string) (*models.Record, error) {
	var rec *models.Record
	err := retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		found, err := s.records.FindByDID(ctx, did)
		if err != nil {
			return err
		}
		rec = found
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "did document not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to load did record")
	}
	return rec, nil
}

// Apply is the pure document transition; see models.Apply.
func (s *Service) Apply(doc *models.Document, action models.Action, now time.Time) (*models.Document, error) {
	return models.Apply(doc, action, now)
}

// Persist writes the canonical form of doc to the blob store and returns its
// content id. Identical documents always yield the same id.
func (s *Service) Persist(ctx context.Context, doc *models.Document) (string, error) {
	data, err := canonical.Canonicalize(doc)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode did document")
	}
	var contentID string
	err = retry.DoNotify(ctx, s.retryPolicy, func(ctx context.Context) error {
		c, err := s.blobs.Put(ctx, data, doc.ID+".json")
		if err != nil {
			return err
		}
		contentID = c
		return nil
	}, func(err error, wait time.Duration) {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "blob put retry", "did", doc.ID, "error", err, "wait", wait)
		}
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to persist did document")
	}
	return contentID, nil
}

// Commit moves the current pointer of accountID to doc at contentID, provided
// the stored record is still at expectedVersion. Call only after Persist
// succeeded for doc.
func (s *Service) Commit(ctx context.Context, accountID id.AccountID, doc *models.Document, contentID string, expectedVersion int64) (*models.Record, error) {
	rec := &models.Record{
		AccountID:  accountID,
		DIDID:      doc.ID,
		Document:   *doc.Clone(),
		CurrentCID: contentID,
		ProofCount: len(doc.VerifiedProofs),
		Version:    expectedVersion + 1,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	ambiguous := false
	err := retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		err := s.records.Update(ctx, rec, expectedVersion)
		if errors.Is(err, sentinel.ErrUnavailable) {
			ambiguous = true
		}
		return err
	})
	if err != nil && ambiguous && errors.Is(err, sentinel.ErrConflict) {
		// An earlier attempt may have been applied before its reply was lost.
		if stored, ferr := s.records.FindByAccount(ctx, accountID); ferr == nil &&
			stored.CurrentCID == contentID && stored.Version == expectedVersion+1 {
			return stored, nil
		}
	}
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "did record was modified concurrently")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "did document not found")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to commit did record")
		}
	}
	return rec, nil
}

// Mutate applies action to the current document of accountID.
//
// A version conflict at commit time restarts the protocol from a fresh read,
// up to the configured attempt limit; after that a Conflict error is returned.
// A cancelled or failed attempt may leave an orphan blob but never moves the
// pointer.
func (s *Service) Mutate(ctx context.Context, accountID id.AccountID, action models.Action) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "did.Mutate", trace.WithAttributes(
		attribute.String("account_id", accountID.String()),
		attribute.String("action", actionLabel(action)),
	))
	defer span.End()

	for attempt := 1; ; attempt++ {
		rec, err := s.attempt(ctx, accountID, action)
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", attempt))
			s.logAudit(ctx, "did_mutated",
				"account_id", accountID.String(),
				"action", actionLabel(action),
				"cid", rec.CurrentCID,
				"version", rec.Version,
			)
			s.incrementMutation(actionLabel(action), "ok")
			return rec, nil
		}
		if !dErrors.HasCode(err, dErrors.CodeConflict) {
			recordSpanError(span, err)
			s.incrementMutation(actionLabel(action), string(dErrors.CodeOf(err)))
			return nil, err
		}

		if s.metrics != nil {
			s.metrics.IncrementMutationConflict()
		}
		if attempt >= s.maxAttempts {
			recordSpanError(span, err)
			s.incrementMutation(actionLabel(action), "conflict")
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "did document is being modified concurrently, try again")
		}
		if err := s.pause(ctx); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "mutation cancelled")
		}
	}
}

func (s *Service) attempt(ctx context.Context, accountID id.AccountID, action models.Action) (*models.Record, error) {
	current, err := s.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	next, err := models.Apply(&current.Document, action, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	contentID, err := s.Persist(ctx, next)
	if err != nil {
		return nil, err
	}
	return s.Commit(ctx, accountID, next, contentID, current.Version)
}

func (s *Service) pause(ctx context.Context) error {
	if s.conflictPause <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(rand.N(s.conflictPause) + time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, event, attrs...)
}

func (s *Service) incrementMutation(action, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncrementMutation(action, outcome)
}

func actionLabel(action models.Action) string {
	if action == nil {
		return "none"
	}
	return string(action.Type())
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
