// Package syncer appends newly registered proofs to their owner's DID
// document in the background.
//
// Proof registration succeeds independently of this update: the registration
// path only enqueues a task. Each task is retried on its own policy and ends
// in exactly one outcome event (applied, skipped, failed or dropped).
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"neuramark/internal/did/models"
	"neuramark/internal/platform/metrics"
	id "neuramark/pkg/domain"
	dErrors "neuramark/pkg/domain-errors"
	"neuramark/pkg/platform/retry"
	"neuramark/pkg/platform/sentinel"
)

// DefaultQueueSize bounds the number of pending tasks.
const DefaultQueueSize = 256

// ErrQueueFull is returned by Enqueue when the worker is saturated.
var ErrQueueFull = errors.New("did sync queue is full")

type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
	OutcomeDropped Outcome = "dropped"
)

// Task asks for ref to be appended to the DID document of AccountID.
type Task struct {
	ID         string
	AccountID  id.AccountID
	Ref        models.ProofReference
	EnqueuedAt time.Time
}

// Event reports how a task ended.
type Event struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"taskId"`
	AccountID  string    `json:"accountId"`
	ProofID    string    `json:"proofId"`
	Outcome    Outcome   `json:"outcome"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	CID        string    `json:"cid,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// DocumentMutator is the part of the DID manager the worker drives.
type DocumentMutator interface {
	Get(ctx context.Context, accountID id.AccountID) (*models.Record, error)
	Mutate(ctx context.Context, accountID id.AccountID, action models.Action) (*models.Record, error)
}

type Worker struct {
	documents   DocumentMutator
	publisher   Publisher
	queue       chan Task
	retryPolicy retry.Policy
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(w *Worker) {
		w.retryPolicy = p
	}
}

func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan Task, n)
		}
	}
}

func NewWorker(documents DocumentMutator, publisher Publisher, opts ...Option) *Worker {
	w := &Worker{
		documents: documents,
		publisher: publisher,
		queue:     make(chan Task, DefaultQueueSize),
		retryPolicy: retry.Policy{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     30 * time.Second,
			MaxAttempts:     6,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enqueue schedules ref for accountID without blocking. A full queue drops
// the task, emits a dropped event and returns ErrQueueFull; callers log it
// and carry on.
func (w *Worker) Enqueue(ctx context.Context, accountID id.AccountID, ref models.ProofReference) (string, error) {
	task := Task{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		Ref:        ref,
		EnqueuedAt: time.Now(),
	}
	select {
	case w.queue <- task:
		return task.ID, nil
	default:
		w.emit(ctx, task, Event{Outcome: OutcomeDropped, Error: ErrQueueFull.Error()})
		return task.ID, ErrQueueFull
	}
}

// Pending reports the number of queued tasks.
func (w *Worker) Pending() int {
	return len(w.queue)
}

// Run processes tasks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-w.queue:
			w.Process(ctx, task)
		}
	}
}

// Process runs one task to completion and publishes its outcome.
func (w *Worker) Process(ctx context.Context, task Task) Event {
	attempts := 0
	var (
		outcome = OutcomeApplied
		cid     string
	)
	err := retry.DoNotify(ctx, w.retryPolicy, func(ctx context.Context) error {
		attempts++
		rec, err := w.documents.Get(ctx, task.AccountID)
		if err != nil {
			return classify(err)
		}
		if rec.Document.HasProof(task.Ref.ProofID) {
			outcome = OutcomeSkipped
			cid = rec.CurrentCID
			return nil
		}
		rec, err = w.documents.Mutate(ctx, task.AccountID, models.AddProof{Ref: task.Ref})
		if err != nil {
			return classify(err)
		}
		cid = rec.CurrentCID
		return nil
	}, func(err error, wait time.Duration) {
		if w.logger != nil {
			w.logger.WarnContext(ctx, "did sync retry",
				"task_id", task.ID,
				"account_id", task.AccountID.String(),
				"proof_id", task.Ref.ProofID,
				"error", err,
				"wait", wait,
			)
		}
	})

	event := Event{Outcome: outcome, Attempts: attempts, CID: cid}
	if err != nil {
		event.Outcome = OutcomeFailed
		event.CID = ""
		event.Error = err.Error()
	}
	return w.emit(ctx, task, event)
}

// classify marks failures worth retrying at task level: upstream outages and
// exhausted optimistic-concurrency attempts.
func classify(err error) error {
	if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable) {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}

func (w *Worker) emit(ctx context.Context, task Task, event Event) Event {
	event.ID = uuid.NewString()
	event.TaskID = task.ID
	event.AccountID = task.AccountID.String()
	event.ProofID = task.Ref.ProofID
	event.OccurredAt = time.Now().UTC()

	if w.metrics != nil {
		w.metrics.IncrementSyncOutcome(string(event.Outcome))
	}
	if w.logger != nil {
		level := slog.LevelInfo
		if event.Outcome == OutcomeFailed || event.Outcome == OutcomeDropped {
			level = slog.LevelError
		}
		w.logger.Log(ctx, level, "did_sync_"+string(event.Outcome),
			"task_id", event.TaskID,
			"account_id", event.AccountID,
			"proof_id", event.ProofID,
			"attempts", event.Attempts,
			"error", event.Error,
		)
	}
	if w.publisher != nil {
		// the outcome was already logged; a lost event must not block the queue
		if err := w.publisher.Publish(context.WithoutCancel(ctx), event); err != nil && w.logger != nil {
			w.logger.ErrorContext(ctx, "did sync outcome publish failed", "event_id", event.ID, "error", err)
		}
	}
	return event
}
