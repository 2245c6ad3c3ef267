package anchor

import (
	"context"
	"errors"
	"log/slog"

	"neuramark/internal/proof/models"
	"neuramark/pkg/platform/circuit"
	"neuramark/pkg/platform/sentinel"
)

// FailoverSource answers from primary and, once the breaker has opened on
// repeated unavailability, serves provisional anchors from fallback until the
// primary recovers. Definitive answers (not found, not anchored) count as
// primary successes.
type FailoverSource struct {
	primary  Source
	fallback Source
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFailover(primary, fallback Source, breaker *circuit.Breaker, logger *slog.Logger) *FailoverSource {
	return &FailoverSource{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (f *FailoverSource) Anchor(ctx context.Context, proof *models.Proof) (Anchor, error) {
	a, err := f.primary.Anchor(ctx, proof)
	if err == nil || !errors.Is(err, sentinel.ErrUnavailable) {
		if _, change := f.breaker.RecordSuccess(); change.Closed {
			f.log(ctx, slog.LevelInfo, "anchor source recovered", nil)
		}
		return a, err
	}

	useFallback, change := f.breaker.RecordFailure()
	if change.Opened {
		f.log(ctx, slog.LevelWarn, "anchor source unavailable, serving provisional anchors", err)
	}
	if !useFallback {
		return Anchor{}, err
	}
	a, ferr := f.fallback.Anchor(ctx, proof)
	if ferr != nil {
		return Anchor{}, ferr
	}
	a.Provisional = true
	return a, nil
}

func (f *FailoverSource) log(ctx context.Context, level slog.Level, msg string, err error) {
	if f.logger == nil {
		return
	}
	attrs := []any{"breaker", f.breaker.Name(), "state", f.breaker.State().String()}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	f.logger.Log(ctx, level, msg, attrs...)
}
