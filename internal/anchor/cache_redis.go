package anchor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"neuramark/internal/proof/models"
)

const cacheKeyPrefix = "neuramark:anchor:"

// CachedSource memoizes anchors in Redis. Mined anchors never change, so
// entries are written without expiry. Cache failures fall through to the
// underlying source.
type CachedSource struct {
	next   Source
	client redis.Cmdable
	logger *slog.Logger
}

func NewCached(next Source, client redis.Cmdable, logger *slog.Logger) *CachedSource {
	return &CachedSource{next: next, client: client, logger: logger}
}

func (c *CachedSource) Anchor(ctx context.Context, proof *models.Proof) (Anchor, error) {
	key := cacheKeyPrefix + proof.ProofID.String()

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var a Anchor
		if jsonErr := json.Unmarshal(raw, &a); jsonErr == nil && strings.EqualFold(a.TransactionHash, proof.TxHash) {
			return a, nil
		}
	case !errors.Is(err, redis.Nil):
		c.warn(ctx, "anchor cache read failed", proof, err)
	}

	a, err := c.next.Anchor(ctx, proof)
	if err != nil {
		return Anchor{}, err
	}
	if a.Provisional {
		return a, nil
	}

	payload, err := json.Marshal(a)
	if err == nil {
		err = c.client.Set(ctx, key, payload, 0).Err()
	}
	if err != nil {
		c.warn(ctx, "anchor cache write failed", proof, err)
	}
	return a, nil
}

func (c *CachedSource) warn(ctx context.Context, msg string, proof *models.Proof, err error) {
	if c.logger == nil {
		return
	}
	c.logger.WarnContext(ctx, msg, "proof_id", proof.ProofID.String(), "error", err)
}
