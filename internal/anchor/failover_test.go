package anchor_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"neuramark/internal/anchor"
	"neuramark/internal/anchor/mocks"
	"neuramark/internal/proof/models"
	"neuramark/pkg/platform/circuit"
	"neuramark/pkg/platform/sentinel"
)

//go:generate mockgen -source=anchor.go -destination=mocks/mocks.go -package=mocks Source

func TestFailoverSource(t *testing.T) {
	ctx := context.Background()
	proof := &models.Proof{ProofID: "p1", TxHash: "0xabc", CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}
	onChain := anchor.Anchor{Network: "chain", TransactionHash: proof.TxHash}
	down := fmt.Errorf("dial: %w", sentinel.ErrUnavailable)

	t.Run("primary answers while healthy", func(t *testing.T) {
		primary := mocks.NewMockSource(gomock.NewController(t))
		fallback := mocks.NewMockSource(gomock.NewController(t))
		primary.EXPECT().Anchor(gomock.Any(), proof).Return(onChain, nil)

		f := anchor.NewFailover(primary, fallback, circuit.New("rpc"), nil)
		a, err := f.Anchor(ctx, proof)
		require.NoError(t, err)
		assert.Equal(t, "chain", a.Network)
		assert.False(t, a.Provisional)
	})

	t.Run("unavailability below the threshold is returned", func(t *testing.T) {
		primary := mocks.NewMockSource(gomock.NewController(t))
		fallback := mocks.NewMockSource(gomock.NewController(t))
		primary.EXPECT().Anchor(gomock.Any(), proof).Return(anchor.Anchor{}, down)

		f := anchor.NewFailover(primary, fallback, circuit.New("rpc", circuit.WithFailureThreshold(2)), nil)
		_, err := f.Anchor(ctx, proof)
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("open breaker serves provisional anchors then recovers", func(t *testing.T) {
		primary := mocks.NewMockSource(gomock.NewController(t))
		gomock.InOrder(
			primary.EXPECT().Anchor(gomock.Any(), proof).Return(anchor.Anchor{}, down),
			primary.EXPECT().Anchor(gomock.Any(), proof).Return(onChain, nil),
		)
		breaker := circuit.New("rpc", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(1))
		f := anchor.NewFailover(primary, anchor.NewStatic("static", ""), breaker, nil)

		a, err := f.Anchor(ctx, proof)
		require.NoError(t, err)
		assert.True(t, a.Provisional)
		assert.Equal(t, "static", a.Network)
		assert.Equal(t, proof.CreatedAt, a.Timestamp)

		a, err = f.Anchor(ctx, proof)
		require.NoError(t, err)
		assert.False(t, a.Provisional)
		assert.False(t, breaker.IsOpen())
	})

	t.Run("fallback failure is returned", func(t *testing.T) {
		primary := mocks.NewMockSource(gomock.NewController(t))
		fallback := mocks.NewMockSource(gomock.NewController(t))
		primary.EXPECT().Anchor(gomock.Any(), proof).Return(anchor.Anchor{}, down)
		fallback.EXPECT().Anchor(gomock.Any(), proof).Return(anchor.Anchor{}, anchor.ErrNotAnchored)

		f := anchor.NewFailover(primary, fallback, circuit.New("rpc", circuit.WithFailureThreshold(1)), nil)
		_, err := f.Anchor(ctx, proof)
		assert.ErrorIs(t, err, anchor.ErrNotAnchored)
	})

	t.Run("definitive answers are not masked", func(t *testing.T) {
		primary := mocks.NewMockSource(gomock.NewController(t))
		fallback := mocks.NewMockSource(gomock.NewController(t))
		primary.EXPECT().Anchor(gomock.Any(), proof).Return(anchor.Anchor{}, anchor.ErrNotAnchored)

		breaker := circuit.New("rpc", circuit.WithFailureThreshold(1))
		breaker.RecordFailure()
		f := anchor.NewFailover(primary, fallback, breaker, nil)
		_, err := f.Anchor(ctx, proof)
		assert.ErrorIs(t, err, anchor.ErrNotAnchored)
	})
}
