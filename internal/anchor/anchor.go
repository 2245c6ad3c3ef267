// Package anchor supplies the on-chain facts that tie a proof to the
// registry contract: network, contract address, transaction hash and block
// timestamp. Anchors are immutable once the transaction is mined.
package anchor

import (
	"context"
	"errors"
	"time"

	"neuramark/internal/proof/models"
)

// ErrNotAnchored is returned when the proof transaction exists but did not
// register the proof with the configured contract.
var ErrNotAnchored = errors.New("proof is not anchored")

type Anchor struct {
	Network         string    `json:"network"`
	ContractAddress string    `json:"contractAddress"`
	TransactionHash string    `json:"transactionHash"`
	Timestamp       time.Time `json:"timestamp"`
	// Provisional marks an anchor taken from the registration record while
	// the chain could not be reached. It is never cached.
	Provisional bool `json:"provisional,omitempty"`
}

// Source looks up the anchor of a proof.
type Source interface {
	Anchor(ctx context.Context, proof *models.Proof) (Anchor, error)
}

// StaticSource trusts the registration record: it reports the configured
// network and contract with the proof's own transaction hash and creation
// time. Used when no RPC endpoint is configured.
type StaticSource struct {
	Network         string
	ContractAddress string
}

func NewStatic(network, contractAddress string) *StaticSource {
	return &StaticSource{Network: network, ContractAddress: contractAddress}
}

func (s *StaticSource) Anchor(_ context.Context, proof *models.Proof) (Anchor, error) {
	if proof.TxHash == "" {
		return Anchor{}, ErrNotAnchored
	}
	return Anchor{
		Network:         s.Network,
		ContractAddress: s.ContractAddress,
		TransactionHash: proof.TxHash,
		Timestamp:       proof.CreatedAt.UTC(),
	}, nil
}
