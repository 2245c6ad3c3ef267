package anchor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"neuramark/internal/proof/models"
	"neuramark/pkg/platform/sentinel"
)

// ChainReader is the subset of ethclient.Client used to resolve anchors.
type ChainReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// EthSource reads anchors from an Ethereum JSON-RPC endpoint. The
// transaction must have succeeded and, when a contract is configured, must
// have emitted at least one log from it.
type EthSource struct {
	chain    ChainReader
	network  string
	contract common.Address
}

// DialEth connects to rpcURL.
func DialEth(ctx context.Context, rpcURL, network, contractAddress string) (*EthSource, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	return NewEth(client, network, contractAddress), nil
}

func NewEth(chain ChainReader, network, contractAddress string) *EthSource {
	s := &EthSource{chain: chain, network: network}
	if common.IsHexAddress(contractAddress) {
		s.contract = common.HexToAddress(contractAddress)
	}
	return s
}

func (s *EthSource) Anchor(ctx context.Context, proof *models.Proof) (Anchor, error) {
	if !isTxHash(proof.TxHash) {
		return Anchor{}, ErrNotAnchored
	}
	txHash := common.HexToHash(proof.TxHash)

	receipt, err := s.chain.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return Anchor{}, sentinel.ErrNotFound
		}
		return Anchor{}, fmt.Errorf("fetch receipt: %w: %w", sentinel.ErrUnavailable, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return Anchor{}, ErrNotAnchored
	}
	if s.contract != (common.Address{}) && !emittedBy(receipt, s.contract) {
		return Anchor{}, ErrNotAnchored
	}

	header, err := s.chain.HeaderByNumber(ctx, receipt.BlockNumber)
	if err != nil {
		return Anchor{}, fmt.Errorf("fetch block header: %w: %w", sentinel.ErrUnavailable, err)
	}

	contract := ""
	if s.contract != (common.Address{}) {
		contract = strings.ToLower(s.contract.Hex())
	}
	return Anchor{
		Network:         s.network,
		ContractAddress: contract,
		TransactionHash: strings.ToLower(txHash.Hex()),
		Timestamp:       time.Unix(int64(header.Time), 0).UTC(),
	}, nil
}

func emittedBy(receipt *types.Receipt, contract common.Address) bool {
	for _, l := range receipt.Logs {
		if l.Address == contract {
			return true
		}
	}
	return false
}

func isTxHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}
