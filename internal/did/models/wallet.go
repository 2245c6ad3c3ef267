package models

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "neuramark/pkg/domain-errors"
)

// NormalizeWallet validates an EVM address and returns its canonical stored
// form: lower-case, 0x-prefixed hex. Every insert and comparison of wallet
// addresses goes through this function.
func NormalizeWallet(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid wallet address")
	}
	return strings.ToLower(common.HexToAddress(addr).Hex()), nil
}

// SameWallet compares two addresses under wallet normalization. Invalid
// addresses never match anything.
func SameWallet(a, b string) bool {
	na, err := NormalizeWallet(a)
	if err != nil {
		return false
	}
	nb, err := NormalizeWallet(b)
	if err != nil {
		return false
	}
	return na == nb
}

// NormalizeWallets normalizes and de-duplicates addresses, keeping first-seen order.
func NormalizeWallets(addrs []string) ([]string, error) {
	out := make([]string, 0, len(addrs))
	seen := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		n, err := NormalizeWallet(a)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}
