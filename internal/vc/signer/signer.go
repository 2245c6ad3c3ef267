// Package signer holds the platform issuer key.
//
// Signatures are secp256k1 recoverable signatures over the EIP-191 personal
// message hash of the credential digest, so any Ethereum tooling can check
// them against the issuer address.
package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrMalformedSignature is returned by Recover for undecodable signatures.
var ErrMalformedSignature = errors.New("malformed signature")

// KeyProvider is the immutable platform signing key. It is constructed once
// at startup and safe for concurrent use.
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	address string
}

// NewKeyProvider loads a hex-encoded private key (with or without 0x).
func NewKeyProvider(hexKey string) (*KeyProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	return fromKey(key), nil
}

// GenerateKeyProvider creates a throwaway key for local runs and tests.
func GenerateKeyProvider() (*KeyProvider, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return fromKey(key), nil
}

func fromKey(key *ecdsa.PrivateKey) *KeyProvider {
	return &KeyProvider{
		key:     key,
		address: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()),
	}
}

// Address is the lower-case 0x address of the key.
func (k *KeyProvider) Address() string {
	return k.address
}

// Sign signs message and returns the 65-byte signature as 0x hex with a
// 27/28 recovery byte.
func (k *KeyProvider) Sign(message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), k.key)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// Recover returns the lower-case address that produced signature over message.
func Recover(message, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return "", ErrMalformedSignature
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return "", ErrMalformedSignature
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}
