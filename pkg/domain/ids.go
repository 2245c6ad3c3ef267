package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	dErrors "neuramark/pkg/domain-errors"
)

const maxIDLength = 128

// AccountID identifies a platform account. It is the method-specific part of
// the account's DID, so it must be safe to embed in "did:<ns>:<id>".
type AccountID string

// ProofID identifies a registered content proof (the registry's on-chain id).
type ProofID string

// ParseAccountID validates an account identifier from an untrusted source.
func ParseAccountID(s string) (AccountID, error) {
	if err := validateID("account_id", s); err != nil {
		return "", err
	}
	return AccountID(s), nil
}

// ParseProofID validates a proof identifier from an untrusted source.
func ParseProofID(s string) (ProofID, error) {
	if err := validateID("proof_id", s); err != nil {
		return "", err
	}
	return ProofID(s), nil
}

func (id AccountID) String() string { return string(id) }
func (id AccountID) IsNil() bool    { return id == "" }

func (id ProofID) String() string { return string(id) }
func (id ProofID) IsNil() bool    { return id == "" }

func validateID(field, s string) error {
	if strings.TrimSpace(s) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if len(s) > maxIDLength {
		return dErrors.New(dErrors.CodeInvalidInput, field+" is too long")
	}
	if !utf8.ValidString(s) {
		return dErrors.New(dErrors.CodeInvalidInput, field+" must be valid UTF-8")
	}
	for _, r := range s {
		// '/', '?', '#' would change the meaning of a DID URL. ':' is kept out
		// so account ids can never reach the platform's reserved DIDs.
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '/' || r == '?' || r == '#' || r == ':' || r > unicode.MaxASCII {
			return dErrors.New(dErrors.CodeInvalidInput, field+" contains invalid characters")
		}
	}
	return nil
}
