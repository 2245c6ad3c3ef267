package models

import "time"

// Reason explains a failed verification.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonMalformedProof Reason = "MalformedProof"
	ReasonUnknownIssuer  Reason = "UnknownIssuer"
	ReasonBadSignature   Reason = "BadSignature"
)

// VerificationResult is the outcome of checking a credential signature.
// Failures are values, never errors.
type VerificationResult struct {
	Verified bool   `json:"verified"`
	Reason   Reason `json:"reason,omitempty"`
	// Signer is the recovered signer address when a signature could be decoded.
	Signer string `json:"signer,omitempty"`
}

func Verified(signer string) VerificationResult {
	return VerificationResult{Verified: true, Signer: signer}
}

func Failed(reason Reason, signer string) VerificationResult {
	return VerificationResult{Reason: reason, Signer: signer}
}

type Status string

const (
	StatusValid   Status = "valid"
	StatusExpired Status = "expired"
	StatusInvalid Status = "invalid"
)

// Label is the display text of a status.
func (s Status) Label() string {
	switch s {
	case StatusValid:
		return "Verified"
	case StatusExpired:
		return "Expired"
	default:
		return "Invalid"
	}
}

type StatusView struct {
	Status Status `json:"status"`
	Label  string `json:"label"`
}

// ProofSummary is the display projection of a credential.
type ProofSummary struct {
	Owner        string `json:"owner"`
	ModelInfo    string `json:"modelInfo"`
	Timestamp    string `json:"timestamp"`
	ProofID      string `json:"proofId"`
	TxHash       string `json:"txHash"`
	Network      string `json:"network"`
	Issuer       string `json:"issuer"`
	CredentialID string `json:"credentialId"`
}

// Report bundles everything a verification endpoint shows.
type Report struct {
	VerificationResult
	StatusView
	Summary    ProofSummary `json:"summary"`
	VerifiedAt time.Time    `json:"verifiedAt"`
}
