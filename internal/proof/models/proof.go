package models

import (
	"strings"
	"time"

	didmodels "neuramark/internal/did/models"
	id "neuramark/pkg/domain"
	dErrors "neuramark/pkg/domain-errors"
)

// Proof is a registered content proof as recorded by the registration
// subsystem. A proof is owned by an account either directly (UserID) or
// through one of the account's wallets (Wallet).
type Proof struct {
	ProofID    id.ProofID   `json:"proofId"`
	PromptHash string       `json:"promptHash"`
	OutputHash string       `json:"outputHash"`
	PromptCID  string       `json:"promptCID"`
	OutputCID  string       `json:"outputCID"`
	ModelInfo  string       `json:"modelInfo"`
	OutputType string       `json:"outputType"`
	TxHash     string       `json:"txHash"`
	Wallet     string       `json:"wallet"`
	UserID     id.AccountID `json:"userId,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// HasOwner reports whether the proof was already bound to an account.
func (p *Proof) HasOwner() bool {
	return !p.UserID.IsNil()
}

// Reference is the entry appended to the owner's DID document.
func (p *Proof) Reference() didmodels.ProofReference {
	return didmodels.ProofReference{
		ProofID:   p.ProofID.String(),
		IPFSCID:   p.OutputCID,
		Model:     p.ModelInfo,
		Timestamp: p.CreatedAt.UTC().Format(time.RFC3339),
		TxHash:    p.TxHash,
	}
}

// Validate checks the fields the credential protocol depends on and
// normalizes the wallet address.
func (p *Proof) Validate() error {
	if p.ProofID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "proofId is required")
	}
	if strings.TrimSpace(p.OutputHash) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "outputHash is required")
	}
	if strings.TrimSpace(p.TxHash) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "txHash is required")
	}
	if p.Wallet != "" {
		w, err := didmodels.NormalizeWallet(p.Wallet)
		if err != nil {
			return err
		}
		p.Wallet = w
	}
	if p.CreatedAt.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "createdAt is required")
	}
	return nil
}
