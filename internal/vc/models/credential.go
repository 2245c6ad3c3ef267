package models

import (
	"neuramark/internal/canonical"
)

const (
	ContextCredentialsV1 = "https://www.w3.org/2018/credentials/v1"
	ContextNeuraMarkV1   = "https://neuramark.ai/contexts/content-proof/v1"

	TypeVerifiableCredential = "VerifiableCredential"
	TypeContentProof         = "AIContentProofCredential"
	SubjectTypeContent       = "AIGeneratedContent"

	ProofTypeSecp256k1 = "EcdsaSecp256k1RecoverySignature2020"
	ProofPurpose       = "assertionMethod"

	// CredentialIDPrefix is followed by the proof id, so re-issuing for the
	// same proof yields the same credential id.
	CredentialIDPrefix = "urn:neuramark:credential:"
)

// CredentialIDFor derives the credential id of a proof.
func CredentialIDFor(proofID string) string {
	return CredentialIDPrefix + proofID
}

type Issuer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type BlockchainProof struct {
	Network         string `json:"network"`
	ContractAddress string `json:"contractAddress"`
	TransactionHash string `json:"transactionHash"`
	ProofID         string `json:"proofId"`
	Timestamp       string `json:"timestamp"`
}

type IPFSMetadata struct {
	PromptCID string `json:"promptCID"`
	OutputCID string `json:"outputCID"`
}

type Subject struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	PromptHash      string          `json:"promptHash"`
	OutputHash      string          `json:"outputHash"`
	PromptCID       string          `json:"promptCID"`
	OutputCID       string          `json:"outputCID"`
	ModelInfo       string          `json:"modelInfo"`
	OutputType      string          `json:"outputType"`
	BlockchainProof BlockchainProof `json:"blockchainProof"`
	IPFSMetadata    IPFSMetadata    `json:"ipfsMetadata"`
}

// Proof is the signature block attached by the issuer.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod"`
	ProofPurpose       string `json:"proofPurpose"`
	ProofValue         string `json:"proofValue"`
}

// Credential is a proof-of-authorship Verifiable Credential. Proof is nil
// until the credential is signed; once signed, changing any other field
// invalidates the signature.
type Credential struct {
	Context           []string `json:"@context"`
	ID                string   `json:"id"`
	Type              []string `json:"type"`
	Issuer            Issuer   `json:"issuer"`
	IssuanceDate      string   `json:"issuanceDate"`
	ExpirationDate    string   `json:"expirationDate,omitempty"`
	CredentialSubject Subject  `json:"credentialSubject"`
	Proof             *Proof   `json:"proof,omitempty"`
}

// Clone returns a deep copy.
func (c *Credential) Clone() *Credential {
	out := *c
	out.Context = append([]string(nil), c.Context...)
	out.Type = append([]string(nil), c.Type...)
	if c.Proof != nil {
		p := *c.Proof
		out.Proof = &p
	}
	return &out
}

// Unsigned returns a copy without the proof block.
func (c *Credential) Unsigned() *Credential {
	out := c.Clone()
	out.Proof = nil
	return out
}

// Digest is the hex SHA-256 of the canonical credential without its proof
// block. It is the message the issuer signs.
func (c *Credential) Digest() (string, error) {
	return canonical.HashHex(c.Unsigned())
}
