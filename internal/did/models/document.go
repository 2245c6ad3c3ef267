package models

import (
	"strings"
	"time"

	id "neuramark/pkg/domain"
)

// ContextDIDv1 is the JSON-LD context carried by every DID document.
const ContextDIDv1 = "https://www.w3.org/ns/did/v1"

// DefaultNamespace is the DID method name used when none is configured.
const DefaultNamespace = "neuramark"

// ProofReference is the embedded, immutable record of a registered proof.
type ProofReference struct {
	ProofID   string `json:"proofId"`
	IPFSCID   string `json:"ipfsCID"`
	Model     string `json:"model"`
	Timestamp string `json:"timestamp"`
	TxHash    string `json:"txHash"`
}

// Document is the DID document of one account.
//
// Invariants:
//   - ID is "did:<namespace>:<accountId>" and never changes
//   - Wallets hold normalized addresses without duplicates
//   - VerifiedProofs is append-only; order is append order
//   - CreatedAt is set once; UpdatedAt never decreases
type Document struct {
	Context        string           `json:"@context"`
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Email          string           `json:"email"`
	Wallets        []string         `json:"wallets"`
	VerifiedProofs []ProofReference `json:"verifiedProofs"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	Signature      string           `json:"signature,omitempty"`
}

// DIDFor derives the DID of an account.
func DIDFor(namespace string, accountID id.AccountID) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return "did:" + namespace + ":" + accountID.String()
}

// IssuerDID is the platform issuer's DID. Its method-specific id contains a
// ':', which account ids may not, so no account document can take it.
func IssuerDID(namespace string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return "did:" + namespace + ":platform:issuer"
}

// NewDocument builds the initial document for an account.
func NewDocument(namespace string, accountID id.AccountID, email, name string, wallets []string, now time.Time) (*Document, error) {
	if _, err := id.ParseAccountID(accountID.String()); err != nil {
		return nil, err
	}
	normalized, err := NormalizeWallets(wallets)
	if err != nil {
		return nil, err
	}
	now = now.UTC()
	return &Document{
		Context:        ContextDIDv1,
		ID:             DIDFor(namespace, accountID),
		Name:           strings.TrimSpace(name),
		Email:          strings.TrimSpace(email),
		Wallets:        normalized,
		VerifiedProofs: []ProofReference{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Clone returns a deep copy so transitions never share backing arrays.
func (d *Document) Clone() *Document {
	c := *d
	c.Wallets = append(make([]string, 0, len(d.Wallets)), d.Wallets...)
	c.VerifiedProofs = append(make([]ProofReference, 0, len(d.VerifiedProofs)), d.VerifiedProofs...)
	return &c
}

// HasWallet reports whether addr (in any casing) is linked to the document.
func (d *Document) HasWallet(addr string) bool {
	n, err := NormalizeWallet(addr)
	if err != nil {
		return false
	}
	for _, w := range d.Wallets {
		if w == n {
			return true
		}
	}
	return false
}

// HasProof reports whether a proof id was already appended.
func (d *Document) HasProof(proofID string) bool {
	for _, p := range d.VerifiedProofs {
		if p.ProofID == proofID {
			return true
		}
	}
	return false
}
