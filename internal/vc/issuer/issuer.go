// Package issuer builds and signs proof-of-authorship credentials with the
// platform key.
package issuer

import (
	"context"
	"time"

	"neuramark/internal/anchor"
	"neuramark/internal/canonical"
	proofmodels "neuramark/internal/proof/models"
	"neuramark/internal/vc/models"
	"neuramark/internal/vc/signer"
	dErrors "neuramark/pkg/domain-errors"
	"neuramark/pkg/requestcontext"
)

// Issuer is stateless apart from the shared, read-only key provider.
type Issuer struct {
	keys *signer.KeyProvider
	id   string
	name string
}

// New constructs an Issuer identified by issuerDID.
func New(keys *signer.KeyProvider, issuerDID, issuerName string) *Issuer {
	return &Issuer{keys: keys, id: issuerDID, name: issuerName}
}

func (i *Issuer) DID() string {
	return i.id
}

func (i *Issuer) Address() string {
	return i.keys.Address()
}

// VerificationMethod names the issuer key: "<issuerDID>#<address>".
func (i *Issuer) VerificationMethod() string {
	return VerificationMethod(i.id, i.keys.Address())
}

func VerificationMethod(issuerDID, address string) string {
	return issuerDID + "#" + address
}

// Issue builds the unsigned credential for proof, naming subjectDID as the
// subject and a as its on-chain anchor.
func (i *Issuer) Issue(ctx context.Context, proof *proofmodels.Proof, subjectDID string, a anchor.Anchor) (*models.Credential, error) {
	if proof == nil || proof.ProofID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "proof is required")
	}
	if subjectDID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject DID is required")
	}
	proofID := proof.ProofID.String()
	return &models.Credential{
		Context:      []string{models.ContextCredentialsV1, models.ContextNeuraMarkV1},
		ID:           models.CredentialIDFor(proofID),
		Type:         []string{models.TypeVerifiableCredential, models.TypeContentProof},
		Issuer:       models.Issuer{ID: i.id, Name: i.name},
		IssuanceDate: formatTime(requestcontext.Now(ctx)),
		CredentialSubject: models.Subject{
			ID:         subjectDID,
			Type:       models.SubjectTypeContent,
			PromptHash: proof.PromptHash,
			OutputHash: proof.OutputHash,
			PromptCID:  proof.PromptCID,
			OutputCID:  proof.OutputCID,
			ModelInfo:  proof.ModelInfo,
			OutputType: proof.OutputType,
			BlockchainProof: models.BlockchainProof{
				Network:         a.Network,
				ContractAddress: a.ContractAddress,
				TransactionHash: a.TransactionHash,
				ProofID:         proofID,
				Timestamp:       formatTime(a.Timestamp),
			},
			IPFSMetadata: models.IPFSMetadata{
				PromptCID: proof.PromptCID,
				OutputCID: proof.OutputCID,
			},
		},
	}, nil
}

// Sign returns a copy of cred carrying a proof block. Any existing proof is
// replaced.
func (i *Issuer) Sign(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if cred == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "credential is required")
	}
	signed := cred.Unsigned()
	digest, err := signed.Digest()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeMalformedCredential, "failed to canonicalize credential")
	}
	sig, err := i.keys.Sign(digest)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign credential")
	}
	signed.Proof = &models.Proof{
		Type:               models.ProofTypeSecp256k1,
		Created:            formatTime(requestcontext.Now(ctx)),
		VerificationMethod: i.VerificationMethod(),
		ProofPurpose:       models.ProofPurpose,
		ProofValue:         sig,
	}
	return signed, nil
}

// Export renders cred as canonical JSON text.
func Export(cred *models.Credential) (string, error) {
	b, err := canonical.Canonicalize(cred)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeMalformedCredential, "failed to export credential")
	}
	return string(b), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
