// Package verifier checks credentials offline against the platform issuer
// identity. Verification outcomes are values; only structurally unusable
// input produces an error.
package verifier

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"neuramark/internal/vc/models"
	"neuramark/internal/vc/signer"
	dErrors "neuramark/pkg/domain-errors"
)

// Verifier knows the one trusted issuer: its DID and signing address.
type Verifier struct {
	issuerDID string
	address   string
}

func New(issuerDID, issuerAddress string) *Verifier {
	return &Verifier{issuerDID: issuerDID, address: strings.ToLower(issuerAddress)}
}

// Parse accepts a credential as canonical text, raw JSON bytes, a generic
// map, or the typed model. It rejects input lacking @context, type or
// credentialSubject, and input carrying fields the credential model does not
// define.
func Parse(input any) (*models.Credential, error) {
	var raw []byte
	switch v := input.(type) {
	case nil:
		return nil, malformed("credential is required")
	case *models.Credential:
		if v == nil {
			return nil, malformed("credential is required")
		}
		return checkTyped(v.Clone())
	case models.Credential:
		return checkTyped(v.Clone())
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	case string:
		raw = []byte(v)
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeMalformedCredential, "credential is not JSON")
		}
		raw = b
	default:
		return nil, malformed("unsupported credential input")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeMalformedCredential, "credential is not a JSON object")
	}
	for _, k := range []string{"@context", "type", "credentialSubject"} {
		if v, ok := fields[k]; !ok || isEmptyJSON(v) {
			return nil, malformed("credential is missing " + k)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var cred models.Credential
	if err := dec.Decode(&cred); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeMalformedCredential, "credential does not match the expected shape")
	}
	return checkTyped(&cred)
}

func checkTyped(c *models.Credential) (*models.Credential, error) {
	switch {
	case len(c.Context) == 0:
		return nil, malformed("credential is missing @context")
	case len(c.Type) == 0:
		return nil, malformed("credential is missing type")
	case c.CredentialSubject == (models.Subject{}):
		return nil, malformed("credential is missing credentialSubject")
	}
	return c, nil
}

func isEmptyJSON(v json.RawMessage) bool {
	s := string(bytes.TrimSpace(v))
	return s == "" || s == "null" || s == "[]" || s == "{}"
}

func malformed(msg string) error {
	return dErrors.New(dErrors.CodeMalformedCredential, msg)
}

// Verify recomputes the credential digest and checks the embedded signature
// against the platform issuer. It never returns an error.
func (v *Verifier) Verify(cred *models.Credential) models.VerificationResult {
	if cred == nil || cred.Proof == nil {
		return models.Failed(models.ReasonMalformedProof, "")
	}
	p := cred.Proof
	if p.Type != models.ProofTypeSecp256k1 || p.ProofPurpose != models.ProofPurpose || p.ProofValue == "" {
		return models.Failed(models.ReasonMalformedProof, "")
	}
	if cred.Issuer.ID != v.issuerDID || !strings.EqualFold(p.VerificationMethod, v.issuerDID+"#"+v.address) {
		return models.Failed(models.ReasonUnknownIssuer, "")
	}

	digest, err := cred.Digest()
	if err != nil {
		return models.Failed(models.ReasonMalformedProof, "")
	}
	recovered, err := signer.Recover(digest, p.ProofValue)
	if err != nil {
		return models.Failed(models.ReasonMalformedProof, "")
	}
	if recovered != v.address {
		return models.Failed(models.ReasonBadSignature, recovered)
	}
	return models.Verified(recovered)
}

// Summarize projects the display fields of cred. It does not verify.
func Summarize(cred *models.Credential) models.ProofSummary {
	if cred == nil {
		return models.ProofSummary{}
	}
	s := cred.CredentialSubject
	return models.ProofSummary{
		Owner:        s.ID,
		ModelInfo:    s.ModelInfo,
		Timestamp:    s.BlockchainProof.Timestamp,
		ProofID:      s.BlockchainProof.ProofID,
		TxHash:       s.BlockchainProof.TransactionHash,
		Network:      s.BlockchainProof.Network,
		Issuer:       cred.Issuer.Name,
		CredentialID: cred.ID,
	}
}

// Status classifies a verification outcome at now. A correctly signed
// credential whose expirationDate has elapsed is expired; an unverified one
// is invalid regardless of expiry.
func Status(cred *models.Credential, result models.VerificationResult, now time.Time) models.StatusView {
	status := models.StatusInvalid
	switch {
	case !result.Verified:
	case expired(cred, now):
		status = models.StatusExpired
	default:
		status = models.StatusValid
	}
	return models.StatusView{Status: status, Label: status.Label()}
}

func expired(cred *models.Credential, now time.Time) bool {
	if cred == nil || cred.ExpirationDate == "" {
		return false
	}
	exp, err := time.Parse(time.RFC3339, cred.ExpirationDate)
	if err != nil {
		return false
	}
	return !now.Before(exp)
}
