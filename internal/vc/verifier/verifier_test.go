package verifier

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"neuramark/internal/anchor"
	proofmodels "neuramark/internal/proof/models"
	"neuramark/internal/vc/issuer"
	"neuramark/internal/vc/models"
	"neuramark/internal/vc/signer"
	dErrors "neuramark/pkg/domain-errors"
	"neuramark/pkg/requestcontext"
)

const issuerDID = "did:neuramark:platform:issuer"

type VerifierSuite struct {
	suite.Suite
	ctx      context.Context
	issuer   *issuer.Issuer
	verifier *Verifier
	now      time.Time
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	keys, err := signer.GenerateKeyProvider()
	s.Require().NoError(err)
	s.issuer = issuer.New(keys, issuerDID, "NeuraMark")
	s.verifier = New(issuerDID, keys.Address())
	s.now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func testProof() *proofmodels.Proof {
	return &proofmodels.Proof{
		ProofID:    "0xabc",
		PromptHash: "0x1111",
		OutputHash: "0x2222",
		PromptCID:  "bafkprompt",
		OutputCID:  "bafkoutput",
		ModelInfo:  "gpt-4",
		OutputType: "text",
		TxHash:     "0xdef",
		Wallet:     "0xabcdef0123456789abcdef0123456789abcdef01",
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testAnchor() anchor.Anchor {
	return anchor.Anchor{
		Network:         "polygon-amoy",
		ContractAddress: "0x5fbdb2315678afecb367f032d93f642f64180aa3",
		TransactionHash: "0xdef",
		Timestamp:       time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC),
	}
}

func (s *VerifierSuite) signed() *models.Credential {
	unsigned, err := s.issuer.Issue(s.ctx, testProof(), "did:neuramark:u1", testAnchor())
	s.Require().NoError(err)
	cred, err := s.issuer.Sign(s.ctx, unsigned)
	s.Require().NoError(err)
	return cred
}

func (s *VerifierSuite) TestIssue() {
	unsigned, err := s.issuer.Issue(s.ctx, testProof(), "did:neuramark:u1", testAnchor())
	s.Require().NoError(err)

	s.Equal("urn:neuramark:credential:0xabc", unsigned.ID)
	s.Equal("2025-03-01T12:00:00Z", unsigned.IssuanceDate)
	s.Nil(unsigned.Proof)
	s.Equal("did:neuramark:u1", unsigned.CredentialSubject.ID)
	s.Equal("0xabc", unsigned.CredentialSubject.BlockchainProof.ProofID)
	s.Equal("2024-01-01T00:00:05Z", unsigned.CredentialSubject.BlockchainProof.Timestamp)
	s.Equal("bafkoutput", unsigned.CredentialSubject.IPFSMetadata.OutputCID)
	s.Empty(unsigned.ExpirationDate)

	raw, err := json.Marshal(unsigned)
	s.Require().NoError(err)
	s.NotContains(string(raw), `"proof"`)

	again, err := s.issuer.Issue(s.ctx, testProof(), "did:neuramark:u1", testAnchor())
	s.Require().NoError(err)
	s.Equal(unsigned.ID, again.ID)
}

func (s *VerifierSuite) TestRoundTrip() {
	for _, model := range []string{"gpt-4", "claude", "", "llama <3> & \"friends\""} {
		p := testProof()
		p.ModelInfo = model
		unsigned, err := s.issuer.Issue(s.ctx, p, "did:neuramark:u1", testAnchor())
		s.Require().NoError(err)
		cred, err := s.issuer.Sign(s.ctx, unsigned)
		s.Require().NoError(err)

		res := s.verifier.Verify(cred)
		s.True(res.Verified, model)
		s.Equal(s.issuer.Address(), res.Signer)
		s.Equal(models.ProofTypeSecp256k1, cred.Proof.Type)
		s.Equal(models.ProofPurpose, cred.Proof.ProofPurpose)
		s.Equal(issuerDID+"#"+s.issuer.Address(), cred.Proof.VerificationMethod)
		s.Nil(unsigned.Proof, "signing must not modify its input")
	}
}

func (s *VerifierSuite) TestTamperedSubjectIsBadSignature() {
	mutations := map[string]func(c *models.Credential){
		"id":              func(c *models.Credential) { c.CredentialSubject.ID = "did:neuramark:u2" },
		"promptHash":      func(c *models.Credential) { c.CredentialSubject.PromptHash = "0x9999" },
		"outputHash":      func(c *models.Credential) { c.CredentialSubject.OutputHash = "0x9999" },
		"promptCID":       func(c *models.Credential) { c.CredentialSubject.PromptCID = "bafkother" },
		"outputCID":       func(c *models.Credential) { c.CredentialSubject.OutputCID = "bafkother" },
		"modelInfo":       func(c *models.Credential) { c.CredentialSubject.ModelInfo = "gpt-5" },
		"outputType":      func(c *models.Credential) { c.CredentialSubject.OutputType = "image" },
		"network":         func(c *models.Credential) { c.CredentialSubject.BlockchainProof.Network = "mainnet" },
		"transactionHash": func(c *models.Credential) { c.CredentialSubject.BlockchainProof.TransactionHash = "0x0" },
		"timestamp":       func(c *models.Credential) { c.CredentialSubject.BlockchainProof.Timestamp = "2030-01-01T00:00:00Z" },
		"ipfsMetadata":    func(c *models.Credential) { c.CredentialSubject.IPFSMetadata.OutputCID = "bafkother" },
		"issuanceDate":    func(c *models.Credential) { c.IssuanceDate = "2020-01-01T00:00:00Z" },
		"expirationDate":  func(c *models.Credential) { c.ExpirationDate = "2030-01-01T00:00:00Z" },
	}
	for name, mutate := range mutations {
		s.Run(name, func() {
			cred := s.signed()
			mutate(cred)
			res := s.verifier.Verify(cred)
			s.False(res.Verified)
			s.Equal(models.ReasonBadSignature, res.Reason)
		})
	}
}

func (s *VerifierSuite) TestUnknownIssuer() {
	s.Run("issuer id is not the platform DID", func() {
		cred := s.signed()
		cred.Issuer.ID = "did:example:mallory"
		s.Equal(models.ReasonUnknownIssuer, s.verifier.Verify(cred).Reason)
	})

	s.Run("credential signed by a foreign key", func() {
		otherKeys, err := signer.GenerateKeyProvider()
		s.Require().NoError(err)
		other := issuer.New(otherKeys, issuerDID, "NeuraMark")
		unsigned, err := other.Issue(s.ctx, testProof(), "did:neuramark:u1", testAnchor())
		s.Require().NoError(err)
		cred, err := other.Sign(s.ctx, unsigned)
		s.Require().NoError(err)

		res := s.verifier.Verify(cred)
		s.False(res.Verified)
		s.Equal(models.ReasonUnknownIssuer, res.Reason)

		cred.Proof.VerificationMethod = s.issuer.VerificationMethod()
		res = s.verifier.Verify(cred)
		s.Equal(models.ReasonBadSignature, res.Reason)
		s.Equal(otherKeys.Address(), res.Signer)
	})
}

func (s *VerifierSuite) TestMalformedProof() {
	cases := map[string]func(c *models.Credential){
		"missing proof":   func(c *models.Credential) { c.Proof = nil },
		"wrong type":      func(c *models.Credential) { c.Proof.Type = "Ed25519Signature2020" },
		"wrong purpose":   func(c *models.Credential) { c.Proof.ProofPurpose = "authentication" },
		"empty value":     func(c *models.Credential) { c.Proof.ProofValue = "" },
		"not hex":         func(c *models.Credential) { c.Proof.ProofValue = "signature" },
		"truncated value": func(c *models.Credential) { c.Proof.ProofValue = c.Proof.ProofValue[:20] },
	}
	for name, mutate := range cases {
		s.Run(name, func() {
			cred := s.signed()
			mutate(cred)
			res := s.verifier.Verify(cred)
			s.False(res.Verified)
			s.Equal(models.ReasonMalformedProof, res.Reason)
		})
	}

	s.Run("nil credential", func() {
		s.Equal(models.ReasonMalformedProof, s.verifier.Verify(nil).Reason)
	})
}

func (s *VerifierSuite) TestExportIsFixedPoint() {
	cred := s.signed()
	text, err := issuer.Export(cred)
	s.Require().NoError(err)
	s.False(strings.ContainsAny(text, "\n\t"))
	s.True(strings.HasPrefix(text, `{"@context":[`))

	parsed, err := Parse(text)
	s.Require().NoError(err)
	again, err := issuer.Export(parsed)
	s.Require().NoError(err)
	s.Equal(text, again)
	s.True(s.verifier.Verify(parsed).Verified)
}

func (s *VerifierSuite) TestParse() {
	cred := s.signed()
	text, err := issuer.Export(cred)
	s.Require().NoError(err)

	var generic map[string]any
	s.Require().NoError(json.Unmarshal([]byte(text), &generic))

	s.Run("accepts every supported input form", func() {
		for name, input := range map[string]any{
			"string":  text,
			"bytes":   []byte(text),
			"raw":     json.RawMessage(text),
			"map":     generic,
			"value":   *cred,
			"pointer": cred,
		} {
			parsed, err := Parse(input)
			s.Require().NoError(err, name)
			s.True(s.verifier.Verify(parsed).Verified, name)
		}
	})

	s.Run("rejects missing required members", func() {
		for _, field := range []string{"@context", "type", "credentialSubject"} {
			m := map[string]any{}
			for k, v := range generic {
				if k != field {
					m[k] = v
				}
			}
			_, err := Parse(m)
			s.True(dErrors.HasCode(err, dErrors.CodeMalformedCredential), field)
		}
	})

	s.Run("rejects empty typed credentials", func() {
		_, err := Parse(&models.Credential{})
		s.True(dErrors.HasCode(err, dErrors.CodeMalformedCredential))
	})

	s.Run("rejects unknown members", func() {
		_, err := Parse(strings.Replace(text, `{"@context"`, `{"extra":1,"@context"`, 1))
		s.True(dErrors.HasCode(err, dErrors.CodeMalformedCredential))
	})

	s.Run("rejects non-JSON and unsupported input", func() {
		for _, input := range []any{"not json", []byte("[1,2]"), 42, nil} {
			_, err := Parse(input)
			s.True(dErrors.HasCode(err, dErrors.CodeMalformedCredential))
		}
	})
}

func (s *VerifierSuite) TestSummarize() {
	sum := Summarize(s.signed())
	s.Equal(models.ProofSummary{
		Owner:        "did:neuramark:u1",
		ModelInfo:    "gpt-4",
		Timestamp:    "2024-01-01T00:00:05Z",
		ProofID:      "0xabc",
		TxHash:       "0xdef",
		Network:      "polygon-amoy",
		Issuer:       "NeuraMark",
		CredentialID: "urn:neuramark:credential:0xabc",
	}, sum)
}

func (s *VerifierSuite) TestStatus() {
	cred := s.signed()

	s.Run("verified is valid", func() {
		view := Status(cred, s.verifier.Verify(cred), s.now)
		s.Equal(models.StatusValid, view.Status)
		s.Equal("Verified", view.Label)
	})

	s.Run("failed verification is invalid", func() {
		view := Status(cred, models.Failed(models.ReasonBadSignature, ""), s.now)
		s.Equal(models.StatusInvalid, view.Status)
		s.Equal("Invalid", view.Label)
	})

	s.Run("elapsed expiration is expired", func() {
		expiring := cred.Unsigned()
		expiring.ExpirationDate = "2025-02-01T00:00:00Z"
		signed, err := s.issuer.Sign(s.ctx, expiring)
		s.Require().NoError(err)

		view := Status(signed, s.verifier.Verify(signed), s.now)
		s.Equal(models.StatusExpired, view.Status)
		s.Equal("Expired", view.Label)

		view = Status(signed, s.verifier.Verify(signed), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
		s.Equal(models.StatusValid, view.Status)
	})
}
