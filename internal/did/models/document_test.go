package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "neuramark/pkg/domain"
	dErrors "neuramark/pkg/domain-errors"
)

const (
	walletA      = "0x52908400098527886E0F7030069857D2E4169EE7"
	walletALower = "0x52908400098527886e0f7030069857d2e4169ee7"
	walletB      = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
)

type DocumentSuite struct {
	suite.Suite
	now time.Time
	doc *Document
}

func TestDocumentSuite(t *testing.T) {
	suite.Run(t, new(DocumentSuite))
}

func (s *DocumentSuite) SetupTest() {
	s.now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	doc, err := NewDocument(DefaultNamespace, id.AccountID("u1"), "a@x.com", "Ann", nil, s.now)
	s.Require().NoError(err)
	s.doc = doc
}

func (s *DocumentSuite) ref(proofID string) ProofReference {
	return ProofReference{ProofID: proofID, IPFSCID: "Qm1", Model: "gpt-4", Timestamp: "2024-01-01T00:00:00Z", TxHash: "0xdef"}
}

func (s *DocumentSuite) TestNewDocument() {
	s.Run("derives DID and starts with empty proofs", func() {
		s.Equal("did:neuramark:u1", s.doc.ID)
		s.Equal(ContextDIDv1, s.doc.Context)
		s.Empty(s.doc.VerifiedProofs)
		s.NotNil(s.doc.VerifiedProofs)
		s.Equal(s.now, s.doc.CreatedAt)
		s.Equal(s.doc.CreatedAt, s.doc.UpdatedAt)
	})

	s.Run("normalizes and de-duplicates wallets", func() {
		doc, err := NewDocument("neuramark", "u2", "", "", []string{walletA, walletALower, walletB}, s.now)
		s.Require().NoError(err)
		s.Equal([]string{walletALower, "0x8617e340b3d01fa5f11f306f4090fd50e238070d"}, doc.Wallets)
	})

	s.Run("rejects invalid wallets", func() {
		_, err := NewDocument("neuramark", "u2", "", "", []string{"not-a-wallet"}, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects empty account", func() {
		_, err := NewDocument("neuramark", "", "", "", nil, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("cannot claim the issuer DID", func() {
		_, err := NewDocument("neuramark", "platform:issuer", "", "", nil, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		s.Equal("did:neuramark:platform:issuer", IssuerDID("neuramark"))
		s.Equal("did:neuramark:platform:issuer", IssuerDID(""))
	})
}

func (s *DocumentSuite) TestAddProof() {
	s.Run("appends in order", func() {
		one, err := Apply(s.doc, AddProof{Ref: s.ref("0xabc")}, s.now.Add(time.Minute))
		s.Require().NoError(err)
		two, err := Apply(one, AddProof{Ref: s.ref("0xdef")}, s.now.Add(2*time.Minute))
		s.Require().NoError(err)

		s.Len(two.VerifiedProofs, 2)
		s.Equal("0xabc", two.VerifiedProofs[0].ProofID)
		s.Equal("0xdef", two.VerifiedProofs[1].ProofID)
		s.Equal(s.now.Add(2*time.Minute), two.UpdatedAt)
	})

	s.Run("does not modify the input document", func() {
		_, err := Apply(s.doc, AddProof{Ref: s.ref("0xabc")}, s.now)
		s.Require().NoError(err)
		s.Empty(s.doc.VerifiedProofs)
	})

	s.Run("appends a duplicate proof id as-is", func() {
		one, err := Apply(s.doc, AddProof{Ref: s.ref("0xabc")}, s.now)
		s.Require().NoError(err)
		two, err := Apply(one, AddProof{Ref: s.ref("0xabc")}, s.now)
		s.Require().NoError(err)
		s.Len(two.VerifiedProofs, 2)
	})

	s.Run("rejects an empty proof id", func() {
		_, err := Apply(s.doc, AddProof{}, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *DocumentSuite) TestWallets() {
	s.Run("adding the same wallet twice is idempotent", func() {
		once, err := Apply(s.doc, AddWallet{Address: walletA}, s.now)
		s.Require().NoError(err)
		twice, err := Apply(once, AddWallet{Address: walletALower}, s.now)
		s.Require().NoError(err)
		s.Equal(once.Wallets, twice.Wallets)
		s.Equal([]string{walletALower}, twice.Wallets)
	})

	s.Run("remove filters regardless of casing", func() {
		with, err := Apply(s.doc, AddWallet{Address: walletA}, s.now)
		s.Require().NoError(err)
		without, err := Apply(with, RemoveWallet{Address: walletALower}, s.now)
		s.Require().NoError(err)
		s.Empty(without.Wallets)
		s.Len(with.Wallets, 1, "input must be untouched")
	})

	s.Run("remove of an absent wallet is a no-op", func() {
		out, err := Apply(s.doc, RemoveWallet{Address: walletB}, s.now)
		s.Require().NoError(err)
		s.Empty(out.Wallets)
	})

	s.Run("invalid address is rejected", func() {
		_, err := Apply(s.doc, AddWallet{Address: "0x123"}, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("removing an unparseable address is a no-op", func() {
		with, err := Apply(s.doc, AddWallet{Address: walletA}, s.now)
		s.Require().NoError(err)
		out, err := Apply(with, RemoveWallet{Address: "0x123"}, s.now)
		s.Require().NoError(err)
		s.Equal(with.Wallets, out.Wallets)
	})
}

func (s *DocumentSuite) TestUpdatedAtNeverDecreases() {
	later, err := Apply(s.doc, AddWallet{Address: walletA}, s.now.Add(time.Hour))
	s.Require().NoError(err)
	skewed, err := Apply(later, AddWallet{Address: walletB}, s.now)
	s.Require().NoError(err)
	s.Equal(s.now.Add(time.Hour), skewed.UpdatedAt)
}

// TestAppendOnlyAcrossActionSequences checks that no sequence of actions
// shrinks or reorders the proof list.
func (s *DocumentSuite) TestAppendOnlyAcrossActionSequences() {
	actions := []Action{
		AddProof{Ref: s.ref("p1")},
		AddWallet{Address: walletA},
		AddProof{Ref: s.ref("p2")},
		RemoveWallet{Address: walletA},
		RemoveWallet{Address: walletB},
		AddProof{Ref: s.ref("p1")},
		AddWallet{Address: walletB},
	}

	doc := s.doc
	for i, action := range actions {
		next, err := Apply(doc, action, s.now.Add(time.Duration(i)*time.Second))
		s.Require().NoError(err)
		s.GreaterOrEqual(len(next.VerifiedProofs), len(doc.VerifiedProofs))
		s.Equal(doc.VerifiedProofs, next.VerifiedProofs[:len(doc.VerifiedProofs)])
		doc = next
	}
	s.Len(doc.VerifiedProofs, 3)
}

func (s *DocumentSuite) TestUnknownAction() {
	_, err := Apply(s.doc, nil, s.now)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = Apply(s.doc, &AddWallet{Address: walletA}, s.now)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *DocumentSuite) TestLookups() {
	doc, err := Apply(s.doc, AddWallet{Address: walletA}, s.now)
	s.Require().NoError(err)
	doc, err = Apply(doc, AddProof{Ref: s.ref("0xabc")}, s.now)
	s.Require().NoError(err)

	s.True(doc.HasWallet(walletALower))
	s.True(doc.HasWallet(walletA))
	s.False(doc.HasWallet("garbage"))
	s.True(doc.HasProof("0xabc"))
	s.False(doc.HasProof("0xzzz"))
}
