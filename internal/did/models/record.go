package models

import (
	"time"

	id "neuramark/pkg/domain"
)

// Record is the authoritative pointer from an account to its latest DID
// document blob. CurrentCID only ever names a blob whose write was
// acknowledged. Version increases by one on every successful commit and is
// the optimistic-concurrency token for conditional updates.
type Record struct {
	AccountID  id.AccountID
	DIDID      string
	Document   Document
	CurrentCID string
	ProofCount int
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewRecord builds the first record for a freshly created document.
func NewRecord(accountID id.AccountID, doc *Document, cid string) *Record {
	return &Record{
		AccountID:  accountID,
		DIDID:      doc.ID,
		Document:   *doc.Clone(),
		CurrentCID: cid,
		ProofCount: len(doc.VerifiedProofs),
		Version:    1,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}

// Advance returns the record that a commit of doc at cid produces.
func (r *Record) Advance(doc *Document, cid string) *Record {
	next := *r
	next.Document = *doc.Clone()
	next.CurrentCID = cid
	next.ProofCount = len(doc.VerifiedProofs)
	next.Version = r.Version + 1
	next.UpdatedAt = doc.UpdatedAt
	return &next
}
