package models

import (
	"encoding/json"
	"strings"
	"time"

	dErrors "neuramark/pkg/domain-errors"
)

// ActionType tags the variants of Action on the wire.
type ActionType string

const (
	ActionAddProof     ActionType = "add_proof"
	ActionAddWallet    ActionType = "add_wallet"
	ActionRemoveWallet ActionType = "remove_wallet"
)

// Action is a DID document mutation. The set of variants is closed:
// AddProof, AddWallet and RemoveWallet.
type Action interface {
	Type() ActionType
	sealed()
}

// AddProof appends a proof reference. Duplicates are not filtered here.
type AddProof struct {
	Ref ProofReference
}

// AddWallet links a wallet; a no-op if it is already linked.
type AddWallet struct {
	Address string
}

// RemoveWallet unlinks a wallet; a no-op if it is not linked.
type RemoveWallet struct {
	Address string
}

func (AddProof) Type() ActionType     { return ActionAddProof }
func (AddWallet) Type() ActionType    { return ActionAddWallet }
func (RemoveWallet) Type() ActionType { return ActionRemoveWallet }

func (AddProof) sealed()     {}
func (AddWallet) sealed()    {}
func (RemoveWallet) sealed() {}

// Apply computes the document that results from action. It performs no I/O
// and never modifies doc.
func Apply(doc *Document, action Action, now time.Time) (*Document, error) {
	if doc == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document is required")
	}
	next := doc.Clone()

	switch a := action.(type) {
	case AddProof:
		if strings.TrimSpace(a.Ref.ProofID) == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "proofId is required")
		}
		next.VerifiedProofs = append(next.VerifiedProofs, a.Ref)
	case AddWallet:
		addr, err := NormalizeWallet(a.Address)
		if err != nil {
			return nil, err
		}
		if !next.HasWallet(addr) {
			next.Wallets = append(next.Wallets, addr)
		}
	case RemoveWallet:
		// An address that does not normalize was never linked.
		addr, err := NormalizeWallet(a.Address)
		if err != nil {
			break
		}
		kept := next.Wallets[:0]
		for _, w := range next.Wallets {
			if w != addr {
				kept = append(kept, w)
			}
		}
		next.Wallets = kept
	case nil:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "action is required")
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown action "+string(action.Type()))
	}

	now = now.UTC()
	if now.After(next.UpdatedAt) {
		next.UpdatedAt = now
	}
	return next, nil
}

// actionEnvelope is the wire form of an Action.
type actionEnvelope struct {
	Type    ActionType      `json:"type"`
	Proof   *ProofReference `json:"proof,omitempty"`
	Address string          `json:"address,omitempty"`
}

// ParseAction decodes the tagged JSON form of an action:
//
//	{"type":"add_proof","proof":{"proofId":"0xabc",...}}
//	{"type":"add_wallet","address":"0x..."}
//	{"type":"remove_wallet","address":"0x..."}
func ParseAction(raw []byte) (Action, error) {
	var env actionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid action body")
	}
	switch env.Type {
	case ActionAddProof:
		if env.Proof == nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "proof is required for add_proof")
		}
		return AddProof{Ref: *env.Proof}, nil
	case ActionAddWallet:
		return AddWallet{Address: env.Address}, nil
	case ActionRemoveWallet:
		return RemoveWallet{Address: env.Address}, nil
	case "":
		return nil, dErrors.New(dErrors.CodeInvalidInput, "action type is required")
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown action type "+string(env.Type))
	}
}

// MarshalAction encodes an action in its tagged wire form.
func MarshalAction(action Action) ([]byte, error) {
	switch a := action.(type) {
	case AddProof:
		ref := a.Ref
		return json.Marshal(actionEnvelope{Type: ActionAddProof, Proof: &ref})
	case AddWallet:
		return json.Marshal(actionEnvelope{Type: ActionAddWallet, Address: a.Address})
	case RemoveWallet:
		return json.Marshal(actionEnvelope{Type: ActionRemoveWallet, Address: a.Address})
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown action")
	}
}
