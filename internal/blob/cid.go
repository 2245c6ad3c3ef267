// Package blob is the content-addressed store for DID document snapshots.
//
// Content ids are CIDv1 (raw codec, sha2-256 multihash), so identical bytes
// always produce the same id and the id alone is enough to check integrity.
package blob

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var builder = cid.V1Builder{Codec: cid.Raw, MhType: multihash.SHA2_256}

// ComputeCID returns the content id of data.
func ComputeCID(data []byte) (string, error) {
	c, err := builder.Sum(data)
	if err != nil {
		return "", fmt.Errorf("compute cid: %w", err)
	}
	return c.String(), nil
}

// VerifyCID reports whether data hashes to the given content id.
func VerifyCID(contentID string, data []byte) (bool, error) {
	want, err := cid.Decode(contentID)
	if err != nil {
		return false, fmt.Errorf("decode cid: %w", err)
	}
	got, err := want.Prefix().Sum(data)
	if err != nil {
		return false, fmt.Errorf("compute cid: %w", err)
	}
	return got.Equals(want), nil
}
