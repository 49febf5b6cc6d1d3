// Package sharing defines the data model shared by the store, the
// cluster adapter, and the admission API: the opaque ClientId and
// NodeId identifiers, and the Share/Metadata/ShareRecord triple.
package sharing

import "fmt"

// ClientId is an opaque 64-bit identifier chosen by the client, unique
// per secret. It is never derived from or converted to a raw integer
// outside this package's constructor.
type ClientId uint64

// NewClientId wraps a raw value as a ClientId.
func NewClientId(v uint64) ClientId { return ClientId(v) }

// Uint64 returns the raw encoding of the id, for wire/storage use only.
func (c ClientId) Uint64() uint64 { return uint64(c) }

func (c ClientId) String() string { return fmt.Sprintf("%d", uint64(c)) }

// NodeId is this node's 1..255 evaluation point. It equals the x
// coordinate of every Share this node stores.
type NodeId uint8

// NewNodeId wraps a raw value as a NodeId. It does not validate range;
// callers that parse untrusted input should check Valid().
func NewNodeId(v uint8) NodeId { return NodeId(v) }

// Uint8 returns the raw encoding of the id.
func (n NodeId) Uint8() uint8 { return uint8(n) }

// Valid reports whether n is a legal evaluation point (1..255). Zero is
// never valid: it would evaluate a share polynomial at its secret-bearing
// intercept.
func (n NodeId) Valid() bool { return n != 0 }

func (n NodeId) String() string { return fmt.Sprintf("%d", uint8(n)) }

// Share is one (x, ys) point of a (K,N) threshold split: x is the node's
// fixed evaluation point, and ys[i] is the evaluation at x of the i-th
// per-byte sharing polynomial for a secret of length len(ys).
type Share struct {
	X  NodeId
	Ys []byte
}

// Metadata is the immutable (K,N,L) triple attached to a ClientId's
// record: the reconstruction threshold, the total share count, and the
// secret length in bytes.
type Metadata struct {
	SharesRequired uint8
	SharesToCreate uint8
	SecretLen      uint64
}

// Validate checks the metadata invariants: 1 <= K <= N <= 255, L >= 1.
func (m Metadata) Validate() error {
	if m.SharesRequired < 1 {
		return fmt.Errorf("sharing: shares_required must be >= 1, got %d", m.SharesRequired)
	}
	if m.SharesRequired > m.SharesToCreate {
		return fmt.Errorf("sharing: shares_required (%d) must be <= shares_to_create (%d)", m.SharesRequired, m.SharesToCreate)
	}
	if m.SecretLen < 1 {
		return fmt.Errorf("sharing: sec_len must be >= 1, got %d", m.SecretLen)
	}
	return nil
}

// ShareRecord is one node's persisted record for a ClientId: its share
// plus the metadata describing the scheme it belongs to.
type ShareRecord struct {
	Share Share
	Meta  Metadata
}

// Validate checks that the record's invariants hold for the given node:
// the share's x coordinate must equal the node's own id, its ys length
// must equal the declared secret length, and the metadata must be
// internally consistent.
func (r ShareRecord) Validate(self NodeId) error {
	if err := r.Meta.Validate(); err != nil {
		return err
	}
	if r.Share.X != self {
		return fmt.Errorf("sharing: share.x (%d) does not match this node's id (%d)", r.Share.X, self)
	}
	if uint64(len(r.Share.Ys)) != r.Meta.SecretLen {
		return fmt.Errorf("sharing: share has %d bytes, metadata declares sec_len=%d", len(r.Share.Ys), r.Meta.SecretLen)
	}
	return nil
}
