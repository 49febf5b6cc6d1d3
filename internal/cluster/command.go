package cluster

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Kind discriminates the command variants that flow through the
// replicated log. Every command is applied identically, and
// deterministically, on every replica in commit order.
type Kind uint8

const (
	// KindStoreShare stores a client's share record. Issued by the
	// admission API on the leader path.
	KindStoreShare Kind = iota + 1

	// KindStartRefresh marks the start of a refresh round. On apply,
	// every node other than NodeId sets its refreshing flag.
	KindStartRefresh

	// KindRefresh carries one (client, target node) refresh delta.
	// Issued once per (client_id, target_x) pair during a refresh round.
	KindRefresh

	// KindFinishRefresh marks the end of a refresh round, symmetric to
	// KindStartRefresh.
	KindFinishRefresh
)

// Command is the single wire type for all consensus command variants.
// Unused fields for a given Kind are left at their zero value; the
// apply function in package cluster knows which fields each Kind reads.
//
// Field widths mirror the external wire contract: ClientId is a u64,
// NodeId and X are u8, Ys is a length-prefixed byte string (cbor gives
// us this for free as a byte-string major type).
type Command struct {
	Kind Kind

	ClientId uint64 // StoreShare, Refresh
	NodeId   uint8  // StartRefresh, FinishRefresh: originating node

	X  uint8  // StoreShare, Refresh: the share's evaluation point
	Ys []byte // StoreShare, Refresh: per-byte share values

	SharesRequired uint8  // StoreShare
	SharesToCreate uint8  // StoreShare
	SecretLen      uint64 // StoreShare
}

// Encode serializes a Command to its canonical binary form.
func Encode(cmd Command) ([]byte, error) {
	b, err := cbor.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("cluster: encoding command: %w", err)
	}
	return b, nil
}

// Decode parses a Command from its binary form, as produced by Encode.
func Decode(b []byte) (Command, error) {
	var cmd Command
	if err := cbor.Unmarshal(b, &cmd); err != nil {
		return Command{}, fmt.Errorf("cluster: decoding command: %w", err)
	}
	return cmd, nil
}
