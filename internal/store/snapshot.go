package store

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/shareward/shareward/internal/sharing"
)

// snapshotEntry is the wire shape of one ClientId -> ShareRecord pair in
// a snapshot. Using an explicit slice (rather than a cbor map keyed by
// ClientId) keeps the key order under our control: entries are always
// written sorted by ClientId so two snapshots of the same store state
// encode to byte-identical output.
type snapshotEntry struct {
	ClientId       uint64
	X              uint8
	Ys             []byte
	SharesRequired uint8
	SharesToCreate uint8
	SecretLen      uint64
}

// snapshotEnvelope wraps the sorted entries with a content checksum so
// Restore can detect truncated or corrupted input before trusting it.
type snapshotEnvelope struct {
	Checksum []byte
	Entries  []snapshotEntry
}

// Snapshot returns a canonical, deterministic encoding of the whole
// store. The refresh flag is intentionally excluded: a node restoring
// from a snapshot always comes up with refreshing=false and re-learns
// phase from subsequent log entries (see cluster.Adapter.Apply).
func (s *Store) Snapshot() ([]byte, error) {
	records := s.Iter() // already sorted by ClientId

	entries := make([]snapshotEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, snapshotEntry{
			ClientId:       r.ClientId.Uint64(),
			X:              r.ShareRecord.Share.X.Uint8(),
			Ys:             r.ShareRecord.Share.Ys,
			SharesRequired: r.ShareRecord.Meta.SharesRequired,
			SharesToCreate: r.ShareRecord.Meta.SharesToCreate,
			SecretLen:      r.ShareRecord.Meta.SecretLen,
		})
	}

	body, err := cbor.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("store: marshalling snapshot entries: %w", err)
	}

	sum := blake3.Sum256(body)

	envelope, err := cbor.Marshal(snapshotEnvelope{
		Checksum: sum[:],
		Entries:  entries,
	})
	if err != nil {
		return nil, fmt.Errorf("store: marshalling snapshot envelope: %w", err)
	}
	return envelope, nil
}

// Restore replaces the store's contents with the records encoded in
// snapshot, as produced by Snapshot. It does not touch the refresh flag.
func (s *Store) Restore(snapshot []byte) error {
	var envelope snapshotEnvelope
	if err := cbor.Unmarshal(snapshot, &envelope); err != nil {
		return fmt.Errorf("store: unmarshalling snapshot: %w", err)
	}

	body, err := cbor.Marshal(envelope.Entries)
	if err != nil {
		return fmt.Errorf("store: re-marshalling snapshot entries: %w", err)
	}
	sum := blake3.Sum256(body)
	if len(envelope.Checksum) != len(sum) || string(envelope.Checksum) != string(sum[:]) {
		return fmt.Errorf("store: snapshot checksum mismatch")
	}

	data := make(map[sharing.ClientId]sharing.ShareRecord, len(envelope.Entries))
	for _, e := range envelope.Entries {
		data[sharing.NewClientId(e.ClientId)] = sharing.ShareRecord{
			Share: sharing.Share{
				X:  sharing.NewNodeId(e.X),
				Ys: e.Ys,
			},
			Meta: sharing.Metadata{
				SharesRequired: e.SharesRequired,
				SharesToCreate: e.SharesToCreate,
				SecretLen:      e.SecretLen,
			},
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	return nil
}
