package store

import (
	"errors"
	"testing"

	"github.com/shareward/shareward/internal/sharing"
)

func sampleRecord(x uint8) sharing.ShareRecord {
	return sharing.ShareRecord{
		Share: sharing.Share{X: sharing.NewNodeId(x), Ys: []byte{1, 2, 3}},
		Meta:  sharing.Metadata{SharesRequired: 2, SharesToCreate: 3, SecretLen: 3},
	}
}

func TestInsertAndGet(t *testing.T) {
	s := New()
	id := sharing.NewClientId(7)
	rec := sampleRecord(1)

	s.Insert(id, rec)

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Share.X != rec.Share.X {
		t.Fatalf("got x=%v, want %v", got.Share.X, rec.Share.X)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := New()
	_, err := s.Get(sharing.NewClientId(99))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertOverwrites(t *testing.T) {
	s := New()
	id := sharing.NewClientId(1)
	s.Insert(id, sampleRecord(1))
	updated := sampleRecord(1)
	updated.Share.Ys = []byte{9, 9, 9}
	s.Insert(id, updated)

	got, _ := s.Get(id)
	if got.Share.Ys[0] != 9 {
		t.Fatalf("overwrite did not apply, got %v", got.Share.Ys)
	}
}

func TestIterIsSortedAndConsistent(t *testing.T) {
	s := New()
	s.Insert(sharing.NewClientId(3), sampleRecord(1))
	s.Insert(sharing.NewClientId(1), sampleRecord(1))
	s.Insert(sharing.NewClientId(2), sampleRecord(1))

	recs := s.Iter()
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i-1].ClientId >= recs[i].ClientId {
			t.Fatalf("Iter() not sorted: %v", recs)
		}
	}
}

func TestRefreshingFlagDefaultsFalse(t *testing.T) {
	s := New()
	if s.Refreshing() {
		t.Fatal("new store should not be refreshing")
	}
	s.SetRefreshing(true)
	if !s.Refreshing() {
		t.Fatal("expected refreshing flag to be true")
	}
	s.SetRefreshing(false)
	if s.Refreshing() {
		t.Fatal("expected refreshing flag to be false")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := New()
	for i := uint64(0); i < 100; i++ {
		s.Insert(sharing.NewClientId(i), sampleRecord(uint8(i%255+1)))
	}

	snap1, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	fresh := New()
	if err := fresh.Restore(snap1); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if fresh.Len() != 100 {
		t.Fatalf("expected 100 records after restore, got %d", fresh.Len())
	}

	snap2, err := fresh.Snapshot()
	if err != nil {
		t.Fatalf("second snapshot failed: %v", err)
	}
	if string(snap1) != string(snap2) {
		t.Fatal("snapshot -> restore -> snapshot is not byte-identical")
	}

	// Restoring must not touch the refresh flag.
	fresh.SetRefreshing(true)
	if err := fresh.Restore(snap1); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if !fresh.Refreshing() {
		t.Fatal("restore must not clear the refresh flag")
	}
}

func TestRestoreRejectsCorruptSnapshot(t *testing.T) {
	s := New()
	s.Insert(sharing.NewClientId(1), sampleRecord(1))
	snap, _ := s.Snapshot()

	corrupt := append([]byte{}, snap...)
	corrupt[len(corrupt)-1] ^= 0xff

	fresh := New()
	if err := fresh.Restore(corrupt); err == nil {
		t.Fatal("expected error restoring corrupted snapshot")
	}
}
