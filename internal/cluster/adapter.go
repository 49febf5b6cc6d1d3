package cluster

import (
	"fmt"

	"github.com/shareward/shareward/internal/field"
	"github.com/shareward/shareward/internal/sharing"
	"github.com/shareward/shareward/internal/store"
)

// StateMachine is what the replicated log primitive requires of its
// user: a deterministic apply function plus a serializer/deserializer
// for log compaction and catch-up. The log substrate itself (election,
// quorum, membership) is assumed available — see Log — and is
// parameterized by this interface rather than reaching into the store
// directly.
type StateMachine interface {
	Apply(cmd []byte) ([]byte, error)
	Snapshot() ([]byte, error)
	Restore(snapshot []byte) error
}

// Adapter wires the replicated log to this node's Store. It is the only
// piece of the cluster package that knows about Command semantics; Log
// itself is oblivious to what the bytes it replicates mean.
type Adapter struct {
	self  sharing.NodeId
	store *store.Store
}

// NewAdapter returns an Adapter that applies commands to store on
// behalf of the node identified by self.
func NewAdapter(self sharing.NodeId, s *store.Store) *Adapter {
	return &Adapter{self: self, store: s}
}

// Apply decodes cmd and applies it to the store. It is invoked once per
// committed log entry, in commit order, on every replica — including the
// one that originated the command.
func (a *Adapter) Apply(cmd []byte) ([]byte, error) {
	c, err := Decode(cmd)
	if err != nil {
		return nil, err
	}

	switch c.Kind {
	case KindStoreShare:
		return nil, a.applyStoreShare(c)
	case KindStartRefresh:
		if sharing.NewNodeId(c.NodeId) != a.self {
			a.store.SetRefreshing(true)
		}
		return nil, nil
	case KindRefresh:
		return nil, a.applyRefresh(c)
	case KindFinishRefresh:
		if sharing.NewNodeId(c.NodeId) != a.self {
			a.store.SetRefreshing(false)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("cluster: unknown command kind %d", c.Kind)
	}
}

// applyStoreShare stores the record only on the node it is addressed
// to, the same addressing-by-x discipline applyRefresh uses. Every
// other replica applies the command (it is deterministic and runs
// everywhere) but its effect on their store is a no-op, which is what
// keeps one node's share out of every other node's map despite all
// commands flowing through one shared log.
func (a *Adapter) applyStoreShare(c Command) error {
	if sharing.NewNodeId(c.X) != a.self {
		return nil
	}

	rec := sharing.ShareRecord{
		Share: sharing.Share{X: sharing.NewNodeId(c.X), Ys: c.Ys},
		Meta: sharing.Metadata{
			SharesRequired: c.SharesRequired,
			SharesToCreate: c.SharesToCreate,
			SecretLen:      c.SecretLen,
		},
	}
	if err := rec.Validate(a.self); err != nil {
		return fmt.Errorf("cluster: rejecting invalid share record: %w", err)
	}
	a.store.Insert(sharing.NewClientId(c.ClientId), rec)
	return nil
}

// applyRefresh merges a refresh delta into the existing record when it
// targets this node. Merging is a field-wise XOR of ys, which is
// commutative: applying Refresh commands for different target nodes in
// any relative order yields the same result on each node, since each
// node only ever acts on the one delta addressed to it.
func (a *Adapter) applyRefresh(c Command) error {
	if sharing.NewNodeId(c.X) != a.self {
		return nil
	}

	existing, err := a.store.Get(sharing.NewClientId(c.ClientId))
	if err != nil {
		// A refresh delta for a client this node has never stored a
		// share for is a protocol violation elsewhere in the cluster,
		// not a condition this apply function can recover from without
		// risking divergence; skip it rather than fabricate a record.
		return nil
	}

	if len(existing.Share.Ys) != len(c.Ys) {
		return fmt.Errorf("cluster: refresh delta length %d does not match share length %d", len(c.Ys), len(existing.Share.Ys))
	}

	merged := make([]byte, len(existing.Share.Ys))
	for i := range merged {
		merged[i] = field.Add(existing.Share.Ys[i], c.Ys[i])
	}
	existing.Share.Ys = merged
	a.store.Insert(sharing.NewClientId(c.ClientId), existing)
	return nil
}

// Snapshot delegates to the underlying store.
func (a *Adapter) Snapshot() ([]byte, error) {
	return a.store.Snapshot()
}

// Restore delegates to the underlying store.
func (a *Adapter) Restore(snapshot []byte) error {
	return a.store.Restore(snapshot)
}
