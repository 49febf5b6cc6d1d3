package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shareward/shareward/internal/field"
	"github.com/shareward/shareward/internal/sharing"
	"github.com/shareward/shareward/internal/store"
)

// fakeTransport routes Replicate/Forward calls directly to in-process
// Logs, keyed by the address each Log was registered under, so tests
// can exercise multi-node commit behavior without a network.
type fakeTransport struct {
	logs map[string]*Log
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{logs: make(map[string]*Log)}
}

func (f *fakeTransport) register(addr string, l *Log) {
	f.logs[addr] = l
}

func (f *fakeTransport) Replicate(_ context.Context, addr string, cmd []byte) ([]byte, error) {
	l, ok := f.logs[addr]
	if !ok {
		return nil, ErrConsensus
	}
	return l.HandleReplicate(cmd)
}

func (f *fakeTransport) Forward(ctx context.Context, addr string, cmd []byte) ([]byte, error) {
	l, ok := f.logs[addr]
	if !ok {
		return nil, ErrConsensus
	}
	return l.HandleForward(ctx, cmd)
}

type node struct {
	id    sharing.NodeId
	store *store.Store
	log   *Log
}

// newCluster wires n nodes (node 1 is leader) sharing one fakeTransport.
func newCluster(n int) (*fakeTransport, []*node) {
	transport := newFakeTransport()
	leader := sharing.NewNodeId(1)

	nodes := make([]*node, n)
	addrFor := func(id sharing.NodeId) string { return id.String() }

	for i := 0; i < n; i++ {
		id := sharing.NewNodeId(uint8(i + 1))
		s := store.New()
		adapter := NewAdapter(id, s)
		peers := make(map[sharing.NodeId]string)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			peers[sharing.NewNodeId(uint8(j+1))] = addrFor(sharing.NewNodeId(uint8(j + 1)))
		}
		l := NewLog(id, leader, peers, transport, adapter)
		nodes[i] = &node{id: id, store: s, log: l}
		transport.register(addrFor(id), l)
	}
	return transport, nodes
}

func TestProposeStoresOnlyOnTheAddressedNode(t *testing.T) {
	_, nodes := newCluster(3)
	leader := nodes[0]

	cmd := Command{Kind: KindStoreShare, ClientId: 1, X: 1, Ys: []byte{5, 6, 7}, SharesRequired: 2, SharesToCreate: 3, SecretLen: 3}
	_, err := leader.log.Propose(context.Background(), cmd)
	require.NoError(t, err)

	rec, err := nodes[0].store.Get(sharing.NewClientId(1))
	require.NoError(t, err)
	require.Equal(t, []byte{5, 6, 7}, rec.Share.Ys)

	// Every command is applied on every replica, deterministically, but
	// the effect is a no-op on a node the share isn't addressed to: the
	// security model depends on node 2 and 3 never holding node 1's share.
	for _, n := range nodes[1:] {
		_, err := n.store.Get(sharing.NewClientId(1))
		require.ErrorIs(t, err, store.ErrNotFound)
	}
}

func TestProposeFromFollowerForwardsToLeader(t *testing.T) {
	_, nodes := newCluster(3)
	follower := nodes[1]

	cmd := Command{Kind: KindStoreShare, ClientId: 9, X: 2, Ys: []byte{1}, SharesRequired: 1, SharesToCreate: 1, SecretLen: 1}
	_, err := follower.log.Propose(context.Background(), cmd)
	require.NoError(t, err)

	rec, err := nodes[1].store.Get(sharing.NewClientId(9))
	require.NoError(t, err)
	require.Equal(t, []byte{1}, rec.Share.Ys)
}

func TestStartRefreshExcludesOriginator(t *testing.T) {
	_, nodes := newCluster(3)
	leader := nodes[0]

	_, err := leader.log.Propose(context.Background(), Command{Kind: KindStartRefresh, NodeId: leader.id.Uint8()})
	require.NoError(t, err)

	require.False(t, leader.store.Refreshing(), "originator should not be flagged")
	for _, n := range nodes[1:] {
		require.True(t, n.store.Refreshing(), "non-originator should be flagged")
	}
}

func TestFinishRefreshExcludesOriginator(t *testing.T) {
	_, nodes := newCluster(3)
	leader := nodes[0]
	ctx := context.Background()

	_, err := leader.log.Propose(ctx, Command{Kind: KindStartRefresh, NodeId: leader.id.Uint8()})
	require.NoError(t, err)

	leader.store.SetRefreshing(true) // simulate originator having set it itself pre-round

	_, err = leader.log.Propose(ctx, Command{Kind: KindFinishRefresh, NodeId: leader.id.Uint8()})
	require.NoError(t, err)

	require.True(t, leader.store.Refreshing(), "FinishRefresh must not touch the originator's flag")
	for _, n := range nodes[1:] {
		require.False(t, n.store.Refreshing())
	}
}

func TestRefreshMergesDeltaOnTargetNodeOnly(t *testing.T) {
	_, nodes := newCluster(3)
	leader := nodes[0]
	ctx := context.Background()

	original := []byte{10, 20, 30}
	_, err := leader.log.Propose(ctx, Command{
		Kind: KindStoreShare, ClientId: 1, X: 2, Ys: original,
		SharesRequired: 2, SharesToCreate: 3, SecretLen: 3,
	})
	require.NoError(t, err)

	delta := []byte{1, 2, 3}
	_, err = leader.log.Propose(ctx, Command{Kind: KindRefresh, ClientId: 1, X: 2, Ys: delta})
	require.NoError(t, err)

	target := nodes[1] // node 2
	rec, err := target.store.Get(sharing.NewClientId(1))
	require.NoError(t, err)
	want := []byte{field.Add(original[0], delta[0]), field.Add(original[1], delta[1]), field.Add(original[2], delta[2])}
	require.Equal(t, want, rec.Share.Ys)

	// A node whose X doesn't match the refresh target is untouched: node
	// 1 never stored a share at all here, node 3 likewise has nothing.
	_, err = nodes[0].store.Get(sharing.NewClientId(1))
	require.Error(t, err)
}

func TestProposeFailsWithoutMajority(t *testing.T) {
	transport := newFakeTransport()
	leader := sharing.NewNodeId(1)
	id := sharing.NewNodeId(1)
	s := store.New()
	l := NewLog(id, leader, map[sharing.NodeId]string{
		sharing.NewNodeId(2): "2",
		sharing.NewNodeId(3): "3",
	}, transport, NewAdapter(id, s))
	// Peers 2 and 3 are never registered with the transport, so every
	// Replicate call fails and the leader is left alone, below majority.
	transport.register("1", l)

	_, err := l.Propose(context.Background(), Command{Kind: KindStoreShare, ClientId: 1, X: 1, Ys: []byte{1}, SharesRequired: 1, SharesToCreate: 1, SecretLen: 1})
	require.ErrorIs(t, err, ErrConsensus)
}

func TestJoinAndLeaveUpdateMembership(t *testing.T) {
	_, nodes := newCluster(2)
	leader := nodes[0]
	ctx := context.Background()

	newPeer := sharing.NewNodeId(3)
	leader.log.Join(newPeer, "3")
	_, ok := leader.log.peerAddr(newPeer)
	require.True(t, ok, "Join must add the peer to the membership table")

	leader.log.Leave(newPeer)
	_, ok = leader.log.peerAddr(newPeer)
	require.False(t, ok, "Leave must remove the peer from the membership table")

	// Membership changes take effect on the next Propose: with node 3
	// gone again, quorum still only requires the two original nodes.
	_, err := leader.log.Propose(ctx, Command{Kind: KindStoreShare, ClientId: 1, X: 1, Ys: []byte{1}, SharesRequired: 1, SharesToCreate: 1, SecretLen: 1})
	require.NoError(t, err)
}

func TestSnapshotAndRestoreThroughLog(t *testing.T) {
	_, nodes := newCluster(2)
	leader := nodes[0]
	ctx := context.Background()

	_, err := leader.log.Propose(ctx, Command{Kind: KindStoreShare, ClientId: 1, X: 1, Ys: []byte{1, 2}, SharesRequired: 1, SharesToCreate: 2, SecretLen: 2})
	require.NoError(t, err)

	snap, err := leader.log.Snapshot()
	require.NoError(t, err)

	fresh := store.New()
	freshAdapter := NewAdapter(leader.id, fresh)
	require.NoError(t, freshAdapter.Restore(snap))

	rec, err := fresh.Get(sharing.NewClientId(1))
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, rec.Share.Ys)
}
