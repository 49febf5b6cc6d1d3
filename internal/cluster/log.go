package cluster

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/shareward/shareward/internal/log"
	"github.com/shareward/shareward/internal/sharing"
)

// ErrConsensus is returned by Propose when a command could not be
// committed: the caller is not the leader and forwarding failed, or the
// leader could not reach a majority of peers.
var ErrConsensus = fmt.Errorf("cluster: consensus error")

// Transport is what Log needs from the network to reach other nodes. A
// production deployment implements it over HTTP (see HTTPTransport);
// tests use an in-process fake that calls peer Logs' HandleReplicate
// and HandleForward directly.
type Transport interface {
	// Replicate sends an already-leader-committed command to a follower
	// and returns its apply result.
	Replicate(ctx context.Context, peerAddr string, cmd []byte) ([]byte, error)
	// Forward sends a command to the leader for it to propose.
	Forward(ctx context.Context, leaderAddr string, cmd []byte) ([]byte, error)
}

// Log is the replicated log adapter (C3): it assumes a leader-based
// log primitive providing Propose/Apply/Snapshot/Restore/membership —
// see StateMachine — and implements the minimal version of that
// primitive this cluster needs: single-leader command ordering with
// majority-acknowledged commit, deterministic apply via StateMachine,
// and peer membership changes.
//
// What Log does NOT implement is leader election or log persistence;
// the leader is fixed at construction (by configuration) for the
// lifetime of the process, matching the "assumed available" framing in
// the specification this adapter is built against: how the primitive
// elects a leader and survives node loss is a property of the
// substrate, not of this adapter.
type Log struct {
	self      sharing.NodeId
	leader    sharing.NodeId
	transport Transport
	sm        StateMachine

	mu    sync.Mutex
	peers map[sharing.NodeId]string // NodeId -> address, excludes self
}

// NewLog constructs a Log for self, with leader as the cluster's fixed
// leader and peers as the initial peer address table (excluding self).
func NewLog(self, leader sharing.NodeId, peers map[sharing.NodeId]string, transport Transport, sm StateMachine) *Log {
	p := make(map[sharing.NodeId]string, len(peers))
	for k, v := range peers {
		p[k] = v
	}
	return &Log{
		self:      self,
		leader:    leader,
		transport: transport,
		sm:        sm,
		peers:     p,
	}
}

// IsLeader reports whether this node is the cluster's current leader.
func (l *Log) IsLeader() bool {
	return l.self == l.leader
}

// Propose submits cmd for commitment. If this node is not the leader,
// the proposal is forwarded; the leader commits it and the result is
// returned to every caller identically, per the external contract this
// adapter assumes.
func (l *Log) Propose(ctx context.Context, cmd Command) ([]byte, error) {
	encoded, err := Encode(cmd)
	if err != nil {
		return nil, err
	}

	if !l.IsLeader() {
		addr, ok := l.peerAddr(l.leader)
		if !ok {
			return nil, fmt.Errorf("%w: leader address unknown", ErrConsensus)
		}
		result, err := l.transport.Forward(ctx, addr, encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: forwarding to leader: %v", ErrConsensus, err)
		}
		return result, nil
	}

	return l.commitAsLeader(ctx, encoded)
}

// commitAsLeader applies cmd to this replica, then broadcasts it to
// every peer and waits for a majority (including self) to acknowledge
// before returning. This ordering — apply locally before broadcasting —
// means the leader's own apply always happens first in its local commit
// order, which every Propose call in a single refresh round relies on.
func (l *Log) commitAsLeader(ctx context.Context, encoded []byte) ([]byte, error) {
	result, err := l.sm.Apply(encoded)
	if err != nil {
		return nil, fmt.Errorf("cluster: local apply failed: %w", err)
	}

	peers := l.peerAddrs()
	total := len(peers) + 1 // + self
	majority := total/2 + 1
	acked := 1 // self already applied

	if len(peers) > 0 {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		for _, addr := range peers {
			addr := addr
			g.Go(func() error {
				if _, err := l.transport.Replicate(gctx, addr, encoded); err != nil {
					log.Log().Warn("cluster", "msg", "replicate to peer failed", "peer", addr, "err", err.Error())
					return nil // a slow/unreachable peer does not fail the whole round
				}
				mu.Lock()
				acked++
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	if acked < majority {
		return nil, fmt.Errorf("%w: only %d/%d replicas acknowledged, need %d", ErrConsensus, acked, total, majority)
	}
	return result, nil
}

// HandleForward is the leader-side entry point invoked when a follower
// forwards a proposal to it.
func (l *Log) HandleForward(ctx context.Context, encoded []byte) ([]byte, error) {
	if !l.IsLeader() {
		return nil, fmt.Errorf("%w: not the leader", ErrConsensus)
	}
	return l.commitAsLeader(ctx, encoded)
}

// HandleReplicate is the follower-side entry point invoked by the
// leader to apply an already-committed command.
func (l *Log) HandleReplicate(encoded []byte) ([]byte, error) {
	return l.sm.Apply(encoded)
}

// Snapshot and Restore delegate to the state machine, for log
// compaction and catch-up of a freshly joined or recovering replica.
func (l *Log) Snapshot() ([]byte, error)      { return l.sm.Snapshot() }
func (l *Log) Restore(snapshot []byte) error  { return l.sm.Restore(snapshot) }

// Join adds peer to the membership table at addr.
func (l *Log) Join(peer sharing.NodeId, addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.peers[peer] = addr
}

// Leave removes peer from the membership table.
func (l *Log) Leave(peer sharing.NodeId) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.peers, peer)
}

func (l *Log) peerAddr(id sharing.NodeId) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	addr, ok := l.peers[id]
	return addr, ok
}

func (l *Log) peerAddrs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.peers))
	for _, addr := range l.peers {
		out = append(out, addr)
	}
	return out
}
