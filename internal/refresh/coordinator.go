// Package refresh implements the proactive refresh protocol (C4): a
// ticker-driven loop that, on the leader, rerandomizes every stored
// share without changing the secret it encodes.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/shareward/shareward/internal/cluster"
	"github.com/shareward/shareward/internal/field"
	"github.com/shareward/shareward/internal/log"
	"github.com/shareward/shareward/internal/sharing"
	"github.com/shareward/shareward/internal/store"
)

// Coordinator runs the three-phase refresh protocol on a fixed
// interval. Every node runs one, but only the current leader performs
// the iteration step; followers observe the flag flip via StartRefresh
// apply and skip their own tick.
type Coordinator struct {
	self     sharing.NodeId
	log      *cluster.Log
	store    *store.Store
	interval time.Duration
}

// NewCoordinator returns a Coordinator for this node.
func NewCoordinator(self sharing.NodeId, l *cluster.Log, s *store.Store, interval time.Duration) *Coordinator {
	return &Coordinator{self: self, log: l, store: s, interval: interval}
}

// Run blocks, firing a tick every interval until ctx is canceled.
// Scheduling is anchored to last-tick-plus-interval rather than a
// free-running ticker, so a tick that runs long does not cause the
// next one to fire immediately afterward.
func (c *Coordinator) Run(ctx context.Context) {
	next := time.Now().Add(c.interval)
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			c.tick(ctx)
			next = next.Add(c.interval)
			for c.interval > 0 && !next.After(time.Now()) {
				next = next.Add(c.interval)
			}
			delay := time.Until(next)
			if delay < 0 {
				delay = 0
			}
			timer.Reset(delay)
		}
	}
}

// tick runs exactly one round of the protocol, or skips it. Only the
// leader initiates a round; a follower's tick has nothing to do beyond
// observing its own refreshing flag, which the leader's StartRefresh
// apply will have set for it — this is what lets the cluster avoid
// electing a separate refresh-leader, per the coordinator's implicit
// reliance on the consensus leader.
func (c *Coordinator) tick(ctx context.Context) {
	if !c.log.IsLeader() {
		return
	}
	if c.store.Refreshing() {
		log.Log().Debug("refresh", "msg", "skipping tick, refresh already in progress")
		return
	}

	if err := c.runRound(ctx); err != nil {
		log.Log().Error("refresh", "msg", "refresh round failed", "err", err.Error())
	}
}

// runRound executes StartRefresh, one Refresh per (client, target node)
// pair, then FinishRefresh. Called only on the leader.
func (c *Coordinator) runRound(ctx context.Context) error {
	if _, err := c.log.Propose(ctx, cluster.Command{
		Kind:   cluster.KindStartRefresh,
		NodeId: c.self.Uint8(),
	}); err != nil {
		return fmt.Errorf("refresh: StartRefresh failed, aborting round: %w", err)
	}

	var roundErr error
	for _, rec := range c.store.Iter() {
		if err := c.refreshClient(ctx, rec); err != nil {
			roundErr = fmt.Errorf("refresh: round aborted mid-client %s: %w", rec.ClientId, err)
			break
		}
	}

	if _, err := c.log.Propose(ctx, cluster.Command{
		Kind:   cluster.KindFinishRefresh,
		NodeId: c.self.Uint8(),
	}); err != nil {
		if roundErr != nil {
			return roundErr
		}
		return fmt.Errorf("refresh: FinishRefresh failed: %w", err)
	}

	return roundErr
}

// refreshClient samples one renewal polynomial for rec's client and
// proposes one Refresh command per target node 1..N, each carrying the
// same polynomial evaluated at that node's x.
func (c *Coordinator) refreshClient(ctx context.Context, rec store.Record) error {
	meta := rec.ShareRecord.Meta
	poly, err := field.RandomRenewalPolynomial(int(meta.SharesRequired))
	if err != nil {
		return fmt.Errorf("sampling renewal polynomial: %w", err)
	}

	for targetX := uint8(1); uint16(targetX) <= uint16(meta.SharesToCreate); targetX++ {
		delta := poly.Eval(targetX)
		ys := make([]byte, meta.SecretLen)
		for i := range ys {
			ys[i] = delta
		}

		if _, err := c.log.Propose(ctx, cluster.Command{
			Kind:     cluster.KindRefresh,
			ClientId: rec.ClientId.Uint64(),
			X:        targetX,
			Ys:       ys,
		}); err != nil {
			return fmt.Errorf("proposing refresh for target %d: %w", targetX, err)
		}
	}
	return nil
}
