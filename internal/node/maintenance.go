package node

import (
	"context"
	"time"

	"chorddht/internal/domain"
	"chorddht/internal/logger"
)

// MaintenanceIntervals carries the three independent maintenance-loop
// periods. Intervals are policy, not correctness constraints: correctness
// only requires all three loops to execute infinitely often.
type MaintenanceIntervals struct {
	Stabilize        time.Duration
	FixFingers       time.Duration
	CheckPredecessor time.Duration
}

// StartMaintenance launches the stabilize, fix-fingers and check-predecessor
// loops as three independent goroutines, each on its own ticker, until ctx
// is canceled.
func (n *Node) StartMaintenance(ctx context.Context, iv MaintenanceIntervals) {
	go n.runLoop(ctx, iv.Stabilize, "stabilize", n.stabilize)
	go n.runLoop(ctx, iv.FixFingers, "fix-fingers", n.fixFingers)
	go n.runLoop(ctx, iv.CheckPredecessor, "check-predecessor", n.checkPredecessor)
}

func (n *Node) runLoop(ctx context.Context, interval time.Duration, name string, tick func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			n.lgr.Debug("maintenance loop stopped", logger.F("loop", name))
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// stabilize validates the successor is still alive and up to date, adopts
// a closer successor if one has joined the gap, refreshes the successor
// list from the (possibly updated) successor, and notifies it of our
// candidacy as its predecessor.
func (n *Node) stabilize(ctx context.Context) {
	self := n.rt.Self()
	succ := n.rt.Successor()

	if succ.ID.Equal(self.ID) {
		// Sole member as far as we know. If a joiner has already notified
		// us it is also our successor; otherwise there is nothing to
		// stabilize against yet.
		pred, ok := n.rt.Predecessor()
		if !ok || pred.ID.Equal(self.ID) {
			return
		}
		n.rt.Lock()
		n.rt.SetSuccessor(pred)
		n.rt.Unlock()
		n.lgr.Info("stabilize: adopted first peer as successor", logger.FNode("successor", pred))
		succ = pred
	}

	rpcCtx, cancel := context.WithTimeout(ctx, n.rpcTimeout)
	x, hasX, err := n.client.GetPredecessor(rpcCtx, succ.Addr)
	cancel()
	if err != nil {
		n.lgr.Warn("stabilize: successor unreachable, invoking failover",
			logger.FNode("successor", succ), logger.F("err", err))
		n.failover(ctx, succ)
		return
	}

	if hasX && domain.Between(x.ID, self.ID, succ.ID, false) {
		n.rt.Lock()
		n.rt.SetSuccessor(x)
		n.rt.Unlock()
		n.lgr.Debug("stabilize: adopted closer successor", logger.FNode("successor", x))
		succ = x
	}

	notifyCtx, cancel := context.WithTimeout(ctx, n.rpcTimeout)
	if err := n.client.Notify(notifyCtx, succ.Addr, self); err != nil {
		n.lgr.Debug("stabilize: notify failed, ignoring", logger.FNode("successor", succ), logger.F("err", err))
	}
	cancel()

	// Refresh the successor list from the successor's own: ours is the
	// successor followed by its list, shifted by one. Failure here is
	// harmless, the previous list stays in place.
	listCtx, cancel := context.WithTimeout(ctx, n.rpcTimeout)
	theirs, err := n.client.SuccessorList(listCtx, succ.Addr)
	cancel()
	if err != nil {
		n.lgr.Debug("stabilize: successor-list refresh failed, keeping previous",
			logger.FNode("successor", succ), logger.F("err", err))
		return
	}
	list := make([]domain.NodeRef, 0, len(theirs)+1)
	list = append(list, succ)
	list = append(list, theirs...)
	n.rt.Lock()
	n.rt.SetSuccessorList(list)
	n.rt.Unlock()
}

// failover implements the successor-failover procedure: walk the
// successor list from entry 1 onward, promoting the first responsive
// candidate to position 0. If no list entry answers, fall back to
// scanning the finger table for any reachable node that is not self and
// not the dead successor. If nothing answers at all, leave state alone
// and log a fatal-ring event; the next stabilize tick retries.
func (n *Node) failover(ctx context.Context, dead domain.NodeRef) {
	self := n.rt.Self()
	list := n.rt.SuccessorList()

	for i := 1; i < len(list); i++ {
		candidate := list[i]
		if candidate.ID.Equal(self.ID) || candidate.ID.Equal(dead.ID) {
			continue
		}
		pingCtx, cancel := context.WithTimeout(ctx, n.rpcTimeout)
		err := n.client.Ping(pingCtx, candidate.Addr)
		cancel()
		if err == nil {
			n.rt.Lock()
			n.rt.PromoteSuccessor(i)
			n.rt.Unlock()
			n.lgr.Info("stabilize: failover promoted successor-list candidate",
				logger.FNode("dead", dead), logger.FNode("promoted", candidate))
			return
		}
	}

	fingers := n.rt.FingerSnapshot()
	for _, candidate := range fingers {
		if candidate.ID.Equal(self.ID) || candidate.ID.Equal(dead.ID) {
			continue
		}
		pingCtx, cancel := context.WithTimeout(ctx, n.rpcTimeout)
		err := n.client.Ping(pingCtx, candidate.Addr)
		cancel()
		if err == nil {
			n.rt.Lock()
			n.rt.SetSuccessor(candidate)
			n.rt.Unlock()
			n.lgr.Info("stabilize: failover promoted finger-table candidate",
				logger.FNode("dead", dead), logger.FNode("promoted", candidate))
			return
		}
	}

	n.lgr.Error("stabilize: ring broken, no reachable successor candidate",
		logger.FNode("dead", dead))
}

// fixFingers advances the round-robin cursor, resolves the successor of
// self+2^i, and stores it in finger[i].
// Failures leave the entry unchanged; a later tick retries.
func (n *Node) fixFingers(ctx context.Context) {
	n.rt.Lock()
	i := n.rt.NextFingerToFix()
	n.rt.Unlock()
	self := n.rt.Self()
	target := self.ID.AddMod(i)

	lookupCtx, cancel := context.WithTimeout(ctx, n.rpcTimeout)
	defer cancel()
	succ, err := n.FindSuccessor(lookupCtx, target)
	if err != nil {
		n.lgr.Debug("fix-fingers: lookup failed, leaving entry unchanged",
			logger.F("index", i), logger.F("err", err))
		return
	}

	n.rt.Lock()
	n.rt.SetFinger(i, succ)
	n.rt.Unlock()
}

// checkPredecessor pings the predecessor and clears it if unreachable. A
// new predecessor is installed by the next valid notify.
func (n *Node) checkPredecessor(ctx context.Context) {
	pred, hasPred := n.rt.Predecessor()
	if !hasPred {
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, n.rpcTimeout)
	err := n.client.Ping(pingCtx, pred.Addr)
	cancel()
	if err != nil {
		n.lgr.Info("check-predecessor: predecessor unreachable, clearing",
			logger.FNode("predecessor", pred), logger.F("err", err))
		n.rt.Lock()
		n.rt.ClearPredecessor()
		n.rt.Unlock()
	}
}

// Join contacts bootstrapAddr to obtain the node's initial successor.
// With no bootstrap peer a node forms a singleton ring on its own (the
// routing table is already initialized that way by routingtable.New); Join
// is only called when a bootstrap address is available.
func (n *Node) Join(ctx context.Context, bootstrapAddr string) error {
	self := n.rt.Self()
	rpcCtx, cancel := context.WithTimeout(ctx, n.rpcTimeout)
	defer cancel()
	succ, err := n.client.FindSuccessor(rpcCtx, bootstrapAddr, self.ID)
	if err != nil {
		return err
	}
	n.rt.Lock()
	n.rt.SetSuccessor(succ)
	n.rt.Unlock()
	n.lgr.Info("join: installed initial successor", logger.FNode("successor", succ))
	return nil
}
