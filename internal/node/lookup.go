package node

import (
	"context"

	"chorddht/internal/domain"
	"chorddht/internal/logger"
)

// FindSuccessor answers "who owns target?": a local interval check, then
// closest-preceding-node routing, then a bounded-timeout RPC forward,
// falling back to the best local answer on failure.
// It is recursive: the intermediate node resolves the next hop on the
// caller's behalf and returns the final answer.
func (n *Node) FindSuccessor(ctx context.Context, target domain.ID) (domain.NodeRef, error) {
	self := n.rt.Self()
	succ := n.rt.Successor()

	// Step 1: target in (self, successor] -> successor owns it.
	if domain.Between(target, self.ID, succ.ID, true) {
		return succ, nil
	}

	// Step 2: no useful finger -> successor is the best available answer.
	next := n.rt.ClosestPrecedingNode(target)
	if next.ID.Equal(self.ID) {
		return succ, nil
	}

	// Step 3: forward to the closer node, bounded by the RPC timeout.
	rpcCtx, cancel := context.WithTimeout(ctx, n.rpcTimeout)
	defer cancel()
	reply, err := n.client.FindSuccessor(rpcCtx, next.Addr, target)
	if err != nil {
		// Step 4: RPC failure falls back to the successor; eviction of next
		// from the finger table is left to fix-fingers and stabilize.
		n.lgr.Warn("find_successor: forward failed, falling back to successor",
			logger.FNode("forwardedTo", next), logger.F("err", err))
		return succ, nil
	}
	return reply, nil
}
