package node

import (
	"context"
	"fmt"

	"chorddht/internal/domain"
	"chorddht/internal/logger"
)

// HandleGetPredecessor serves the inbound get_predecessor RPC.
func (n *Node) HandleGetPredecessor() (domain.NodeRef, bool) {
	return n.rt.Predecessor()
}

// HandlePing serves the inbound ping RPC: any reply at all is the
// liveness token, so this is always a no-op success.
func (n *Node) HandlePing() {}

// HandleNotify serves the inbound notify RPC: adopts p as predecessor if
// none is set, or if p is a closer predecessor than the current one;
// otherwise ignores it. Idempotent: applying it twice in a row with no
// intervening mutation has no additional effect.
func (n *Node) HandleNotify(p domain.NodeRef) {
	self := n.rt.Self()
	if p.ID.Equal(self.ID) {
		return
	}

	n.rt.Lock()
	pred, hasPred := n.rt.Predecessor()
	adopt := !hasPred || domain.Between(p.ID, pred.ID, self.ID, false)
	if adopt {
		n.rt.SetPredecessor(p)
	}
	n.rt.Unlock()

	if adopt {
		n.lgr.Info("notify: predecessor updated", logger.FNode("newPredecessor", p))
	}
}

// owns reports whether this node currently believes it is responsible for
// id: id falls in (predecessor, self]. With no predecessor set (the
// singleton-ring / just-booted case) the node considers itself responsible
// for everything.
func (n *Node) owns(id domain.ID) bool {
	self := n.rt.Self()
	pred, hasPred := n.rt.Predecessor()
	if !hasPred {
		return true
	}
	return domain.Between(id, pred.ID, self.ID, true)
}

// HandleStore serves the store RPC: hash the key, serve locally if this
// node already owns it, otherwise resolve the owner via find_successor
// and forward once. Forwarding is single-hop because
// find_successor already returned the terminal owner; the owner's own
// HandleStore call then finds it owns the key and stores locally.
func (n *Node) HandleStore(ctx context.Context, rawKey string, value []byte) (domain.NodeRef, error) {
	self := n.rt.Self()
	id := n.rt.Space().Hash(rawKey)
	res := domain.Resource{Key: id, RawKey: rawKey, Value: value}

	if n.owns(id) {
		n.storage.Put(res)
		return self, nil
	}

	owner, err := n.FindSuccessor(ctx, id)
	if err != nil {
		return domain.NodeRef{}, fmt.Errorf("node: store: find_successor failed: %w", err)
	}
	if owner.ID.Equal(self.ID) {
		n.storage.Put(res)
		return self, nil
	}

	rpcCtx, cancel := context.WithTimeout(ctx, n.rpcTimeout)
	defer cancel()
	storedAt, err := n.client.Store(rpcCtx, owner.Addr, res)
	if err != nil {
		return domain.NodeRef{}, fmt.Errorf("node: store: forward to owner %s failed: %w", owner.Addr, err)
	}
	return storedAt, nil
}

// HandleRetrieve serves the retrieve RPC: hash the key, serve locally if
// owned, otherwise resolve the owner and forward once.
func (n *Node) HandleRetrieve(ctx context.Context, rawKey string) ([]byte, bool, error) {
	self := n.rt.Self()
	id := n.rt.Space().Hash(rawKey)

	if n.owns(id) {
		return n.RetrieveLocal(rawKey)
	}

	owner, err := n.FindSuccessor(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("node: retrieve: find_successor failed: %w", err)
	}
	if owner.ID.Equal(self.ID) {
		return n.RetrieveLocal(rawKey)
	}

	rpcCtx, cancel := context.WithTimeout(ctx, n.rpcTimeout)
	defer cancel()
	value, found, err := n.client.Retrieve(rpcCtx, owner.Addr, rawKey)
	if err != nil {
		return nil, false, fmt.Errorf("node: retrieve: forward to owner %s failed: %w", owner.Addr, err)
	}
	return value, found, nil
}

// StoreLocal persists res directly in this node's storage, bypassing
// routing and the ownership check. HandleStore does not go through it.
func (n *Node) StoreLocal(res domain.Resource) {
	n.storage.Put(res)
}

// RetrieveLocal reads directly from this node's storage, bypassing
// routing.
func (n *Node) RetrieveLocal(rawKey string) ([]byte, bool, error) {
	id := n.rt.Space().Hash(rawKey)
	res, err := n.storage.Get(id)
	if err != nil {
		if err == domain.ErrResourceNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return res.Value, true, nil
}
