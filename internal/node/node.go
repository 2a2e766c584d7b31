// Package node wires the routing table, local storage, and RPC client
// together into the Chord core: the lookup engine, the notify/stabilize/
// fix-fingers/check-predecessor maintenance loops, and the handlers the
// transport layer calls into for each inbound RPC.
package node

import (
	"time"

	"chorddht/internal/client"
	"chorddht/internal/domain"
	"chorddht/internal/logger"
	"chorddht/internal/routingtable"
	"chorddht/internal/storage"
)

// Node is the single mutable aggregate per process: the sole owner of its
// routing table and local storage. Every exported method is safe to call
// concurrently from any number of inbound-request goroutines and the three
// maintenance loops.
type Node struct {
	rt      *routingtable.RoutingTable
	storage *storage.Storage
	client  client.Client
	lgr     logger.Logger

	rpcTimeout time.Duration
}

// New builds a Node over an already-initialized (singleton) routing
// table. rpcTimeout bounds every outbound RPC the node issues.
func New(rt *routingtable.RoutingTable, store *storage.Storage, cli client.Client, lgr logger.Logger, rpcTimeout time.Duration) *Node {
	return &Node{
		rt:         rt,
		storage:    store,
		client:     cli,
		lgr:        lgr,
		rpcTimeout: rpcTimeout,
	}
}

// Self returns the node's own reference.
func (n *Node) Self() domain.NodeRef { return n.rt.Self() }

// Space returns the identifier space the node was built for.
func (n *Node) Space() domain.Space { return n.rt.Space() }

// Predecessor returns the node's current predecessor, if any.
func (n *Node) Predecessor() (domain.NodeRef, bool) { return n.rt.Predecessor() }

// Successor returns the node's current immediate successor.
func (n *Node) Successor() domain.NodeRef { return n.rt.Successor() }

// SuccessorList returns a snapshot of the node's successor list.
func (n *Node) SuccessorList() []domain.NodeRef { return n.rt.SuccessorList() }

// FingerSample returns a snapshot of the finger table, for diagnostics.
func (n *Node) FingerSample() []domain.NodeRef { return n.rt.FingerSnapshot() }

// StorageCount returns the number of resources currently stored locally.
func (n *Node) StorageCount() int { return n.storage.Len() }

// OwnedCount returns how many locally stored resources fall inside the
// arc this node currently believes it owns. The remainder were accepted
// before a membership change moved the arc boundary; no handoff moves
// them, so the gap between the two counts is the diagnostic signal.
func (n *Node) OwnedCount() int {
	pred, ok := n.rt.Predecessor()
	if !ok {
		return n.storage.Len()
	}
	return len(n.storage.Between(pred.ID, n.rt.Self().ID))
}
