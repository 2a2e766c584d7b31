package routingtable

import (
	"sync"

	"chorddht/internal/domain"
	"chorddht/internal/logger"
)

// routingEntry wraps a single NodeRef slot behind its own lock, so that a
// reader of one field never blocks behind a writer of another.
type routingEntry struct {
	mu   sync.RWMutex
	node *domain.NodeRef
}

func (e *routingEntry) get() *domain.NodeRef {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.node == nil {
		return nil
	}
	n := *e.node
	return &n
}

func (e *routingEntry) set(n *domain.NodeRef) {
	e.mu.Lock()
	e.node = n
	e.mu.Unlock()
}

// RoutingTable holds a node's view of the ring: its predecessor, its
// successor list and finger table, and the fix-fingers cursor. Every
// mutation goes through the table's single exclusive lock (see Lock/Unlock
// callers in internal/node); the per-entry locks above only protect
// individual reads of one field from torn writes.
type RoutingTable struct {
	mu sync.Mutex

	logger logger.Logger
	space  domain.Space
	self   domain.NodeRef

	predecessor *routingEntry

	successorList   []*routingEntry
	succListSize    int
	finger          []*routingEntry
	nextFingerToFix int
}

// New builds a routing table for self as a singleton ring: successor list
// and every finger entry point at self, predecessor is absent.
func New(lgr logger.Logger, space domain.Space, self domain.NodeRef, succListSize int) *RoutingTable {
	rt := &RoutingTable{
		logger:       lgr,
		space:        space,
		self:         self,
		succListSize: succListSize,
	}
	rt.successorList = make([]*routingEntry, succListSize)
	for i := range rt.successorList {
		n := self
		rt.successorList[i] = &routingEntry{node: &n}
	}
	rt.finger = make([]*routingEntry, space.Bits)
	for i := range rt.finger {
		n := self
		rt.finger[i] = &routingEntry{node: &n}
	}
	rt.predecessor = &routingEntry{}
	rt.logger.Debug("routing table initialized as singleton ring")
	return rt
}

// Self returns the node's own reference.
func (rt *RoutingTable) Self() domain.NodeRef { return rt.self }

// Space returns the identifier space this table was built for.
func (rt *RoutingTable) Space() domain.Space { return rt.space }

// Lock acquires the table's single exclusive lock. Callers must release it
// (Unlock) before issuing any outbound RPC: snapshot -> release -> RPC ->
// reacquire -> commit.
func (rt *RoutingTable) Lock() { rt.mu.Lock() }

// Unlock releases the table's exclusive lock.
func (rt *RoutingTable) Unlock() { rt.mu.Unlock() }

// Successor returns the current immediate successor (successorList[0]).
func (rt *RoutingTable) Successor() domain.NodeRef {
	return *rt.successorList[0].get()
}

// SetSuccessor updates successorList[0] and finger[0] together; the two
// always hold the same node.
func (rt *RoutingTable) SetSuccessor(n domain.NodeRef) {
	rt.successorList[0].set(&n)
	rt.finger[0].set(&n)
}

// SuccessorList returns a snapshot copy of the successor list.
func (rt *RoutingTable) SuccessorList() []domain.NodeRef {
	out := make([]domain.NodeRef, len(rt.successorList))
	for i, e := range rt.successorList {
		out[i] = *e.get()
	}
	return out
}

// SetSuccessorList overwrites the successor list from list, in order, and
// keeps finger[0] consistent with the new entry 0. Entries of list beyond
// the table's length are dropped; if list is shorter than the table, the
// remaining entries keep their previous values.
func (rt *RoutingTable) SetSuccessorList(list []domain.NodeRef) {
	for i := 0; i < len(rt.successorList) && i < len(list); i++ {
		n := list[i]
		rt.successorList[i].set(&n)
	}
	rt.finger[0].set(rt.successorList[0].get())
}

// PromoteSuccessor moves the entry at index idx to position 0, shifting
// the entries before it one slot down the list. Used by failover once a
// live candidate is found further down the list.
func (rt *RoutingTable) PromoteSuccessor(idx int) {
	if idx <= 0 || idx >= len(rt.successorList) {
		return
	}
	promoted := *rt.successorList[idx].get()
	for i := idx; i > 0; i-- {
		rt.successorList[i].set(rt.successorList[i-1].get())
	}
	rt.successorList[0].set(&promoted)
	rt.finger[0].set(&promoted)
}

// Predecessor returns the current predecessor and whether one is present.
func (rt *RoutingTable) Predecessor() (domain.NodeRef, bool) {
	n := rt.predecessor.get()
	if n == nil {
		return domain.NodeRef{}, false
	}
	return *n, true
}

// SetPredecessor installs p as the node's predecessor.
func (rt *RoutingTable) SetPredecessor(p domain.NodeRef) {
	rt.predecessor.set(&p)
}

// ClearPredecessor marks the predecessor absent, e.g. after check-predecessor
// detects it is unreachable.
func (rt *RoutingTable) ClearPredecessor() {
	rt.predecessor.set(nil)
}

// Finger returns a snapshot of finger[i].
func (rt *RoutingTable) Finger(i int) domain.NodeRef {
	return *rt.finger[i].get()
}

// SetFinger updates finger[i]; if i == 0 it also updates successorList[0].
func (rt *RoutingTable) SetFinger(i int, n domain.NodeRef) {
	rt.finger[i].set(&n)
	if i == 0 {
		rt.successorList[0].set(&n)
	}
}

// FingerSnapshot returns a copy of the whole finger table in index order:
// entry i of the result is finger[i].
func (rt *RoutingTable) FingerSnapshot() []domain.NodeRef {
	out := make([]domain.NodeRef, len(rt.finger))
	for i, e := range rt.finger {
		out[i] = *e.get()
	}
	return out
}

// NextFingerToFix returns and advances the fix-fingers round-robin cursor,
// wrapping modulo the finger table size.
func (rt *RoutingTable) NextFingerToFix() int {
	rt.nextFingerToFix = (rt.nextFingerToFix + 1) % len(rt.finger)
	return rt.nextFingerToFix
}

// ClosestPrecedingNode scans the finger table from the highest index down
// and returns the first entry strictly between self and target; if none
// qualifies it returns self. High-to-low iteration guarantees the largest
// legal jump is chosen.
func (rt *RoutingTable) ClosestPrecedingNode(target domain.ID) domain.NodeRef {
	for i := len(rt.finger) - 1; i >= 0; i-- {
		candidate := *rt.finger[i].get()
		if candidate.ID.Equal(rt.self.ID) {
			continue
		}
		if domain.Between(candidate.ID, rt.self.ID, target, false) {
			return candidate
		}
	}
	return rt.self
}

// DebugLog emits a structured snapshot of the routing table at DEBUG level.
func (rt *RoutingTable) DebugLog() {
	pred, hasPred := rt.Predecessor()
	fields := []logger.Field{
		logger.FNode("self", rt.self),
		logger.F("hasPredecessor", hasPred),
		logger.F("successor", rt.Successor().Addr),
	}
	if hasPred {
		fields = append(fields, logger.FNode("predecessor", pred))
	}
	rt.logger.Debug("routing table snapshot", fields...)
}
