package node

import (
	"context"
	"testing"

	"chorddht/internal/domain"
)

func TestTwoNodeJoinConverges(t *testing.T) {
	space := testSpace(t)
	net := newFakeNetwork()
	a := newTestNode(t, net, space, 10, 3)
	b := newTestNode(t, net, space, 20, 3)
	ctx := context.Background()

	if err := b.Join(ctx, "n10"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !b.Successor().Equal(a.Self()) {
		t.Fatalf("joiner's successor = %s, want %s", b.Successor().ID, a.Self().ID)
	}

	stabilizeRounds(ctx, []*Node{b, a}, 5)

	if !a.Successor().Equal(b.Self()) {
		t.Errorf("a.successor = %s, want b", a.Successor().ID)
	}
	if !b.Successor().Equal(a.Self()) {
		t.Errorf("b.successor = %s, want a", b.Successor().ID)
	}
	if pred, ok := a.Predecessor(); !ok || !pred.Equal(b.Self()) {
		t.Errorf("a.predecessor = %v, %v, want b", pred.ID, ok)
	}
	if pred, ok := b.Predecessor(); !ok || !pred.Equal(a.Self()) {
		t.Errorf("b.predecessor = %v, %v, want a", pred.ID, ok)
	}
}

func TestStabilizeAdoptsInsertedNode(t *testing.T) {
	space := testSpace(t)
	net := newFakeNetwork()
	a := newTestNode(t, net, space, 10, 3)
	b := newTestNode(t, net, space, 20, 3)
	c := newTestNode(t, net, space, 30, 3)
	ctx := context.Background()

	// b has slipped in between a and its old successor c.
	a.rt.SetSuccessor(c.Self())
	c.rt.SetPredecessor(b.Self())
	b.rt.SetSuccessor(c.Self())

	a.stabilize(ctx)

	if !a.Successor().Equal(b.Self()) {
		t.Errorf("a.successor = %s after stabilize, want inserted node b", a.Successor().ID)
	}
	if pred, ok := b.Predecessor(); !ok || !pred.Equal(a.Self()) {
		t.Errorf("b.predecessor = %v, %v after a's notify, want a", pred.ID, ok)
	}
}

func TestStabilizeRefreshesSuccessorList(t *testing.T) {
	space := testSpace(t)
	net := newFakeNetwork()
	ids := []uint64{10, 20, 30, 40}
	nodes := buildRing(t, net, space, ids, 3)
	ctx := context.Background()

	stabilizeRounds(ctx, nodes, 3)

	list := nodes[0].SuccessorList()
	want := []uint64{20, 30, 40}
	for i, w := range want {
		if !list[i].ID.Equal(space.FromUint64(w)) {
			t.Errorf("successorList[%d] = %s, want %d", i, list[i].ID, w)
		}
	}
}

func TestFailoverPromotesFromSuccessorList(t *testing.T) {
	space := testSpace(t)
	net := newFakeNetwork()
	ids := []uint64{10, 20, 30, 40}
	nodes := buildRing(t, net, space, ids, 3)
	ctx := context.Background()

	stabilizeRounds(ctx, nodes, 3) // populate successor lists

	net.kill("n20")
	nodes[0].stabilize(ctx)

	if !nodes[0].Successor().ID.Equal(space.FromUint64(30)) {
		t.Errorf("successor after failover = %s, want 30", nodes[0].Successor().ID)
	}
}

func TestFailoverFallsBackToFingerTable(t *testing.T) {
	space := testSpace(t)
	net := newFakeNetwork()
	a := newTestNode(t, net, space, 10, 2)
	c := newTestNode(t, net, space, 100, 2)
	ctx := context.Background()

	// Successor and the rest of the list are dead; only a finger survives.
	dead := domain.NodeRef{ID: space.FromUint64(20), Addr: "gone"}
	a.rt.SetSuccessorList([]domain.NodeRef{dead, dead})
	a.rt.SetFinger(6, c.Self())

	a.stabilize(ctx)

	if !a.Successor().Equal(c.Self()) {
		t.Errorf("successor after finger fallback = %s, want %s", a.Successor().ID, c.Self().ID)
	}
}

func TestFailoverRingBrokenLeavesStateAlone(t *testing.T) {
	space := testSpace(t)
	net := newFakeNetwork()
	a := newTestNode(t, net, space, 10, 2)
	ctx := context.Background()

	dead := domain.NodeRef{ID: space.FromUint64(20), Addr: "gone"}
	a.rt.SetSuccessor(dead)

	a.stabilize(ctx)

	if !a.Successor().Equal(dead) {
		t.Errorf("broken ring mutated successor to %s", a.Successor().ID)
	}
}

func TestCheckPredecessor(t *testing.T) {
	space := testSpace(t)
	net := newFakeNetwork()
	a := newTestNode(t, net, space, 10, 2)
	b := newTestNode(t, net, space, 20, 2)
	ctx := context.Background()

	// Live predecessor is kept.
	a.rt.SetPredecessor(b.Self())
	a.checkPredecessor(ctx)
	if _, ok := a.Predecessor(); !ok {
		t.Fatal("live predecessor was cleared")
	}

	// Dead predecessor is cleared.
	net.kill("n20")
	a.checkPredecessor(ctx)
	if _, ok := a.Predecessor(); ok {
		t.Error("dead predecessor was not cleared")
	}

	// No predecessor: nothing to do, must not panic.
	a.checkPredecessor(ctx)
}

func TestFixFingersConvergence(t *testing.T) {
	space := testSpace(t)
	net := newFakeNetwork()
	ids := []uint64{0, 32, 64, 96, 128, 160, 192, 224}
	nodes := buildRing(t, net, space, ids, 3)
	ctx := context.Background()

	for _, n := range nodes {
		for i := 0; i < 4*space.Bits; i++ {
			n.fixFingers(ctx)
		}
	}

	for _, n := range nodes {
		for i := 0; i < space.Bits; i++ {
			target := n.Self().ID.AddMod(i)
			want := trueOwner(space, ids, target)
			if got := n.rt.Finger(i); !got.ID.Equal(want) {
				t.Errorf("node %s finger[%d] = %s, want %s", n.Self().ID, i, got.ID, want)
			}
		}
	}
}

func TestCrashRecovery(t *testing.T) {
	space := testSpace(t)
	net := newFakeNetwork()
	ids := []uint64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	nodes := buildRing(t, net, space, ids, 4)
	ctx := context.Background()

	stabilizeRounds(ctx, nodes, 4)

	// Kill the node with id 50; its predecessor must route lookups for 50
	// to 60 after recovery.
	net.kill("n50")
	survivors := append(append([]*Node{}, nodes[:4]...), nodes[5:]...)
	for r := 0; r < 5; r++ {
		for _, n := range survivors {
			n.checkPredecessor(ctx)
			n.stabilize(ctx)
		}
	}

	got, err := nodes[3].FindSuccessor(ctx, space.FromUint64(50))
	if err != nil {
		t.Fatalf("FindSuccessor(50): %v", err)
	}
	if !got.ID.Equal(space.FromUint64(60)) {
		t.Errorf("FindSuccessor(50) after crash = %s, want 60", got.ID)
	}

	// Every survivor's successor is live, and a ring walk visits all nine.
	walk := make(map[string]bool)
	cur := survivors[0]
	for i := 0; i < len(survivors); i++ {
		succ := cur.Successor()
		next, ok := net.node(succ.Addr)
		if !ok {
			t.Fatalf("node %s has dead successor %s", cur.Self().ID, succ.ID)
		}
		walk[succ.Addr] = true
		cur = next
	}
	if len(walk) != len(survivors) {
		t.Errorf("ring walk visited %d distinct nodes, want %d", len(walk), len(survivors))
	}
}
