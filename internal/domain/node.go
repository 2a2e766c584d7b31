package domain

// NodeRef is a value-typed reference to a ring member: its identifier and
// the address the transport uses to reach it. NodeRefs are freely copied;
// equality is by ID.
type NodeRef struct {
	ID   ID
	Addr string
}

// Equal reports whether two NodeRefs name the same ring member.
func (n NodeRef) Equal(other NodeRef) bool {
	return n.ID.Equal(other.ID)
}
