// Package transport defines the JSON wire shapes exchanged between nodes
// over the HTTP RPC surface.
package transport

// NodeWire is the on-the-wire representation of a domain.NodeRef.
type NodeWire struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

// NotifyRequest is the JSON body of POST /api/notify.
type NotifyRequest struct {
	ID   string `json:"id"`
	Host string `json:"host"`
}

// PredecessorResponse is returned by GET /api/get_predecessor: Node is nil
// when the responding node currently has no predecessor.
type PredecessorResponse struct {
	Present bool      `json:"present"`
	Node    *NodeWire `json:"node,omitempty"`
}

// SuccessorListResponse is returned by GET /api/successor_list: the
// responding node's successor list, immediate successor first. Peers copy
// it (shifted by one) to refresh their own lists during stabilization.
type SuccessorListResponse struct {
	Successors []NodeWire `json:"successors"`
}

// PingResponse is the liveness token returned by GET /api/ping.
type PingResponse struct {
	OK bool `json:"ok"`
}

// StoreResponse is returned by POST /storage/upload, naming the node that
// ended up owning the stored resource.
type StoreResponse struct {
	StoredAt NodeWire `json:"storedAt"`
}

// RetrieveResponse is returned by GET /storage/retrieve on a hit.
type RetrieveResponse struct {
	Found   bool   `json:"found"`
	Content string `json:"content"`
	Node    string `json:"node"`
}

// ErrorResponse is the JSON body of a non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// InfoResponse is returned by GET /info, a diagnostic snapshot of a node.
// StorageOwned counts the stored resources inside the node's owned arc;
// a value below StorageCount means membership changes have stranded data
// (no handoff is performed).
type InfoResponse struct {
	Self         NodeWire   `json:"self"`
	Predecessor  *NodeWire  `json:"predecessor"`
	Successor    NodeWire   `json:"successor"`
	FingerSample []NodeWire `json:"fingerSample"`
	StorageCount int        `json:"storageCount"`
	StorageOwned int        `json:"storageOwned"`
}
