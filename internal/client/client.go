// Package client is the outbound half of the RPC surface: it issues the
// find_successor/get_predecessor/notify/ping/store/retrieve calls a node
// makes against its peers, over the JSON-over-HTTP transport. It never
// holds routing-table state; callers own the snapshot -> release -> RPC
// -> reacquire -> commit discipline.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"chorddht/internal/domain"
	"chorddht/internal/telemetry/lookuptrace"
	"chorddht/internal/transport"
)

// Client is the set of outbound RPCs a node issues against a peer,
// addressed by the peer's advertised host:port.
type Client interface {
	FindSuccessor(ctx context.Context, addr string, target domain.ID) (domain.NodeRef, error)
	GetPredecessor(ctx context.Context, addr string) (domain.NodeRef, bool, error)
	SuccessorList(ctx context.Context, addr string) ([]domain.NodeRef, error)
	Notify(ctx context.Context, addr string, self domain.NodeRef) error
	Ping(ctx context.Context, addr string) error
	Store(ctx context.Context, addr string, res domain.Resource) (domain.NodeRef, error)
	Retrieve(ctx context.Context, addr string, rawKey string) ([]byte, bool, error)
}

// HTTPClient implements Client over plain net/http, matching the JSON
// framing the transport package defines. One HTTPClient is shared by a
// node across all peers; http.Client pools its own connections per host.
type HTTPClient struct {
	space domain.Space
	hc    *http.Client
}

// New builds an HTTPClient for the given identifier space, using http
// (base) for outbound connections. Per-call timeouts are carried on ctx,
// not configured here.
func New(space domain.Space, base *http.Client) *HTTPClient {
	if base == nil {
		base = http.DefaultClient
	}
	return &HTTPClient{space: space, hc: base}
}

func (c *HTTPClient) nodeFromWire(w transport.NodeWire) (domain.NodeRef, error) {
	id, err := c.space.FromDecimalString(w.ID)
	if err != nil {
		return domain.NodeRef{}, err
	}
	return domain.NodeRef{ID: id, Addr: w.Addr}, nil
}

func (c *HTTPClient) do(ctx context.Context, method, addr, path string, body io.Reader, contentType string) (*http.Response, error) {
	u, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	u.Scheme = "http"
	u.Host = addr
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	lookuptrace.Inject(ctx, req.Header)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, normalizeStatus(0, err)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	var body transport.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	err := normalizeStatus(resp.StatusCode, nil)
	if err == nil {
		err = fmt.Errorf("%w: unexpected status %d", ErrInternal, resp.StatusCode)
	}
	if body.Error != "" {
		return fmt.Errorf("%w: %s", err, body.Error)
	}
	return err
}

// FindSuccessor issues GET /api/find_successor?id=<decimal> to addr.
func (c *HTTPClient) FindSuccessor(ctx context.Context, addr string, target domain.ID) (domain.NodeRef, error) {
	ctx, end := lookuptrace.StartClient(ctx, "chord.find_successor")
	defer end()
	path := "/api/find_successor?" + url.Values{"id": {target.Decimal()}}.Encode()
	resp, err := c.do(ctx, http.MethodGet, addr, path, nil, "")
	if err != nil {
		return domain.NodeRef{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.NodeRef{}, decodeError(resp)
	}
	var wire transport.NodeWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return domain.NodeRef{}, fmt.Errorf("client: decode find_successor reply: %w", err)
	}
	return c.nodeFromWire(wire)
}

// GetPredecessor issues GET /api/get_predecessor to addr.
func (c *HTTPClient) GetPredecessor(ctx context.Context, addr string) (domain.NodeRef, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, addr, "/api/get_predecessor", nil, "")
	if err != nil {
		return domain.NodeRef{}, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.NodeRef{}, false, decodeError(resp)
	}
	var reply transport.PredecessorResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return domain.NodeRef{}, false, fmt.Errorf("client: decode get_predecessor reply: %w", err)
	}
	if !reply.Present || reply.Node == nil {
		return domain.NodeRef{}, false, nil
	}
	n, err := c.nodeFromWire(*reply.Node)
	if err != nil {
		return domain.NodeRef{}, false, err
	}
	return n, true, nil
}

// SuccessorList issues GET /api/successor_list to addr, returning the
// peer's successor list, immediate successor first.
func (c *HTTPClient) SuccessorList(ctx context.Context, addr string) ([]domain.NodeRef, error) {
	resp, err := c.do(ctx, http.MethodGet, addr, "/api/successor_list", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var reply transport.SuccessorListResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("client: decode successor_list reply: %w", err)
	}
	out := make([]domain.NodeRef, 0, len(reply.Successors))
	for _, w := range reply.Successors {
		n, err := c.nodeFromWire(w)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Notify issues POST /api/notify to addr, informing it that self may be
// its predecessor. Failure of this call is routinely ignored by callers
// (see the maintenance loop's stabilize step).
func (c *HTTPClient) Notify(ctx context.Context, addr string, self domain.NodeRef) error {
	body, err := json.Marshal(transport.NotifyRequest{ID: self.ID.Decimal(), Host: self.Addr})
	if err != nil {
		return fmt.Errorf("client: encode notify body: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, addr, "/api/notify", bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return nil
}

// Ping issues GET /api/ping to addr and treats any non-200 reply (or
// transport failure) as liveness failure.
func (c *HTTPClient) Ping(ctx context.Context, addr string) error {
	resp, err := c.do(ctx, http.MethodGet, addr, "/api/ping", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return nil
}

// Store issues POST /storage/upload to addr with the resource's raw key
// name and base64-encoded certificate bytes, as the one-hop forward of a
// store request to its owner.
func (c *HTTPClient) Store(ctx context.Context, addr string, res domain.Resource) (domain.NodeRef, error) {
	ctx, end := lookuptrace.StartClient(ctx, "chord.store")
	defer end()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("key", res.RawKey); err != nil {
		return domain.NodeRef{}, fmt.Errorf("client: write key field: %w", err)
	}
	if err := mw.WriteField("content", base64.StdEncoding.EncodeToString(res.Value)); err != nil {
		return domain.NodeRef{}, fmt.Errorf("client: write content field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return domain.NodeRef{}, fmt.Errorf("client: close multipart body: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, addr, "/storage/upload", &buf, mw.FormDataContentType())
	if err != nil {
		return domain.NodeRef{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.NodeRef{}, decodeError(resp)
	}
	var reply transport.StoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return domain.NodeRef{}, fmt.Errorf("client: decode store reply: %w", err)
	}
	return c.nodeFromWire(reply.StoredAt)
}

// Retrieve issues GET /storage/retrieve?key=<name> to addr. The key is
// the resource's raw name (e.g. the certificate common name): the owner
// hashes it to look up locally, and the hash alone (one-way) could not be
// reversed back into a name.
func (c *HTTPClient) Retrieve(ctx context.Context, addr string, rawKey string) ([]byte, bool, error) {
	ctx, end := lookuptrace.StartClient(ctx, "chord.retrieve")
	defer end()
	path := "/storage/retrieve?" + url.Values{"key": {rawKey}}.Encode()
	resp, err := c.do(ctx, http.MethodGet, addr, path, nil, "")
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, decodeError(resp)
	}
	var reply transport.RetrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, false, fmt.Errorf("client: decode retrieve reply: %w", err)
	}
	if !reply.Found {
		return nil, false, nil
	}
	raw, err := base64.StdEncoding.DecodeString(reply.Content)
	if err != nil {
		return nil, false, fmt.Errorf("client: decode retrieve content: %w", err)
	}
	return raw, true, nil
}
