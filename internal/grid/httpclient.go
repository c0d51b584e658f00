package grid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gridkeeper/gridkeeper/pkg/proto"
)

// HTTPClient talks to the grid gateway's JSON API. It implements Client.
type HTTPClient struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// NewHTTPClient creates a client for the gateway at baseURL. The token is
// sent as a bearer credential on every request.
func NewHTTPClient(baseURL, authToken string) *HTTPClient {
	return &HTTPClient{
		baseURL:   baseURL,
		authToken: authToken,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *HTTPClient) Stat(ctx context.Context, path string) (Kind, error) {
	var out proto.StatResponse
	if err := c.get(ctx, "/api/v1/stat", path, &out); err != nil {
		return KindNone, err
	}
	if !out.Exists {
		return KindNone, nil
	}
	if out.Kind == "collection" {
		return KindCollection, nil
	}
	return KindDataObject, nil
}

func (c *HTTPClient) GetReplicas(ctx context.Context, path string) ([]Replica, error) {
	var out proto.ReplicasResponse
	if err := c.get(ctx, "/api/v1/replicas", path, &out); err != nil {
		return nil, err
	}
	replicas := make([]Replica, 0, len(out.Replicas))
	for _, r := range out.Replicas {
		replicas = append(replicas, Replica{
			Resource: r.Resource,
			Number:   r.Number,
			Checksum: r.Checksum,
			Valid:    r.Valid,
			Created:  r.Created,
		})
	}
	return replicas, nil
}

func (c *HTTPClient) GetChecksumRecord(ctx context.Context, path string) ([]string, error) {
	avus, err := c.GetMetadata(ctx, path)
	if err != nil {
		return nil, err
	}
	var records []string
	for _, avu := range avus {
		if avu.Attribute == AttrChecksum {
			records = append(records, avu.Value)
		}
	}
	return records, nil
}

func (c *HTTPClient) RemoveReplica(ctx context.Context, path string, number int) error {
	return c.post(ctx, "/api/v1/replicas/remove", proto.RemoveReplicaRequest{
		Path:   path,
		Number: number,
	})
}

func (c *HTTPClient) CreateReplica(ctx context.Context, path, resource string) error {
	return c.post(ctx, "/api/v1/replicas/create", proto.CreateReplicaRequest{
		Path:     path,
		Resource: resource,
	})
}

func (c *HTTPClient) GetMetadata(ctx context.Context, path string) ([]AVU, error) {
	var out proto.MetadataResponse
	if err := c.get(ctx, "/api/v1/metadata", path, &out); err != nil {
		return nil, err
	}
	avus := make([]AVU, 0, len(out.AVUs))
	for _, a := range out.AVUs {
		avus = append(avus, AVU{Attribute: a.Attribute, Value: a.Value, Units: a.Units})
	}
	return avus, nil
}

func (c *HTTPClient) AddMetadata(ctx context.Context, path string, avus ...AVU) error {
	return c.post(ctx, "/api/v1/metadata/add", metadataRequest(path, avus))
}

func (c *HTTPClient) RemoveMetadata(ctx context.Context, path string, avus ...AVU) error {
	return c.post(ctx, "/api/v1/metadata/remove", metadataRequest(path, avus))
}

func (c *HTTPClient) GetACL(ctx context.Context, path string) ([]ACE, error) {
	var out proto.ACLResponse
	if err := c.get(ctx, "/api/v1/acl", path, &out); err != nil {
		return nil, err
	}
	entries := make([]ACE, 0, len(out.Entries))
	for _, e := range out.Entries {
		entries = append(entries, ACE{Principal: e.Principal, Permission: e.Permission})
	}
	return entries, nil
}

func (c *HTTPClient) SetACL(ctx context.Context, path string, entries ...ACE) error {
	req := proto.ACLRequest{Path: path}
	for _, e := range entries {
		req.Entries = append(req.Entries, proto.ACE{Principal: e.Principal, Permission: e.Permission})
	}
	return c.post(ctx, "/api/v1/acl/set", req)
}

func (c *HTTPClient) CopyObject(ctx context.Context, src, dst string) error {
	return c.post(ctx, "/api/v1/objects/copy", proto.CopyObjectRequest{
		Source:      src,
		Destination: dst,
	})
}

func (c *HTTPClient) CreateCollection(ctx context.Context, path string) error {
	return c.post(ctx, "/api/v1/collections/create", proto.CreateCollectionRequest{Path: path})
}

func (c *HTTPClient) ListChildren(ctx context.Context, path string) ([]Entry, error) {
	var out proto.ChildrenResponse
	if err := c.get(ctx, "/api/v1/children", path, &out); err != nil {
		return nil, err
	}
	children := make([]Entry, 0, len(out.Children))
	for _, e := range out.Children {
		kind := KindDataObject
		if e.Kind == "collection" {
			kind = KindCollection
		}
		children = append(children, Entry{Path: e.Path, Kind: kind})
	}
	return children, nil
}

// Close releases idle connections. The gateway session is stateless.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func metadataRequest(path string, avus []AVU) proto.MetadataRequest {
	req := proto.MetadataRequest{Path: path}
	for _, a := range avus {
		req.AVUs = append(req.AVUs, proto.AVU{Attribute: a.Attribute, Value: a.Value, Units: a.Units})
	}
	return req
}

func (c *HTTPClient) get(ctx context.Context, endpoint, path string, out any) error {
	u := c.baseURL + endpoint + "?path=" + url.QueryEscape(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
}

// parseError maps a gateway error response onto the grid error types.
func (c *HTTPClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var kind error
	switch resp.StatusCode {
	case http.StatusNotFound:
		kind = ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = ErrPermissionDenied
	case http.StatusConflict:
		kind = ErrConflict
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		kind = ErrConnection
	}

	var errResp proto.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		if kind != nil {
			return fmt.Errorf("%w: %s", kind, errResp.Error)
		}
		return fmt.Errorf("gateway error: %s", errResp.Error)
	}
	if kind != nil {
		return fmt.Errorf("%w: status %d", kind, resp.StatusCode)
	}
	return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
}
