package shoplist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PascalSV/shopping-list-pwa/internal/types"
)

// ClientIDHeader carries the install id on every request.
const ClientIDHeader = "X-Client-ID"

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
}

// Unwrap makes every StatusError match ErrSyncFailed.
func (e *StatusError) Unwrap() error {
	return ErrSyncFailed
}

// Syncer talks to the sync server.
type Syncer struct {
	baseURL  string
	token    string
	clientID string
	client   *http.Client
}

// NewSyncer creates a Syncer. A nil client uses http.DefaultClient.
func NewSyncer(baseURL, token, clientID string, client *http.Client) *Syncer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Syncer{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		clientID: clientID,
		client:   client,
	}
}

// Ping checks connectivity via the public health endpoint.
func (s *Syncer) Ping(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: "health check", StatusCode: resp.StatusCode}
	}
	return nil
}

// Bootstrap fetches the full live state.
func (s *Syncer) Bootstrap(ctx context.Context) (*types.SyncResponse, error) {
	return s.roundTrip(ctx, "bootstrap", http.MethodGet, "/api/bootstrap", nil)
}

// Sync sends req and returns the server's state since req.Since.
func (s *Syncer) Sync(ctx context.Context, req types.SyncRequest) (*types.SyncResponse, error) {
	if req.Mutations == nil {
		req.Mutations = []types.SyncMutation{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode sync request: %w", err)
	}
	return s.roundTrip(ctx, "sync", http.MethodPost, "/api/sync", body)
}

func (s *Syncer) roundTrip(ctx context.Context, op, method, path string, body []byte) (*types.SyncResponse, error) {
	resp, err := s.do(ctx, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrSyncFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Detail: problemDetail(resp.Body)}
	}

	var out types.SyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: %w: decode response: %w", op, ErrSyncFailed, err)
	}
	out.EnsureArrays()
	return &out, nil
}

func (s *Syncer) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if s.clientID != "" {
		req.Header.Set(ClientIDHeader, s.clientID)
	}
	return s.client.Do(req)
}

// problemDetail extracts the detail of an RFC 7807 body, if any.
func problemDetail(r io.Reader) string {
	var p struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&p); err != nil {
		return ""
	}
	return p.Detail
}
