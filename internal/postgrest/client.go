// Package postgrest implements the service stores against a hosted PostgREST
// endpoint (Supabase style) instead of a direct Postgres connection.
//
// PostgREST has no multi-statement transactions, so the operations that are
// transactional in package storage are rendered here as conditional writes:
// completion patches only rows whose end_time is still null, and record
// replacement patches only rows the candidate dominates.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/ironlog/internal/storage"
	"github.com/google/uuid"
)

const (
	mediaJSON   = "application/json"
	mediaObject = "application/vnd.pgrst.object+json"

	// codeNoRows is returned when single-object coercion finds zero rows.
	codeNoRows = "PGRST116"
	codeUnique = "23505"
)

// Client talks to the /rest/v1 interface of a PostgREST server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client for baseURL authenticated with apiKey.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx reply from PostgREST.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("postgrest: status %d: %s %s", e.Status, e.Code, e.Message)
}

// Is lets errors.Is match the storage sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case storage.ErrNotFound:
		return e.Code == codeNoRows
	case storage.ErrConflict:
		return e.Status == http.StatusConflict || e.Code == codeUnique
	}
	return false
}

// request describes one call. Filters go in query, Prefer directives in prefer.
type request struct {
	method string
	table  string
	query  url.Values
	body   any
	prefer []string
	single bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + "/rest/v1/" + r.table
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("postgrest: encode %s body: %w", r.table, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("postgrest: create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if r.body != nil {
		req.Header.Set("Content-Type", mediaJSON)
	}
	if r.single {
		req.Header.Set("Accept", mediaObject)
	} else {
		req.Header.Set("Accept", mediaJSON)
	}
	if len(r.prefer) > 0 {
		req.Header.Set("Prefer", strings.Join(r.prefer, ","))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("postgrest: %s %s: %w", r.method, r.table, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("postgrest: read body: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil {
			apiErr.Message = string(data)
		}
		return fmt.Errorf("%s %s: %w", r.method, r.table, apiErr)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("postgrest: decode %s: %w", r.table, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, table string, q url.Values, out any) error {
	return c.do(ctx, request{method: http.MethodGet, table: table, query: q}, out)
}

func (c *Client) getOne(ctx context.Context, table string, q url.Values, out any) error {
	return c.do(ctx, request{method: http.MethodGet, table: table, query: q, single: true}, out)
}

// insert posts row and, when out is non-nil, decodes the stored
// representation into it.
func (c *Client) insert(ctx context.Context, table string, row, out any) error {
	if out == nil {
		return c.insertMany(ctx, table, row)
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		table:  table,
		body:   row,
		prefer: []string{"return=representation"},
		single: true,
	}, out)
}

// insertMany posts a batch of rows without reading them back.
func (c *Client) insertMany(ctx context.Context, table string, rows any) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		table:  table,
		body:   rows,
		prefer: []string{"return=minimal"},
	}, nil)
}

// patch applies fields to the rows matching q and reports how many changed
// by decoding them into out.
func (c *Client) patch(ctx context.Context, table string, q url.Values, fields, out any) error {
	return c.do(ctx, request{
		method: http.MethodPatch,
		table:  table,
		query:  q,
		body:   fields,
		prefer: []string{"return=representation"},
	}, out)
}

// remove deletes the rows matching q. Zero matches is ErrNotFound.
func (c *Client) remove(ctx context.Context, table string, q url.Values) error {
	q.Set("select", "id")
	var gone []struct {
		ID uuid.UUID `json:"id"`
	}
	if err := c.do(ctx, request{
		method: http.MethodDelete,
		table:  table,
		query:  q,
		prefer: []string{"return=representation"},
	}, &gone); err != nil {
		return err
	}
	if len(gone) == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Ping checks that the endpoint answers and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	var rows []json.RawMessage
	return c.get(ctx, "exercises", url.Values{"select": {"id"}, "limit": {"1"}}, &rows)
}

func eq(v any) string {
	return "eq." + fmt.Sprint(v)
}

func in(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return "in.(" + strings.Join(parts, ",") + ")"
}
