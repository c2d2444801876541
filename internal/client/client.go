// Package client calls a remote IronLog REST API. It backs the MCP server
// and the importer when they run away from the database.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/ironlog/internal/auth"
	"github.com/claude/ironlog/internal/importer"
	"github.com/claude/ironlog/internal/ingest"
	"github.com/claude/ironlog/internal/mcp"
	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// errNotFound marks a 404 so lookups can report a missing row as nil.
var errNotFound = errors.New("not found")

// Client implements mcp.DataSource and importer.Ingester over HTTP. The
// user is the one the bearer token was issued to; userID arguments are
// ignored.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var (
	_ mcp.DataSource    = (*Client)(nil)
	_ importer.Ingester = (*Client)(nil)
)

// New creates a Client targeting the given base URL.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Login exchanges credentials for tokens and keeps the access token.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(auth.LoginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}
	var resp struct {
		Tokens auth.Tokens `json:"tokens"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", nil, "application/json", bytes.NewReader(body), &resp); err != nil {
		return err
	}
	c.token = resp.Tokens.AccessToken
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, contentType string, body io.Reader, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("client: create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("client: %s: %w", path, errNotFound)
	case resp.StatusCode >= 300:
		return fmt.Errorf("client: %s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(data))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, "", nil, out)
}

func limitParams(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

func (c *Client) ActiveSession(ctx context.Context, _ uuid.UUID) (*models.SessionDetail, error) {
	var d models.SessionDetail
	err := c.get(ctx, "/api/v1/sessions/active", nil, &d)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) Session(ctx context.Context, _ uuid.UUID, id uuid.UUID) (*models.SessionDetail, error) {
	var d models.SessionDetail
	err := c.get(ctx, "/api/v1/sessions/"+id.String(), nil, &d)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) Sessions(ctx context.Context, _ uuid.UUID, limit int) ([]models.Session, error) {
	var list []models.Session
	if err := c.get(ctx, "/api/v1/sessions", limitParams(limit), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) Records(ctx context.Context, _ uuid.UUID) ([]models.PersonalRecord, error) {
	var list []models.PersonalRecord
	if err := c.get(ctx, "/api/v1/records", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) Exercises(ctx context.Context, _ uuid.UUID, category *models.Category) ([]models.Exercise, error) {
	var params url.Values
	if category != nil {
		params = url.Values{"category": {string(*category)}}
	}
	var list []models.Exercise
	if err := c.get(ctx, "/api/v1/exercises", params, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) BodyWeight(ctx context.Context, _ uuid.UUID, limit int) (*mcp.BodyWeightSummary, error) {
	var sum mcp.BodyWeightSummary
	if err := c.get(ctx, "/api/v1/bodyweight", limitParams(limit), &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

// Ingest uploads an Alpha Progression export to the server.
func (c *Client) Ingest(ctx context.Context, _ uuid.UUID, r io.Reader) (*ingest.Result, error) {
	var res ingest.Result
	if err := c.do(ctx, http.MethodPost, "/api/v1/import/alpha", nil, "text/csv", r, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
