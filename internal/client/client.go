// Package client is a Go client for the claims tracker REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rongwang/claims-tracker/internal/models"
	"github.com/rongwang/claims-tracker/internal/workflow"
	"github.com/rongwang/claims-tracker/internal/workqueue"
)

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("claims api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("claims api: status %d: %s", e.StatusCode, e.Message)
}

// Client talks to one server. It is safe for concurrent use once logged in.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
	user  *models.LoginResponse
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken starts the client with an existing bearer token
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a client for the server at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current bearer token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// User returns the profile from the last successful Login
func (c *Client) User() *models.LoginResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Login signs in and keeps the token for later calls
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	req := models.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/login", req, &resp); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.token = resp.Token
	c.user = &resp
	c.mu.Unlock()
	return &resp, nil
}

// ListClaims fetches every claim
func (c *Client) ListClaims(ctx context.Context) ([]models.Claim, error) {
	var claims []models.Claim
	if err := c.do(ctx, http.MethodGet, "/api/claims", nil, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// GetClaim fetches one claim with its history
func (c *Client) GetClaim(ctx context.Context, id string) (*models.Claim, error) {
	var claim models.Claim
	if err := c.do(ctx, http.MethodGet, "/api/claims/"+url.PathEscape(id), nil, &claim); err != nil {
		return nil, err
	}
	return &claim, nil
}

// UpdateClaim sends a partial update; only the keys in fields change
func (c *Client) UpdateClaim(ctx context.Context, id string, fields map[string]interface{}) (*models.Claim, error) {
	var claim models.Claim
	if err := c.do(ctx, http.MethodPut, "/api/claims/"+url.PathEscape(id), fields, &claim); err != nil {
		return nil, err
	}
	return &claim, nil
}

// DeleteClaim removes a claim
func (c *Client) DeleteClaim(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/claims/"+url.PathEscape(id), nil, nil)
}

// RecordWork records a unit of follow-up work on a claim. Remarks, status
// and action taken are required and checked before any request is sent.
func (c *Client) RecordWork(ctx context.Context, id string, req models.RecordWorkRequest) (*models.Claim, error) {
	work := workflow.Work{Remarks: req.Remarks, Status: req.Status, ActionTaken: req.ActionTaken}
	if err := work.Validate(); err != nil {
		return nil, err
	}

	var claim models.Claim
	if err := c.do(ctx, http.MethodPost, "/api/claims/"+url.PathEscape(id)+"/work", req, &claim); err != nil {
		return nil, err
	}
	return &claim, nil
}

// Assign gives a claim to agentID, or unassigns it when agentID is nil
func (c *Client) Assign(ctx context.Context, id string, agentID *string) (*models.Claim, error) {
	var claim models.Claim
	req := models.AssignRequest{AssignedTo: agentID}
	if err := c.do(ctx, http.MethodPut, "/api/claims/"+url.PathEscape(id)+"/assign", req, &claim); err != nil {
		return nil, err
	}
	return &claim, nil
}

// Share replaces the claim's collaborators
func (c *Client) Share(ctx context.Context, id string, agentIDs []string) (*models.Claim, error) {
	var claim models.Claim
	req := models.ShareRequest{SharedWith: agentIDs}
	if err := c.do(ctx, http.MethodPut, "/api/claims/"+url.PathEscape(id)+"/share", req, &claim); err != nil {
		return nil, err
	}
	return &claim, nil
}

// Queue fetches one page of the server-rendered work queue
func (c *Client) Queue(ctx context.Context, f workqueue.Filter, page, perPage int) (*workqueue.Page, error) {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("search", f.Search)
	set("priority", f.Priority)
	set("status", f.Status)
	set("scope", string(f.Scope))
	set("agent", f.Agent)
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		q.Set("perPage", strconv.Itoa(perPage))
	}

	path := "/api/queue"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var view workqueue.Page
	if err := c.do(ctx, http.MethodGet, path, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Result is the outcome of one request in a bulk operation
type Result struct {
	ID  string
	Err error
}

// BulkAssign assigns every claim concurrently, one request per claim.
// Failures are reported per id; successful assignments are not undone.
func (c *Client) BulkAssign(ctx context.Context, ids []string, agentID *string) []Result {
	return c.each(ids, func(id string) error {
		_, err := c.Assign(ctx, id, agentID)
		return err
	})
}

// BulkDelete deletes every claim concurrently, one request per claim
func (c *Client) BulkDelete(ctx context.Context, ids []string) []Result {
	return c.each(ids, func(id string) error {
		return c.DeleteClaim(ctx, id)
	})
}

func (c *Client) each(ids []string, fn func(id string) error) []Result {
	results := make([]Result, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = Result{ID: id, Err: fn(id)}
		}(i, id)
	}
	wg.Wait()
	return results
}

// Failed returns the results that carry an error
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e models.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil {
			apiErr.Message = e.Error
			apiErr.Code = e.Code
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
