// Package tycho provides a Go SDK for the tycho-server REST API.
package tycho

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tycho/internal/httpapi"
	"tycho/internal/store"
)

// Client provides a Go SDK for interacting with the tycho-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new tycho API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Strategies lists the strategy names registered on the server.
func (c *Client) Strategies(ctx context.Context) ([]string, error) {
	var resp httpapi.StrategiesResponse
	if err := c.get(ctx, "/api/strategies", &resp); err != nil {
		return nil, err
	}
	return resp.Strategies, nil
}

// RunBacktest runs a backtest on the server and returns the catalog entry.
func (c *Client) RunBacktest(ctx context.Context, req httpapi.BacktestRequest) (*store.Run, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/backtests", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var run store.Run
	if err := c.do(httpReq, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Runs lists catalog entries, newest first. A non-positive limit returns the
// server default.
func (c *Client) Runs(ctx context.Context, limit int) ([]store.Run, error) {
	path := "/api/runs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp httpapi.RunsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// Run retrieves a single catalog entry by ID.
func (c *Client) Run(ctx context.Context, id string) (*store.Run, error) {
	var run store.Run
	if err := c.get(ctx, "/api/runs/"+url.PathEscape(id), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// DeleteRun removes a catalog entry by ID.
func (c *Client) DeleteRun(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/runs/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Equity retrieves the persisted equity curve of a run.
func (c *Client) Equity(ctx context.Context, id string) ([]store.EquityPoint, error) {
	var resp httpapi.EquityResponse
	if err := c.get(ctx, "/api/runs/"+url.PathEscape(id)+"/equity", &resp); err != nil {
		return nil, err
	}
	return resp.Points, nil
}

// Fills retrieves the persisted fill log of a run.
func (c *Client) Fills(ctx context.Context, id string) ([]httpapi.FillJSON, error) {
	var resp httpapi.FillsResponse
	if err := c.get(ctx, "/api/runs/"+url.PathEscape(id)+"/fills", &resp); err != nil {
		return nil, err
	}
	return resp.Fills, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// do executes the request and decodes the JSON response into out (skipped
// when out is nil). Non-2xx responses decode the server's error message.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
