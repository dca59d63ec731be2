package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnavailable is returned when no worker answers on the control address.
var ErrUnavailable = errors.New("background updater is not reachable")

// Client talks to a worker's control channel.
type Client struct {
	addr string
	http *http.Client
}

// NewClient creates a Client for the worker listening on addr.
func NewClient(addr string) *Client {
	return &Client{
		addr: addr,
		http: &http.Client{Timeout: 2 * time.Second},
	}
}

// Reload asks the worker to reload the feed list and sweep now.
func (c *Client) Reload(ctx context.Context) error {
	var r struct {
		OK bool `json:"ok"`
	}
	if err := c.do(ctx, http.MethodPost, "/reload", &r); err != nil {
		return err
	}
	if !r.OK {
		return errors.New("reload rejected")
	}
	return nil
}

// Status returns the worker's progress.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var r StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status", &r); err != nil {
		return StatusResponse{}, err
	}
	return r, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, "http://"+c.addr+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("server error: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
