package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"submux/internal/api"
	"submux/internal/config"
	"submux/internal/jobs"
)

// apiClient talks to a running `submux serve` over its HTTP API.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(cfg *config.Config) (*apiClient, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(cfg.API.Bind))
	if err != nil {
		return nil, fmt.Errorf("parse api.bind %q: %w", cfg.API.Bind, err)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return &apiClient{
		base:  "http://" + net.JoinHostPort(host, port),
		token: cfg.API.Token,
		http:  &http.Client{Timeout: 5 * time.Second},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return 0, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("contact submux service at %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var body struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(data))
		}
		return resp.StatusCode, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, body.Error)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

func (c *apiClient) activeJobs(ctx context.Context) ([]jobs.JobInfo, error) {
	var resp api.JobsResponse
	if _, err := c.do(ctx, http.MethodGet, "/api/jobs", &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// discard asks the service to drop a session so a running job is never
// pulled out from under the encoder.
func (c *apiClient) discard(ctx context.Context, userID string) (bool, error) {
	status, err := c.do(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(userID)+"/session", nil)
	if status == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
