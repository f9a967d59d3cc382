package api

import (
	"context"
	"net/http"
)

// HealthResponse is the backend liveness payload
type HealthResponse struct {
	Status     string         `json:"status"`
	Service    string         `json:"service"`
	Version    string         `json:"version"`
	Timestamp  string         `json:"timestamp"`
	Components map[string]any `json:"components,omitempty"`
}

// Health calls the unauthenticated liveness probe
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	err := c.Do(ctx, &Request{
		Method:    http.MethodGet,
		Path:      PathHealth,
		SkipAuth:  true,
		NoRefresh: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
