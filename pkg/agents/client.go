// Package agents provides a client for the agent orchestrator service that
// can execute pipeline tools remotely. The pipeline treats it as optional:
// every workflow has a local fallback path.
package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the orchestrator operations.
type Client interface {
	// RunTool executes one named pipeline tool remotely and returns its
	// output document.
	RunTool(ctx context.Context, req ToolRequest) (*ToolResult, error)
}

// ToolRequest names the tool and carries its input.
type ToolRequest struct {
	Tool      string          `json:"tool"`
	ProjectID string          `json:"project_id"`
	Input     json.RawMessage `json:"input,omitempty"`
}

// ToolResult is the orchestrator's output for one tool execution.
type ToolResult struct {
	Output json.RawMessage `json:"output"`
}

// Option configures the orchestrator client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an orchestrator client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.grantline.dev/agents/v1",
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) RunTool(ctx context.Context, toolReq ToolRequest) (*ToolResult, error) {
	payload, err := json.Marshal(toolReq)
	if err != nil {
		return nil, eris.Wrap(err, "agents: marshal tool request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tools/run", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "agents: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "agents: run tool %s", toolReq.Tool)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "agents: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("agents: tool %s status %d: %s", toolReq.Tool, resp.StatusCode, string(body))
	}

	var result ToolResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "agents: unmarshal tool result")
	}
	return &result, nil
}
