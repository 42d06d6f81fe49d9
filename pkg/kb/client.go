// Package kb provides a client for the knowledge base service that indexes
// ingested documents for retrieval during drafting.
package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the knowledge base operations.
type Client interface {
	// Register uploads a document for indexing and returns its identifiers.
	Register(ctx context.Context, name string, content []byte) (*Registration, error)
	// Attach returns a retrieval handle scoping searches to one project's
	// registered documents. An empty handle means no documents are indexed.
	Attach(ctx context.Context, projectID string, fileIDs []string) (string, error)
}

// Registration holds the identifiers assigned to an indexed document.
type Registration struct {
	ConnectorID  string `json:"connector_id"`
	VectorFileID string `json:"vector_file_id"`
}

// Option configures the knowledge base client.
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

// NewClient creates a knowledge base client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.grantline.dev/kb/v1",
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes a request with exponential backoff on transient failures.
// The request body is re-created from payload on each attempt.
func (c *httpClient) retryDo(ctx context.Context, method, url string, payload []byte) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return nil, 0, eris.Wrap(err, "kb: create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "kb: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("kb: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

type registerRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (c *httpClient) Register(ctx context.Context, name string, content []byte) (*Registration, error) {
	payload, err := json.Marshal(registerRequest{Name: name, Content: string(content)})
	if err != nil {
		return nil, eris.Wrap(err, "kb: marshal register request")
	}

	body, statusCode, err := c.retryDo(ctx, http.MethodPost, c.baseURL+"/files", payload)
	if err != nil {
		return nil, eris.Wrap(err, "kb: register request failed")
	}
	if statusCode != http.StatusOK && statusCode != http.StatusCreated {
		return nil, eris.Errorf("kb: register unexpected status %d: %s", statusCode, string(body))
	}

	var reg Registration
	if err := json.Unmarshal(body, &reg); err != nil {
		return nil, eris.Wrap(err, "kb: unmarshal register response")
	}
	return &reg, nil
}

type attachRequest struct {
	ProjectID string   `json:"project_id"`
	FileIDs   []string `json:"file_ids"`
}

type attachResponse struct {
	Handle string `json:"handle"`
}

func (c *httpClient) Attach(ctx context.Context, projectID string, fileIDs []string) (string, error) {
	if len(fileIDs) == 0 {
		return "", nil
	}

	payload, err := json.Marshal(attachRequest{ProjectID: projectID, FileIDs: fileIDs})
	if err != nil {
		return "", eris.Wrap(err, "kb: marshal attach request")
	}

	body, statusCode, err := c.retryDo(ctx, http.MethodPost, fmt.Sprintf("%s/projects/%s/attach", c.baseURL, projectID), payload)
	if err != nil {
		return "", eris.Wrap(err, "kb: attach request failed")
	}
	if statusCode != http.StatusOK {
		return "", eris.Errorf("kb: attach unexpected status %d: %s", statusCode, string(body))
	}

	var out attachResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", eris.Wrap(err, "kb: unmarshal attach response")
	}
	return out.Handle, nil
}
