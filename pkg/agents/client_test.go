package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTool(t *testing.T) {
	var gotAuth string
	var gotReq ToolRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tools/run", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(ToolResult{Output: json.RawMessage(`{"score":0.5}`)})
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	result, err := client.RunTool(context.Background(), ToolRequest{
		Tool:      "coverage",
		ProjectID: "p1",
		Input:     json.RawMessage(`{"force":true}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "coverage", gotReq.Tool)
	assert.Equal(t, "p1", gotReq.ProjectID)
	assert.JSONEq(t, `{"score":0.5}`, string(result.Output))
}

func TestRunTool_ErrorNamesTool(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	_, err := client.RunTool(context.Background(), ToolRequest{Tool: "normalize", ProjectID: "p1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "normalize")
	assert.Contains(t, err.Error(), "502")
}

func TestRunTool_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	_, err := client.RunTool(context.Background(), ToolRequest{Tool: "facts", ProjectID: "p1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal tool result")
}
