package kb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	var gotAuth string
	var gotReq registerRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/files", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Registration{
			ConnectorID:  "conn_123",
			VectorFileID: "vf_456",
		})
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	reg, err := client.Register(context.Background(), "rfp_v2.md", []byte("# RFP"))
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "rfp_v2.md", gotReq.Name)
	assert.Equal(t, "# RFP", gotReq.Content)
	assert.Equal(t, "conn_123", reg.ConnectorID)
	assert.Equal(t, "vf_456", reg.VectorFileID)
}

func TestRegister_RetriesServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(Registration{VectorFileID: "vf_1"})
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	reg, err := client.Register(context.Background(), "doc.md", []byte("body"))
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "vf_1", reg.VectorFileID)
}

func TestRegister_ClientErrorNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"empty content"}`))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	_, err := client.Register(context.Background(), "doc.md", nil)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Contains(t, err.Error(), "422")
}

func TestAttach(t *testing.T) {
	var gotReq attachRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/p1/attach", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(attachResponse{Handle: "kb://p1/abc"})
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	handle, err := client.Attach(context.Background(), "p1", []string{"vf_1", "vf_2"})
	require.NoError(t, err)
	assert.Equal(t, "kb://p1/abc", handle)
	assert.Equal(t, []string{"vf_1", "vf_2"}, gotReq.FileIDs)
}

func TestAttach_NoFilesSkipsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an empty file list")
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	handle, err := client.Attach(context.Background(), "p1", nil)
	require.NoError(t, err)
	assert.Empty(t, handle)
}
