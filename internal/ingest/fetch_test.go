package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchURL_HTML(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, `<html><head><title>Community Grant NOFO</title></head><body>
			<article>
			<h1>Community Grant NOFO</h1>
			<p>Applications are due by March 14. Proposals must not exceed 15 pages.</p>
			<p>Eligible applicants include registered nonprofit organizations serving the region.</p>
			</article>
		</body></html>`)
	}))
	defer ts.Close()

	f := NewFetcher(5*time.Second, 1<<20)
	name, text, err := f.FetchURL(context.Background(), ts.URL+"/docs/nofo.html")
	require.NoError(t, err)
	assert.Contains(t, name, "Community Grant NOFO")
	assert.Contains(t, text, "must not exceed 15 pages")
}

func TestFetchURL_PlainText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprint(w, "1. Project Narrative\nDescribe the project.\n")
	}))
	defer ts.Close()

	f := NewFetcher(5*time.Second, 1<<20)
	name, text, err := f.FetchURL(context.Background(), ts.URL+"/files/outline.txt")
	require.NoError(t, err)
	assert.Equal(t, "outline.txt", name)
	assert.Equal(t, "1. Project Narrative\nDescribe the project.\n", text)
}

func TestFetchURL_SizeCap(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprint(w, strings.Repeat("x", 1000))
	}))
	defer ts.Close()

	f := NewFetcher(5*time.Second, 100)
	_, text, err := f.FetchURL(context.Background(), ts.URL+"/big.txt")
	require.NoError(t, err)
	assert.Len(t, text, 100)
}

func TestFetchURL_NonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	f := NewFetcher(5*time.Second, 1<<20)
	_, _, err := f.FetchURL(context.Background(), ts.URL+"/missing.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
