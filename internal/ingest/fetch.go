package ingest

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/rotisserie/eris"
)

// Fetcher retrieves URL sources and extracts their main text.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a Fetcher with the given timeout and size cap.
func NewFetcher(timeout time.Duration, maxBytes int) *Fetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: int64(maxBytes),
	}
}

// FetchURL downloads a document and returns (name, text). HTML bodies go
// through readability extraction with a goquery title fallback; anything
// else is returned as-is.
func (f *Fetcher) FetchURL(ctx context.Context, rawURL string) (string, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrapf(err, "ingest: parse url %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", eris.Wrap(err, "ingest: build request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", eris.Wrapf(err, "ingest: fetch %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", eris.Errorf("ingest: fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body := resp.Body
	if f.maxBytes > 0 {
		body = struct {
			io.Reader
			io.Closer
		}{io.LimitReader(resp.Body, f.maxBytes), resp.Body}
	}
	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		return "", "", eris.Wrapf(err, "ingest: read body %s", rawURL)
	}

	name := lastPathSegment(parsed)
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "html") {
		return name, string(bodyBytes), nil
	}

	article, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsed)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		if article.Title != "" {
			name = article.Title
		}
		return name, article.TextContent, nil
	}

	// Readability could not find a main body; fall back to stripped HTML.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(bodyBytes)))
	if err != nil {
		return "", "", eris.Wrapf(err, "ingest: parse html %s", rawURL)
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		name = title
	}
	return name, strings.TrimSpace(doc.Find("body").Text()), nil
}

func lastPathSegment(u *url.URL) string {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	if last == "" {
		return u.Host
	}
	return last
}
