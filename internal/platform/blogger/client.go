// Package blogger implements the Blogger v3 publishing adapter. Posts are
// always inserted as drafts first; publishing or scheduling is a second
// call with a UTC RFC3339 publish date.
package blogger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/gopost/publisher/internal/domain"
	"github.com/gopost/publisher/internal/platform"
)

const (
	defaultAPIBase = "https://www.googleapis.com/blogger/v3"
	tokenURL       = "https://oauth2.googleapis.com/token"
	bloggerScope   = "https://www.googleapis.com/auth/blogger"
	maxBodySnippet = 512
)

// ClientConfig holds the OAuth2 credentials for one blog. The access
// token is obtained through a refresh-token exchange; the oauth2
// transport refreshes an expired token transparently, which covers the
// "expired token is retryable exactly once" requirement. A failed refresh
// surfaces as a fatal AuthError.
type ClientConfig struct {
	BlogID       string
	ClientID     string
	ClientSecret string
	RefreshToken string
	// APIBase overrides the Blogger endpoint, used by tests.
	APIBase string
	// HTTPClient overrides the OAuth2-wrapped client, used by tests.
	HTTPClient *http.Client
}

// Client is a thin Blogger v3 API client. One HTTP call per method, no
// retries; retrying is the adapter's job.
type Client struct {
	blogID     string
	apiBase    string
	httpClient *http.Client
}

// NewClient creates a Blogger client authenticated via refresh-token
// exchange.
func NewClient(cfg ClientConfig) *Client {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = defaultAPIBase
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
			Scopes:       []string{bloggerScope},
		}
		token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
		httpClient = oauthCfg.Client(context.Background(), token)
	}

	return &Client{
		blogID:     cfg.BlogID,
		apiBase:    strings.TrimRight(apiBase, "/"),
		httpClient: httpClient,
	}
}

// Post is the subset of a Blogger post the adapter consumes.
type Post struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

type insertPayload struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Labels  []string `json:"labels,omitempty"`
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, out any) (string, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// A refresh-token exchange failure means the credential itself
		// is bad; retrying cannot help.
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", domain.WrapError(domain.KindAuth, err, "refresh token exchange failed")
		}
		return "", fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	summary := platform.ResponseSummary(resp.StatusCode, respBody)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(respBody)
		if len(snippet) > maxBodySnippet {
			snippet = snippet[:maxBodySnippet]
		}
		return summary, platform.ErrorFromStatus(resp.StatusCode, snippet, method+" "+req.URL.Path)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return summary, fmt.Errorf("decode response: %w", err)
		}
	}
	return summary, nil
}

// InsertDraft creates a new post as a draft.
func (c *Client) InsertDraft(ctx context.Context, title, content string, labels []string) (Post, string, error) {
	body, err := json.Marshal(insertPayload{Title: title, Content: content, Labels: labels})
	if err != nil {
		return Post{}, "", fmt.Errorf("marshal post: %w", err)
	}

	rawURL := fmt.Sprintf("%s/blogs/%s/posts?isDraft=true", c.apiBase, url.PathEscape(c.blogID))
	var post Post
	summary, err := c.do(ctx, http.MethodPost, rawURL, body, &post)
	if err != nil {
		return Post{}, summary, err
	}
	return post, summary, nil
}

// Publish publishes an inserted post. A nil publishDate publishes
// immediately; otherwise publishDate must be UTC and is sent as RFC3339.
func (c *Client) Publish(ctx context.Context, postID string, publishDate *time.Time) (Post, string, error) {
	rawURL := fmt.Sprintf("%s/blogs/%s/posts/%s/publish", c.apiBase, url.PathEscape(c.blogID), url.PathEscape(postID))
	if publishDate != nil {
		rawURL += "?publishDate=" + url.QueryEscape(publishDate.UTC().Format(time.RFC3339))
	}

	var post Post
	summary, err := c.do(ctx, http.MethodPost, rawURL, nil, &post)
	if err != nil {
		return Post{}, summary, err
	}
	return post, summary, nil
}
