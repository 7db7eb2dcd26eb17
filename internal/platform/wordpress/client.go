// Package wordpress implements the WordPress publishing adapter over the
// WP REST API (posts, media, categories, tags) with basic auth.
package wordpress

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gopost/publisher/internal/logger"
	"github.com/gopost/publisher/internal/platform"
)

const (
	userAgent      = "gopost-publisher/1.0"
	termsPerPage   = 100
	maxBodySnippet = 512
)

// Client is a thin WordPress REST API client. Every method performs
// exactly one HTTP call and no retries; retrying is the adapter's job so
// each call can be ledgered individually.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient creates a client with a pre-computed basic-auth header. There
// is no token refresh for WordPress; the credential pair is fixed.
func NewClient(baseURL, username, appPassword string, httpClient *http.Client, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + appPassword))
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: "Basic " + token,
		httpClient: httpClient,
		logger:     log,
	}
}

// Term is a taxonomy term as returned by the platform.
type Term struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Media is an uploaded media item.
type Media struct {
	ID        int    `json:"id"`
	SourceURL string `json:"source_url"`
}

// Post is the subset of a WordPress post the adapter consumes.
type Post struct {
	ID     int    `json:"id"`
	Link   string `json:"link"`
	Status string `json:"status"`
	Slug   string `json:"slug"`
}

// PostPayload is the create-post request body.
type PostPayload struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	Status        string `json:"status"`
	Slug          string `json:"slug,omitempty"`
	Excerpt       string `json:"excerpt,omitempty"`
	Categories    []int  `json:"categories,omitempty"`
	Tags          []int  `json:"tags,omitempty"`
	FeaturedMedia int    `json:"featured_media,omitempty"`
	Date          string `json:"date,omitempty"`
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/wp-json/wp/v2" + path
}

// do performs one HTTP call and returns the ledger response summary
// (status + body digest) alongside any error, so every attempt can be
// recorded faithfully.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string, extraHeaders map[string]string, out any) (string, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	summary := platform.ResponseSummary(resp.StatusCode, respBody)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return summary, platform.ErrorFromStatus(resp.StatusCode, snippet(respBody), method+" "+path)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return summary, fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}
	return summary, nil
}

func snippet(body []byte) string {
	if len(body) > maxBodySnippet {
		body = body[:maxBodySnippet]
	}
	return string(body)
}

// taxonomyPath maps a taxonomy name to its REST collection.
func taxonomyPath(taxonomy string) string {
	return "/" + taxonomy // "categories" or "tags"
}

// ListTerms fetches the first page of terms for a taxonomy.
func (c *Client) ListTerms(ctx context.Context, taxonomy string) ([]Term, string, error) {
	var terms []Term
	path := fmt.Sprintf("%s?per_page=%d", taxonomyPath(taxonomy), termsPerPage)
	summary, err := c.do(ctx, http.MethodGet, path, nil, "", nil, &terms)
	if err != nil {
		return nil, summary, err
	}
	return terms, summary, nil
}

// CreateTerm creates a taxonomy term and returns its platform id.
func (c *Client) CreateTerm(ctx context.Context, taxonomy, name string) (Term, string, error) {
	payload, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return Term{}, "", fmt.Errorf("marshal term: %w", err)
	}
	var term Term
	summary, err := c.do(ctx, http.MethodPost, taxonomyPath(taxonomy), payload, "application/json", nil, &term)
	if err != nil {
		return Term{}, summary, err
	}
	c.logger.Info("created taxonomy term",
		logger.String("taxonomy", taxonomy),
		logger.String("name", name),
		logger.Int("term_id", term.ID))
	return term, summary, nil
}

// UploadMedia uploads raw image bytes and returns the media reference.
func (c *Client) UploadMedia(ctx context.Context, filename string, data []byte) (Media, string, error) {
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename=%q`, filename),
	}
	var media Media
	summary, err := c.do(ctx, http.MethodPost, "/media", data, "application/octet-stream", headers, &media)
	if err != nil {
		return Media{}, summary, err
	}
	return media, summary, nil
}

// UpdateMedia sets alt text and caption on an uploaded media item.
func (c *Client) UpdateMedia(ctx context.Context, mediaID int, alt, caption string) (string, error) {
	fields := map[string]any{}
	if alt != "" {
		fields["alt_text"] = alt
	}
	if caption != "" {
		fields["caption"] = caption
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal media update: %w", err)
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/media/%d", mediaID), payload, "application/json", nil, nil)
}

// CreatePost submits the post payload.
func (c *Client) CreatePost(ctx context.Context, payload PostPayload) (Post, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Post{}, "", fmt.Errorf("marshal post: %w", err)
	}
	var post Post
	summary, err := c.do(ctx, http.MethodPost, "/posts", body, "application/json", nil, &post)
	if err != nil {
		return Post{}, summary, err
	}
	return post, summary, nil
}
