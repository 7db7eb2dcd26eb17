package blogger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopost/publisher/internal/domain"
	"github.com/gopost/publisher/internal/logger"
	"github.com/gopost/publisher/internal/retry"
)

type ledgerStub struct {
	mu      sync.Mutex
	entries int
}

func (l *ledgerStub) Record(attempt int, requestSummary, responseSummary string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries++
	return nil
}

func (l *ledgerStub) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries
}

// fakeBlog records inserted posts and the publishDate query of publish
// calls.
type fakeBlog struct {
	mu           sync.Mutex
	inserted     []insertPayload
	publishDates []string
}

func (b *fakeBlog) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/blogs/blog-1/posts", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "true", r.URL.Query().Get("isDraft"))
		var payload insertPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		b.mu.Lock()
		b.inserted = append(b.inserted, payload)
		b.mu.Unlock()
		fmt.Fprint(w, `{"id":"p-7","status":"DRAFT"}`)
	})
	mux.HandleFunc("/blogs/blog-1/posts/p-7/publish", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.publishDates = append(b.publishDates, r.URL.Query().Get("publishDate"))
		b.mu.Unlock()
		fmt.Fprint(w, `{"id":"p-7","url":"https://blog.example.com/2025/09/my-post.html","status":"LIVE"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testAdapter(t *testing.T, blog *fakeBlog) *Adapter {
	t.Helper()
	srv := blog.server(t)
	return NewAdapter(Config{
		Client: ClientConfig{
			BlogID:     "blog-1",
			APIBase:    srv.URL,
			HTTPClient: srv.Client(),
		},
		Retry: retry.Config{
			MaxAttempts: 5,
			BaseDelay:   time.Millisecond,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		},
	}, logger.NewNopLogger())
}

func testBundle() *domain.Bundle {
	return &domain.Bundle{
		ID:      "bundle-1",
		Title:   "My Post",
		Content: `<p>hello</p><img src="images/cat.jpg">`,
		Taxonomy: domain.Taxonomy{
			Labels: []string{"golang", "notes"},
		},
		Images: []domain.ImageAsset{
			{Path: "images/cat.jpg", SourceURL: "https://cdn.example.com/cat.jpg"},
		},
	}
}

func TestPublishDraftInsertsOnly(t *testing.T) {
	blog := &fakeBlog{}
	adapter := testAdapter(t, blog)
	rec := &ledgerStub{}

	ref, err := adapter.PublishDraft(context.Background(), rec, testBundle())
	require.NoError(t, err)

	assert.Equal(t, "p-7", ref.PlatformID)
	assert.Empty(t, ref.PublishedURL)
	assert.Equal(t, "DRAFT", ref.Metadata["status"])
	assert.Empty(t, blog.publishDates, "drafts must not be published")
	assert.Equal(t, 1, rec.count())

	require.Len(t, blog.inserted, 1)
	payload := blog.inserted[0]
	assert.Equal(t, []string{"golang", "notes"}, payload.Labels)
	assert.Contains(t, payload.Content, "https://cdn.example.com/cat.jpg")
}

func TestPublishNowPublishesWithoutDate(t *testing.T) {
	blog := &fakeBlog{}
	adapter := testAdapter(t, blog)

	ref, err := adapter.PublishNow(context.Background(), &ledgerStub{}, testBundle())
	require.NoError(t, err)

	assert.Equal(t, "https://blog.example.com/2025/09/my-post.html", ref.PublishedURL)
	assert.Equal(t, "LIVE", ref.Metadata["status"])
	require.Len(t, blog.publishDates, 1)
	assert.Empty(t, blog.publishDates[0])
}

func TestScheduleSendsUTCPublishDate(t *testing.T) {
	blog := &fakeBlog{}
	adapter := testAdapter(t, blog)

	// 09:00 in Tokyo is midnight UTC; the wire format must be the UTC
	// instant, unlike the WordPress site-local convention.
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	when := time.Date(2025, 9, 1, 9, 0, 0, 0, tokyo).UTC()

	rec := &ledgerStub{}
	ref, err := adapter.Schedule(context.Background(), rec, testBundle(), when)
	require.NoError(t, err)

	assert.NotEmpty(t, ref.PublishedURL)
	require.Len(t, blog.publishDates, 1)
	assert.Equal(t, "2025-09-01T00:00:00Z", blog.publishDates[0])
	// Insert and publish are both ledgered.
	assert.Equal(t, 2, rec.count())
}

func TestUnhostedImageIsFatal(t *testing.T) {
	blog := &fakeBlog{}
	adapter := testAdapter(t, blog)

	b := testBundle()
	b.Images[0].SourceURL = ""

	_, err := adapter.PublishNow(context.Background(), &ledgerStub{}, b)
	require.Error(t, err)
	assert.Equal(t, domain.KindAssetNotHosted, domain.KindOf(err))
	assert.Empty(t, blog.inserted, "nothing may reach the platform with unhosted assets")
}

func TestAuthFailureIsFatal(t *testing.T) {
	mux := http.NewServeMux()
	calls := 0
	mux.HandleFunc("/blogs/blog-1/posts", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	adapter := NewAdapter(Config{
		Client: ClientConfig{BlogID: "blog-1", APIBase: srv.URL, HTTPClient: srv.Client()},
		Retry: retry.Config{
			MaxAttempts: 5,
			BaseDelay:   time.Millisecond,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		},
	}, logger.NewNopLogger())

	_, err := adapter.PublishDraft(context.Background(), &ledgerStub{}, testBundle())
	require.Error(t, err)
	assert.Equal(t, domain.KindAuth, domain.KindOf(err))
	assert.Equal(t, 1, calls, "auth failures must not be retried")
}
