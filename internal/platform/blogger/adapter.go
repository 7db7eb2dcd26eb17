package blogger

import (
	"context"
	"net/http"
	"path"
	"time"

	"github.com/gopost/publisher/internal/domain"
	"github.com/gopost/publisher/internal/logger"
	"github.com/gopost/publisher/internal/platform"
	"github.com/gopost/publisher/internal/retry"
)

// Config holds adapter settings for one blog.
type Config struct {
	Client ClientConfig
	// Retry overrides the backoff settings, used by tests.
	Retry retry.Config
}

// Adapter publishes bundles to a single Blogger blog. Blogger has no
// media upload API in this design: images must already be hosted at a
// public URL (the bundle's source_url), and the adapter rewrites
// <img src> references before submission.
type Adapter struct {
	client   *Client
	retryCfg retry.Config
	logger   logger.Logger
}

// NewAdapter creates a Blogger adapter.
func NewAdapter(cfg Config, log logger.Logger) *Adapter {
	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = retry.DefaultConfig()
	}
	return &Adapter{
		client:   NewClient(cfg.Client),
		retryCfg: retryCfg,
		logger:   log,
	}
}

// Name implements platform.Adapter.
func (a *Adapter) Name() domain.Platform { return domain.PlatformBlogger }

// PublishDraft implements platform.Adapter. Blogger drafts are a single
// insert call and have no published URL.
func (a *Adapter) PublishDraft(ctx context.Context, rec platform.Recorder, b *domain.Bundle) (*domain.PlatformPostRef, error) {
	post, err := a.insertDraft(ctx, rec, b)
	if err != nil {
		return nil, err
	}
	return &domain.PlatformPostRef{
		PlatformID: post.ID,
		Metadata:   map[string]string{"status": "DRAFT"},
	}, nil
}

// PublishNow implements platform.Adapter: insert as draft, then publish
// with no date.
func (a *Adapter) PublishNow(ctx context.Context, rec platform.Recorder, b *domain.Bundle) (*domain.PlatformPostRef, error) {
	return a.insertAndPublish(ctx, rec, b, nil)
}

// Schedule implements platform.Adapter. The publish date is the
// orchestrator's UTC instant sent as RFC3339 as-is; no site-timezone
// projection happens here, unlike WordPress.
func (a *Adapter) Schedule(ctx context.Context, rec platform.Recorder, b *domain.Bundle, whenUTC time.Time) (*domain.PlatformPostRef, error) {
	return a.insertAndPublish(ctx, rec, b, &whenUTC)
}

func (a *Adapter) insertAndPublish(ctx context.Context, rec platform.Recorder, b *domain.Bundle, whenUTC *time.Time) (*domain.PlatformPostRef, error) {
	draft, err := a.insertDraft(ctx, rec, b)
	if err != nil {
		return nil, err
	}

	postID := draft.ID
	published, err := platform.Call(ctx, a.retryCfg, rec, platform.Classify,
		platform.RequestSummary(http.MethodPost, "/blogs/"+a.client.blogID+"/posts/"+postID+"/publish", nil),
		func(ctx context.Context) (Post, string, error) {
			return a.client.Publish(ctx, postID, whenUTC)
		})
	if err != nil {
		return nil, err
	}

	return &domain.PlatformPostRef{
		PlatformID:   published.ID,
		PublishedURL: published.URL,
		Metadata:     map[string]string{"status": published.Status},
	}, nil
}

func (a *Adapter) insertDraft(ctx context.Context, rec platform.Recorder, b *domain.Bundle) (Post, error) {
	content, err := a.rewriteToHostedURLs(b)
	if err != nil {
		return Post{}, err
	}

	return platform.Call(ctx, a.retryCfg, rec, platform.Classify,
		platform.RequestSummary(http.MethodPost, "/blogs/"+a.client.blogID+"/posts", []byte(b.Title)),
		func(ctx context.Context) (Post, string, error) {
			return a.client.InsertDraft(ctx, b.Title, content, b.Taxonomy.Labels)
		})
}

// rewriteToHostedURLs points every local <img src> at the asset's public
// source_url. An image without a hosted URL is a fatal AssetNotHosted
// error; retrying cannot conjure the asset into existence.
func (a *Adapter) rewriteToHostedURLs(b *domain.Bundle) (string, error) {
	hosted := make(map[string]string, len(b.Images))
	for _, img := range b.Images {
		if img.SourceURL != "" {
			hosted[img.Path] = img.SourceURL
		}
	}

	return platform.RewriteImageSources(b.Content, func(src string) (string, bool, error) {
		if platform.IsRemoteURL(src) {
			return "", false, nil
		}
		if replacement, ok := hosted[src]; ok {
			return replacement, true, nil
		}
		for imgPath, replacement := range hosted {
			if path.Base(src) == path.Base(imgPath) {
				return replacement, true, nil
			}
		}
		return "", false, domain.NewError(domain.KindAssetNotHosted, "image %q has no public source_url", src)
	})
}
