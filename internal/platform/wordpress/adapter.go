package wordpress

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/gopost/publisher/internal/domain"
	"github.com/gopost/publisher/internal/logger"
	"github.com/gopost/publisher/internal/platform"
	"github.com/gopost/publisher/internal/retry"
)

const (
	taxonomyCategories = "categories"
	taxonomyTags       = "tags"

	// WordPress "future" posts take the timestamp in the site's own
	// local timezone, without offset. This is the opposite convention
	// from Blogger, which takes UTC RFC3339.
	siteLocalLayout = "2006-01-02T15:04:05"
)

// ImageSource supplies raw image bytes for a bundle, satisfied by the
// bundle store.
type ImageSource interface {
	ImageBytes(bundleID, imagePath string) ([]byte, error)
}

// Config holds per-site adapter settings.
type Config struct {
	BaseURL     string
	Username    string
	AppPassword string
	// SiteTimezone is the IANA zone the site is configured with, e.g.
	// "Asia/Tokyo". Required for schedule mode.
	SiteTimezone string
	// DisambiguateSlugs enables the bounded 409 recovery: append a
	// numeric suffix to the slug and resubmit once.
	DisambiguateSlugs bool
	// Retry overrides the backoff settings, used by tests.
	Retry retry.Config
}

// Adapter publishes bundles to a single WordPress site. The term cache is
// owned by the adapter instance, one per configured site.
type Adapter struct {
	client            *Client
	cache             *TermCache
	images            ImageSource
	siteTZ            *time.Location
	disambiguateSlugs bool
	retryCfg          retry.Config
	logger            logger.Logger
}

// NewAdapter creates a WordPress adapter for one site.
func NewAdapter(cfg Config, images ImageSource, httpClient *http.Client, log logger.Logger) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: wordpress base_url is required", domain.ErrInvalidRequest)
	}
	siteTZ := time.UTC
	if cfg.SiteTimezone != "" {
		tz, err := time.LoadLocation(cfg.SiteTimezone)
		if err != nil {
			return nil, fmt.Errorf("load site timezone %q: %w", cfg.SiteTimezone, err)
		}
		siteTZ = tz
	}
	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = retry.DefaultConfig()
	}
	return &Adapter{
		client:            NewClient(cfg.BaseURL, cfg.Username, cfg.AppPassword, httpClient, log),
		cache:             NewTermCache(),
		images:            images,
		siteTZ:            siteTZ,
		disambiguateSlugs: cfg.DisambiguateSlugs,
		retryCfg:          retryCfg,
		logger:            log,
	}, nil
}

// Name implements platform.Adapter.
func (a *Adapter) Name() domain.Platform { return domain.PlatformWordPress }

// PublishDraft implements platform.Adapter.
func (a *Adapter) PublishDraft(ctx context.Context, rec platform.Recorder, b *domain.Bundle) (*domain.PlatformPostRef, error) {
	return a.publish(ctx, rec, b, "draft", nil)
}

// PublishNow implements platform.Adapter.
func (a *Adapter) PublishNow(ctx context.Context, rec platform.Recorder, b *domain.Bundle) (*domain.PlatformPostRef, error) {
	return a.publish(ctx, rec, b, "publish", nil)
}

// Schedule implements platform.Adapter. The UTC instant is projected into
// the site's local timezone before submission.
func (a *Adapter) Schedule(ctx context.Context, rec platform.Recorder, b *domain.Bundle, whenUTC time.Time) (*domain.PlatformPostRef, error) {
	return a.publish(ctx, rec, b, "future", &whenUTC)
}

func (a *Adapter) publish(ctx context.Context, rec platform.Recorder, b *domain.Bundle, status string, whenUTC *time.Time) (*domain.PlatformPostRef, error) {
	categoryIDs, err := a.resolveTerms(ctx, rec, taxonomyCategories, b.Taxonomy.Categories)
	if err != nil {
		return nil, err
	}
	tagIDs, err := a.resolveTerms(ctx, rec, taxonomyTags, b.Taxonomy.Tags)
	if err != nil {
		return nil, err
	}

	media, err := a.uploadImages(ctx, rec, b)
	if err != nil {
		return nil, err
	}

	content, err := rewriteToMediaURLs(b.Content, media)
	if err != nil {
		return nil, err
	}

	payload := PostPayload{
		Title:      b.Title,
		Content:    content,
		Status:     status,
		Slug:       b.Slug,
		Excerpt:    b.Excerpt,
		Categories: categoryIDs,
		Tags:       tagIDs,
	}
	if payload.Slug == "" {
		payload.Slug = Slugify(b.Title)
	}
	if featured := b.FeaturedAsset(); featured != nil {
		if m, ok := media[featured.Path]; ok {
			payload.FeaturedMedia = m.ID
		}
	}
	if whenUTC != nil {
		payload.Date = whenUTC.In(a.siteTZ).Format(siteLocalLayout)
	}

	post, err := a.createPost(ctx, rec, payload)
	if err != nil {
		return nil, err
	}

	ref := &domain.PlatformPostRef{
		PlatformID: fmt.Sprintf("%d", post.ID),
		Metadata: map[string]string{
			"status": post.Status,
			"slug":   post.Slug,
		},
	}
	if status != "draft" {
		ref.PublishedURL = post.Link
	}
	return ref, nil
}

// resolveTerms maps taxonomy names to platform ids through the per-site
// cache. Misses list the taxonomy and create the term if absent; both
// round trips are individually retried and ledgered.
func (a *Adapter) resolveTerms(ctx context.Context, rec platform.Recorder, taxonomy string, names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, nil
	}

	ids := make([]int, 0, len(names))
	for _, name := range names {
		id, err := a.cache.Resolve(ctx, taxonomy, name, func(ctx context.Context) (int, error) {
			return a.resolveTermRemote(ctx, rec, taxonomy, name)
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *Adapter) resolveTermRemote(ctx context.Context, rec platform.Recorder, taxonomy, name string) (int, error) {
	terms, err := platform.Call(ctx, a.retryCfg, rec, platform.Classify,
		platform.RequestSummary(http.MethodGet, "/wp-json/wp/v2/"+taxonomy, nil),
		func(ctx context.Context) ([]Term, string, error) {
			return a.client.ListTerms(ctx, taxonomy)
		})
	if err != nil {
		return 0, err
	}

	for _, term := range terms {
		// Term names are case-sensitive and unique per taxonomy.
		if term.Name == name {
			a.cache.Put(taxonomy, term.Name, term.ID)
			return term.ID, nil
		}
	}

	created, err := platform.Call(ctx, a.retryCfg, rec, platform.Classify,
		platform.RequestSummary(http.MethodPost, "/wp-json/wp/v2/"+taxonomy, []byte(name)),
		func(ctx context.Context) (Term, string, error) {
			return a.client.CreateTerm(ctx, taxonomy, name)
		})
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

// uploadImages uploads every bundle image, each as its own retried
// operation, so a transient failure on image 3 of 5 does not force
// re-upload of images 1-2.
func (a *Adapter) uploadImages(ctx context.Context, rec platform.Recorder, b *domain.Bundle) (map[string]Media, error) {
	media := make(map[string]Media, len(b.Images))
	for _, img := range b.Images {
		data, err := a.images.ImageBytes(b.ID, img.Path)
		if err != nil {
			return nil, domain.WrapError(domain.KindValidation, err, "image %s missing from bundle %s", img.Path, b.ID)
		}

		uploaded, err := platform.Call(ctx, a.retryCfg, rec, platform.Classify,
			platform.RequestSummary(http.MethodPost, "/wp-json/wp/v2/media", data),
			func(ctx context.Context) (Media, string, error) {
				return a.client.UploadMedia(ctx, path.Base(img.Path), data)
			})
		if err != nil {
			return nil, err
		}

		if img.Alt != "" || img.Caption != "" {
			mediaPath := fmt.Sprintf("/wp-json/wp/v2/media/%d", uploaded.ID)
			alt, caption := img.Alt, img.Caption
			if _, err := platform.Call(ctx, a.retryCfg, rec, platform.Classify,
				platform.RequestSummary(http.MethodPost, mediaPath, []byte(alt+caption)),
				func(ctx context.Context) (struct{}, string, error) {
					summary, err := a.client.UpdateMedia(ctx, uploaded.ID, alt, caption)
					return struct{}{}, summary, err
				}); err != nil {
				return nil, err
			}
		}

		media[img.Path] = uploaded
	}
	return media, nil
}

// createPost submits the post. On a 409 slug conflict with disambiguation
// enabled, the slug gets a numeric suffix and the post is resubmitted
// exactly once; this bounded retry is deliberate and separate from the
// generic retry engine.
func (a *Adapter) createPost(ctx context.Context, rec platform.Recorder, payload PostPayload) (Post, error) {
	post, err := a.submitPost(ctx, rec, payload)
	if err == nil {
		return post, nil
	}
	if domain.KindOf(err) != domain.KindSlugConflict || !a.disambiguateSlugs {
		return Post{}, err
	}

	retryPayload := payload
	retryPayload.Slug = payload.Slug + "-2"
	a.logger.Warn("slug conflict, retrying with disambiguated slug",
		logger.String("slug", payload.Slug),
		logger.String("retry_slug", retryPayload.Slug))
	return a.submitPost(ctx, rec, retryPayload)
}

func (a *Adapter) submitPost(ctx context.Context, rec platform.Recorder, payload PostPayload) (Post, error) {
	return platform.Call(ctx, a.retryCfg, rec, platform.Classify,
		platform.RequestSummary(http.MethodPost, "/wp-json/wp/v2/posts", []byte(payload.Slug+payload.Title)),
		func(ctx context.Context) (Post, string, error) {
			return a.client.CreatePost(ctx, payload)
		})
}

// rewriteToMediaURLs points local <img src> references at the uploaded
// media URLs. Remote sources are left alone.
func rewriteToMediaURLs(content string, media map[string]Media) (string, error) {
	if len(media) == 0 {
		return content, nil
	}
	return platform.RewriteImageSources(content, func(src string) (string, bool, error) {
		if platform.IsRemoteURL(src) {
			return "", false, nil
		}
		if m, ok := media[src]; ok {
			return m.SourceURL, true, nil
		}
		for imgPath, m := range media {
			if path.Base(src) == path.Base(imgPath) {
				return m.SourceURL, true, nil
			}
		}
		return "", false, nil
	})
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL slug from a post title, used when the bundle
// carries none.
func Slugify(title string) string {
	slug := slugInvalid.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}
