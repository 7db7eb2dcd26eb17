// Package domain contains the core domain models for the publishing service.
package domain

import "time"

// PublishMode selects how a bundle is delivered to a platform.
type PublishMode string

const (
	ModeDraft    PublishMode = "draft"
	ModePublish  PublishMode = "publish"
	ModeSchedule PublishMode = "schedule"
)

// Valid reports whether the mode is one of the supported publish modes.
func (m PublishMode) Valid() bool {
	switch m {
	case ModeDraft, ModePublish, ModeSchedule:
		return true
	default:
		return false
	}
}

// ScheduleRequest is the publish timing carried inside a bundle or a
// publish request. Datetime is an RFC3339 timestamp with an explicit UTC
// offset and is required when Mode is ModeSchedule.
type ScheduleRequest struct {
	Mode     PublishMode `json:"mode"`
	Datetime string      `json:"datetime,omitempty"`
}

// Taxonomy holds the three independent term namespaces. Categories and
// tags are WordPress-oriented, labels are Blogger-oriented. They are never
// auto-mapped between platforms.
type Taxonomy struct {
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`
	Labels     []string `json:"labels"`
}

// ImageAsset describes one image referenced by the bundle HTML.
type ImageAsset struct {
	Path                string `json:"path"`
	Alt                 string `json:"alt,omitempty"`
	Caption             string `json:"caption,omitempty"`
	SourceURL           string `json:"source_url,omitempty"`
	License             string `json:"license,omitempty"`
	AttributionRequired bool   `json:"attribution_required,omitempty"`
	UseAsFeatured       bool   `json:"use_as_featured,omitempty"`
}

// Bundle is the immutable unit of publishable content. It is created once
// by the packaging step and never mutated; republishing reads the same
// bundle again.
type Bundle struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Slug          string          `json:"slug,omitempty"`
	Excerpt       string          `json:"excerpt,omitempty"`
	Content       string          `json:"-"`
	Taxonomy      Taxonomy        `json:"taxonomy"`
	Schedule      ScheduleRequest `json:"schedule_request"`
	FeaturedImage string          `json:"featured_image,omitempty"`
	Images        []ImageAsset    `json:"images"`
	CreatedAt     time.Time       `json:"created_at"`
}

// FeaturedAsset returns the image marked use_as_featured, or nil.
func (b *Bundle) FeaturedAsset() *ImageAsset {
	for i := range b.Images {
		if b.Images[i].UseAsFeatured {
			return &b.Images[i]
		}
	}
	return nil
}

// Image returns the asset with the given bundle-relative path, or nil.
func (b *Bundle) Image(path string) *ImageAsset {
	for i := range b.Images {
		if b.Images[i].Path == path {
			return &b.Images[i]
		}
	}
	return nil
}
