package bundle

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gopost/publisher/internal/domain"
)

// Violation is one validation failure, structured so the API layer can
// surface per-field errors rather than a single opaque message.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// windowsDrivePattern matches paths like C:\images\photo.png.
var windowsDrivePattern = regexp.MustCompile(`^[A-Za-z]:[\\/]`)

// Validate checks a bundle against every submission rule and returns the
// full list of violations. An empty slice means the bundle may be
// submitted for publishing.
func Validate(b *domain.Bundle) []Violation {
	var violations []Violation

	if strings.TrimSpace(b.Title) == "" {
		violations = append(violations, Violation{
			Field:   "title",
			Rule:    "required",
			Message: "title must not be empty",
		})
	}

	if strings.TrimSpace(b.Content) == "" {
		violations = append(violations, Violation{
			Field:   "content",
			Rule:    "required",
			Message: "content must not be empty",
		})
	} else {
		violations = append(violations, validateImageSources(b.Content)...)
	}

	violations = append(violations, validateSchedule(b.Schedule)...)
	violations = append(violations, validateImages(b)...)

	return violations
}

// validateImageSources rejects <img> tags whose src is an absolute local
// filesystem path. Relative bundle paths and remote URLs are allowed; the
// adapters resolve them at publish time.
func validateImageSources(content string) []Violation {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return []Violation{{
			Field:   "content",
			Rule:    "html",
			Message: fmt.Sprintf("content is not parseable HTML: %v", err),
		}}
	}

	var violations []Violation
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok {
			return
		}
		if isLocalAbsolutePath(src) {
			violations = append(violations, Violation{
				Field:   "content",
				Rule:    "img_src",
				Message: fmt.Sprintf("img src %q is an unresolved local filesystem path", src),
			})
		}
	})
	return violations
}

func isLocalAbsolutePath(src string) bool {
	if strings.HasPrefix(src, "file://") {
		return true
	}
	// "//host/path" is protocol-relative, not a local path.
	if strings.HasPrefix(src, "/") && !strings.HasPrefix(src, "//") {
		return true
	}
	return windowsDrivePattern.MatchString(src)
}

func validateSchedule(req domain.ScheduleRequest) []Violation {
	if !req.Mode.Valid() {
		return []Violation{{
			Field:   "schedule_request.mode",
			Rule:    "enum",
			Message: fmt.Sprintf("mode %q must be one of draft, publish, schedule", req.Mode),
		}}
	}
	if req.Mode != domain.ModeSchedule {
		return nil
	}
	if req.Datetime == "" {
		return []Violation{{
			Field:   "schedule_request.datetime",
			Rule:    "required",
			Message: "datetime is required when mode is schedule",
		}}
	}
	if _, err := time.Parse(time.RFC3339, req.Datetime); err != nil {
		return []Violation{{
			Field:   "schedule_request.datetime",
			Rule:    "format",
			Message: fmt.Sprintf("datetime %q must be RFC3339 with an explicit UTC offset", req.Datetime),
		}}
	}
	return nil
}

func validateImages(b *domain.Bundle) []Violation {
	var violations []Violation

	featured := 0
	for _, img := range b.Images {
		if img.UseAsFeatured {
			featured++
		}
	}
	if featured > 1 {
		violations = append(violations, Violation{
			Field:   "images",
			Rule:    "single_featured",
			Message: fmt.Sprintf("%d images marked use_as_featured, at most one allowed", featured),
		})
	}

	if b.FeaturedImage != "" {
		asset := b.Image(b.FeaturedImage)
		if asset == nil {
			violations = append(violations, Violation{
				Field:   "featured_image",
				Rule:    "exists",
				Message: fmt.Sprintf("featured_image %q is not in the images list", b.FeaturedImage),
			})
		} else if featured == 1 && !asset.UseAsFeatured {
			violations = append(violations, Violation{
				Field:   "featured_image",
				Rule:    "consistent",
				Message: "featured_image must match the image marked use_as_featured",
			})
		}
	}

	return violations
}
