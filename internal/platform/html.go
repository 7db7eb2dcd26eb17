package platform

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RewriteImageSources rewrites every <img src> in an HTML fragment using
// resolve. The resolver returns the replacement URL and whether the source
// should be rewritten; returning an error aborts the rewrite (used for
// unhosted assets). Sources the resolver declines are left untouched.
func RewriteImageSources(html string, resolve func(src string) (string, bool, error)) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse content html: %w", err)
	}

	var resolveErr error
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, ok := sel.Attr("src")
		if !ok {
			return true
		}
		replacement, rewrite, err := resolve(src)
		if err != nil {
			resolveErr = err
			return false
		}
		if rewrite {
			sel.SetAttr("src", replacement)
		}
		return true
	})
	if resolveErr != nil {
		return "", resolveErr
	}

	rewritten, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("serialize content html: %w", err)
	}
	return rewritten, nil
}

// IsRemoteURL reports whether an img src already points at a reachable
// remote location.
func IsRemoteURL(src string) bool {
	return strings.HasPrefix(src, "http://") ||
		strings.HasPrefix(src, "https://") ||
		strings.HasPrefix(src, "//")
}
