package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopost/publisher/internal/domain"
)

func TestRewriteImageSources(t *testing.T) {
	html := `<p>intro</p><img src="images/cat.jpg" alt="cat"><img src="https://cdn.example.com/dog.jpg">`

	out, err := RewriteImageSources(html, func(src string) (string, bool, error) {
		if IsRemoteURL(src) {
			return "", false, nil
		}
		return "https://site.example.com/media/cat.jpg", true, nil
	})
	require.NoError(t, err)
	assert.Contains(t, out, `src="https://site.example.com/media/cat.jpg"`)
	assert.Contains(t, out, `src="https://cdn.example.com/dog.jpg"`)
	assert.Contains(t, out, "<p>intro</p>")
}

func TestRewriteImageSourcesResolverError(t *testing.T) {
	html := `<img src="images/a.jpg"><img src="images/b.jpg">`

	_, err := RewriteImageSources(html, func(src string) (string, bool, error) {
		return "", false, domain.NewError(domain.KindAssetNotHosted, "image %q has no public source_url", src)
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindAssetNotHosted, domain.KindOf(err))
}

func TestIsRemoteURL(t *testing.T) {
	assert.True(t, IsRemoteURL("https://example.com/a.jpg"))
	assert.True(t, IsRemoteURL("http://example.com/a.jpg"))
	assert.True(t, IsRemoteURL("//cdn.example.com/a.jpg"))
	assert.False(t, IsRemoteURL("images/a.jpg"))
	assert.False(t, IsRemoteURL("/images/a.jpg"))
}
