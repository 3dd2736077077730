package render

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/arcanaland/cardwatch/internal/dom"
)

var (
	imagePolicyOnce sync.Once
	imagePolicy     *bluemonday.Policy
)

// SafeImageURL runs the card image URL through the image policy. It reports
// false when the URL is empty or the policy drops it.
func SafeImageURL(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	cleaned := imageSanitizer().Sanitize(`<img src="` + html.EscapeString(trimmed) + `">`)
	doc, err := html.Parse(strings.NewReader(cleaned))
	if err != nil {
		return "", false
	}

	img := dom.FindElement(doc, atom.Img)
	if img == nil {
		return "", false
	}
	src := dom.Attr(img, "src")
	return src, src != ""
}

func imageSanitizer() *bluemonday.Policy {
	imagePolicyOnce.Do(func() {
		policy := bluemonday.NewPolicy()
		policy.AllowStandardURLs()
		policy.AllowImages()
		imagePolicy = policy
	})
	return imagePolicy
}
