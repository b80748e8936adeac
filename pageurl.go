package captioner

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/xurls/v2"
)

var ErrNoURL = errors.New("no webpage URL found")

var httpURLRe = xurls.Relaxed()

// NormalizePageURL extracts the webpage URL from free text typed into the URL
// field. The first http(s) URL wins; a bare host such as "example.com/photos"
// gets an https scheme. Blank text yields an empty URL and no error.
func NormalizePageURL(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	strictRe, err := xurls.StrictMatchingScheme(`https?://`)
	if err != nil {
		return "", fmt.Errorf("create regexp - %w", err)
	}
	if u := strictRe.FindString(text); u != "" {
		return u, nil
	}

	u := httpURLRe.FindString(text)
	if u == "" || strings.Contains(u, "://") {
		return "", fmt.Errorf("%w in %q", ErrNoURL, text)
	}
	return "https://" + u, nil
}
