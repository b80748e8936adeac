// Package scrape retrieves webpages and lists the images they reference.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

// ImageRef is one <img> element found on a page. HasSrc is false when the
// element carries no src attribute at all.
type ImageRef struct {
	Src    string
	HasSrc bool
}

type Scraper struct {
	client    *http.Client
	userAgent string
}

func New(client *http.Client, userAgent string) *Scraper {
	return &Scraper{client: client, userAgent: userAgent}
}

// PageImages fetches the page at pageURL and returns every <img> element in
// document order. A transport error or a non-2xx status is returned as an
// error.
func (s *Scraper) PageImages(ctx context.Context, pageURL string) ([]ImageRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request - %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page - %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch page - unexpected status %s", resp.Status)
	}

	return ImageRefs(resp.Body)
}

// ImageRefs parses HTML from r and returns its <img> elements.
func ImageRefs(r io.Reader) ([]ImageRef, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page - %w", err)
	}

	var refs []ImageRef
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		refs = append(refs, ImageRef{Src: src, HasSrc: ok})
	})

	return refs, nil
}
