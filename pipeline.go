package captioner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/chriskillpack/captioner/internal/scrape"
)

// ErrUndecodable is returned when an uploaded image cannot be decoded.
var ErrUndecodable = errors.New("undecodable image")

// Caption is one captioned image. Source is the image URL, or empty for an
// uploaded image.
type Caption struct {
	Source string
	Text   string
}

func (c Caption) HasSource() bool { return c.Source != "" }

// SkipReason says why a candidate image produced no caption. The empty
// reason means it was captioned.
type SkipReason string

const (
	SkipNone              SkipReason = ""
	SkipNoSrc             SkipReason = "no-src"
	SkipSVG               SkipReason = "svg"
	SkipTrackingPixel     SkipReason = "tracking-pixel"
	SkipUnsupportedScheme SkipReason = "unsupported-scheme"
	SkipDownload          SkipReason = "download"
	SkipDecode            SkipReason = "decode"
	SkipTooSmall          SkipReason = "too-small"
	SkipTooLarge          SkipReason = "too-large"
	SkipCaption           SkipReason = "caption"
)

// Outcome records what happened to one candidate image.
type Outcome struct {
	Src     string // src attribute as it appeared in the page
	URL     string // normalized URL, empty if discarded before download
	Caption string
	Skip    SkipReason
	Err     error // cause of download, decode and caption failures
}

func (o Outcome) OK() bool { return o.Skip == SkipNone }

// Report lists the outcome of every candidate in page order.
type Report struct {
	Outcomes []Outcome
}

// Captions returns the successfully captioned images, in order.
func (r *Report) Captions() []Caption {
	captions := []Caption{}
	for _, o := range r.Outcomes {
		if o.OK() {
			captions = append(captions, Caption{Source: o.URL, Text: o.Caption})
		}
	}
	return captions
}

// ProgressFunc is called after each candidate image has been processed.
type ProgressFunc func(o Outcome, done, total int)

// GenerateCaptions captions the images on the page at pageURL or, when
// pageURL is empty, the uploaded image in. With neither it returns an empty
// slice.
func (c *Captioner) GenerateCaptions(ctx context.Context, pageURL string, in Input) ([]Caption, error) {
	report, err := c.Run(ctx, pageURL, in, nil)
	if err != nil {
		return nil, err
	}
	return report.Captions(), nil
}

// Run is GenerateCaptions with the per-candidate outcomes kept. Failing to
// fetch the page, or to decode or caption an upload, is returned as an error.
// Failures for individual page images are logged and recorded in the report.
func (c *Captioner) Run(ctx context.Context, pageURL string, in Input, progress ProgressFunc) (*Report, error) {
	pageURL, err := NormalizePageURL(pageURL)
	if err != nil {
		return nil, err
	}

	switch {
	case pageURL != "":
		return c.runPage(ctx, pageURL, progress)
	case in != nil && !in.empty():
		return c.runInput(ctx, in)
	}
	return &Report{}, nil
}

func (c *Captioner) runPage(ctx context.Context, pageURL string, progress ProgressFunc) (*Report, error) {
	refs, err := c.scraper.PageImages(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	report := &Report{Outcomes: make([]Outcome, 0, len(refs))}
	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		o := c.processCandidate(ctx, ref)
		if o.Err != nil {
			c.logger.Printf("Error processing image %s: %s - %s\n", o.URL, o.Skip, o.Err)
		}
		report.Outcomes = append(report.Outcomes, o)

		if progress != nil {
			progress(o, i+1, len(refs))
		}
	}
	// A cancel during the last candidate surfaces here rather than as a skip
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return report, nil
}

func (c *Captioner) processCandidate(ctx context.Context, ref scrape.ImageRef) Outcome {
	o := Outcome{Src: ref.Src}
	if !ref.HasSrc {
		o.Skip = SkipNoSrc
		return o
	}

	o.URL, o.Skip = normalizeCandidate(ref.Src)
	if o.Skip != SkipNone {
		return o
	}

	data, err := c.fetchImage(ctx, o.URL)
	if err != nil {
		o.Skip, o.Err = SkipDownload, err
		return o
	}

	raw := RawBytes(data)
	cfg, err := raw.config()
	if err != nil {
		o.Skip, o.Err = SkipDecode, err
		return o
	}
	if cfg.Width*cfg.Height < c.minArea {
		o.Skip = SkipTooSmall
		return o
	}

	img, err := raw.decode(c.maxPixels)
	switch {
	case errors.Is(err, ErrTooLarge):
		o.Skip, o.Err = SkipTooLarge, err
		return o
	case err != nil:
		o.Skip, o.Err = SkipDecode, err
		return o
	}

	o.Caption, err = c.caption(ctx, img)
	if err != nil {
		o.Skip, o.Err = SkipCaption, err
	}
	return o
}

func (c *Captioner) runInput(ctx context.Context, in Input) (*Report, error) {
	img, err := in.decode(c.maxPixels)
	if err != nil {
		return nil, fmt.Errorf("%w - %w", ErrUndecodable, err)
	}

	text, err := c.caption(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("caption image - %w", err)
	}

	return &Report{Outcomes: []Outcome{{Caption: text}}}, nil
}

func (c *Captioner) caption(ctx context.Context, img image.Image) (string, error) {
	jpg, err := Preprocess(img, c.maxDimension)
	if err != nil {
		return "", err
	}
	return c.DescribeImage(ctx, jpg, c.maxTokens)
}

// normalizeCandidate turns an <img> src into an absolute http(s) URL, or
// reports why it was discarded. The "1x1" match is a naming heuristic for
// tracking pixels, images that are actually 1x1 are caught later by the
// minimum area check.
func normalizeCandidate(src string) (string, SkipReason) {
	src = strings.TrimSpace(src)
	switch {
	case strings.Contains(strings.ToLower(src), "svg"):
		return "", SkipSVG
	case strings.Contains(src, "1x1"):
		return "", SkipTrackingPixel
	case strings.HasPrefix(src, "//"):
		return "https:" + src, SkipNone
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return src, SkipNone
	}
	return "", SkipUnsupportedScheme
}
