package captioner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrTooLarge is returned for an image whose header claims more pixels than
// the configured limit. Such images are never fully decoded.
var ErrTooLarge = errors.New("image too large")

// Input is an uploaded image, either already decoded or as the raw bytes of
// an image file. A nil Input means no upload.
type Input interface {
	decode(maxPixels int) (image.Image, error)
	empty() bool
}

// Decoded is an image that has already been decoded by the caller.
type Decoded struct {
	Image image.Image
}

// RawBytes is the encoded contents of an image file (JPEG, PNG, GIF, WebP,
// BMP or TIFF).
type RawBytes []byte

func (d Decoded) decode(_ int) (image.Image, error) { return d.Image, nil }
func (d Decoded) empty() bool                       { return d.Image == nil }

func (r RawBytes) config() (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(r))
	return cfg, err
}

// decode reads the header first and refuses images over maxPixels before
// allocating the full pixel buffer. maxPixels <= 0 disables the check.
func (r RawBytes) decode(maxPixels int) (image.Image, error) {
	cfg, err := r.config()
	if err != nil {
		return nil, err
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w - %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(r))
	return img, err
}
func (r RawBytes) empty() bool { return len(r) == 0 }

// Preprocess turns img into what the describer backends consume: a 3-channel
// JPEG. Transparent areas are flattened onto white and the image is scaled
// down, preserving aspect ratio, so neither side exceeds maxDim. maxDim <= 0
// disables scaling.
func Preprocess(img image.Image, maxDim int) ([]byte, error) {
	b := img.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fitWithin(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		return maxDim, max(1, h*maxDim/w)
	}
	return max(1, w*maxDim/h), maxDim
}

// fetchImage downloads the image at url, refusing bodies larger than
// c.maxImageBytes.
func (c *Captioner) fetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", c.maxImageBytes)
	}

	return data, nil
}
