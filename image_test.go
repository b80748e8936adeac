package captioner

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func TestPreprocess(t *testing.T) {
	t.Run("scales down", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 1000, 500))
		data, err := Preprocess(img, 384)
		if err != nil {
			t.Fatalf("Unexpected error %s", err)
		}
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Unexpected error %s", err)
		}
		if format != "jpeg" {
			t.Errorf("Expected jpeg, got %s", format)
		}
		if cfg.Width != 384 || cfg.Height != 192 {
			t.Errorf("Expected 384x192, got %dx%d", cfg.Width, cfg.Height)
		}
	})

	t.Run("keeps small images", func(t *testing.T) {
		img := image.NewGray(image.Rect(0, 0, 30, 200))
		data, err := Preprocess(img, 384)
		if err != nil {
			t.Fatalf("Unexpected error %s", err)
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Unexpected error %s", err)
		}
		if cfg.Width != 30 || cfg.Height != 200 {
			t.Errorf("Expected 30x200, got %dx%d", cfg.Width, cfg.Height)
		}
	})

	t.Run("flattens transparency onto white", func(t *testing.T) {
		// A fully transparent image with a non-zero origin
		img := image.NewNRGBA(image.Rect(10, 10, 50, 50))
		img.Set(20, 20, color.NRGBA{A: 0})
		data, err := Preprocess(img, 0)
		if err != nil {
			t.Fatalf("Unexpected error %s", err)
		}
		out, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Unexpected error %s", err)
		}
		r, g, b, _ := out.At(5, 5).RGBA()
		if r>>8 < 250 || g>>8 < 250 || b>>8 < 250 {
			t.Errorf("Expected a white pixel, got %d,%d,%d", r>>8, g>>8, b>>8)
		}
	})
}

func TestFitWithin(t *testing.T) {
	for _, tc := range []struct {
		w, h, max int
		ew, eh    int
	}{
		{100, 50, 384, 100, 50},
		{768, 384, 384, 384, 192},
		{384, 768, 384, 192, 384},
		{4000, 1, 384, 384, 1},
		{500, 500, 0, 500, 500},
	} {
		w, h := fitWithin(tc.w, tc.h, tc.max)
		if w != tc.ew || h != tc.eh {
			t.Errorf("fitWithin(%d, %d, %d): Expected %dx%d, got %dx%d", tc.w, tc.h, tc.max, tc.ew, tc.eh, w, h)
		}
	}
}

func TestRawBytesDecodeLimit(t *testing.T) {
	data := pngBytes(t, 40, 30)

	if _, err := RawBytes(data).decode(1200); err != nil {
		t.Errorf("Unexpected error %s", err)
	}
	if _, err := RawBytes(data).decode(0); err != nil {
		t.Errorf("Unexpected error %s", err)
	}
	if _, err := RawBytes(data).decode(1199); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}
	if _, err := RawBytes(hugePNGHeader(t, 50000, 50000)).decode(DefaultMaxPixels); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}
}
