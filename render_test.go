package captioner

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	out := string(Render([]Caption{
		{Source: "http://x.jpg", Text: "a dog"},
		{Text: "a cat"},
	}))

	if expected, actual := 1, strings.Count(out, "<img"); expected != actual {
		t.Errorf("Expected %d img tags, got %d in %q", expected, actual, out)
	}
	img, dog, cat := strings.Index(out, "<img src='http://x.jpg'"), strings.Index(out, "a dog"), strings.Index(out, "a cat")
	if img < 0 || dog < 0 || cat < 0 {
		t.Fatalf("Expected image and both captions, got %q", out)
	}
	if !(img < dog && dog < cat) {
		t.Errorf("Expected image, then dog, then cat, got %q", out)
	}
	if expected, actual := 2, strings.Count(out, "<p>"); expected != actual {
		t.Errorf("Expected %d paragraphs, got %d", expected, actual)
	}
}

func TestRenderEscapes(t *testing.T) {
	out := string(Render([]Caption{
		{Source: "javascript:alert(1)", Text: "<script>alert(1)</script>"},
	}))

	if strings.Contains(out, "<script>") {
		t.Errorf("Expected caption to be escaped, got %q", out)
	}
	if strings.Contains(out, "javascript:") {
		t.Errorf("Expected unsafe URL to be filtered, got %q", out)
	}
}

func TestRenderEmpty(t *testing.T) {
	if out := Render(nil); out != "" {
		t.Errorf("Expected empty output, got %q", out)
	}
}
