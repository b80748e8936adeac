package captioner

import (
	_ "embed"
	"html/template"
	"io"
	"strings"
)

//go:embed tmpl/captions.html
var captionsHTML string

var captionsTmpl = template.Must(template.New("captions").Parse(captionsHTML))

// RenderTo writes one paragraph per caption to w, in order. Captions with a
// source show the image above the text.
func RenderTo(w io.Writer, captions []Caption) error {
	return captionsTmpl.Execute(w, captions)
}

// Render returns the RenderTo output as a string of trusted HTML.
func Render(captions []Caption) template.HTML {
	var sb strings.Builder
	RenderTo(&sb, captions) // writes to a strings.Builder do not fail
	return template.HTML(sb.String())
}
