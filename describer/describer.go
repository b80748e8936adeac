package describer

import "context"

// Prompt is the instruction sent to chat-style vision models. It asks for the
// same kind of short caption a dedicated captioning model produces.
const Prompt = "Write a short one sentence caption for this image. Reply with the caption only."

// Describer captions an image using a specific vision model.
type Describer interface {
	// Name returns the name of the backend, e.g. "llama" or "ollama"
	Name() string

	// DescribeImage returns a short English caption for the provided image.
	// The image data should be the full contents of a JPEG file including the
	// header. At most maxTokens tokens are generated. The provided ctx is used
	// as a parent context for the request to the model server.
	DescribeImage(ctx context.Context, image []byte, maxTokens int) (string, error)

	// IsHealthy returns whether the model server is healthy.
	IsHealthy(ctx context.Context) bool
}
