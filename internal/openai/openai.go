package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/chriskillpack/captioner/describer"

	oagc "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultModel = "gpt-4o-mini"

type openai struct {
	oac   *oagc.Client
	model string
}

var _ describer.Describer = &openai{}

// Init creates an OpenAI backed describer. The API key is read from the
// OPENAI_API_KEY environment variable by the client. baseURL may be empty, or
// point at any server speaking the Chat Completions API.
func Init(model, baseURL string, httpClient *http.Client, opts ...option.RequestOption) *openai {
	if model == "" {
		model = DefaultModel
	}

	reqopts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	if baseURL != "" {
		// Request paths are resolved relative to the base, which needs the
		// trailing slash to keep a path prefix such as /v1.
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		reqopts = append(reqopts, option.WithBaseURL(baseURL))
	}
	reqopts = append(reqopts, opts...)

	return &openai{
		oac:   oagc.NewClient(reqopts...),
		model: model,
	}
}

func (o *openai) Name() string { return "openai" }

func (o *openai) IsHealthy(ctx context.Context) bool {
	_, err := o.oac.Models.Get(ctx, o.model)
	return err == nil
}

func (o *openai) DescribeImage(ctx context.Context, image []byte, maxTokens int) (string, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)

	params := oagc.ChatCompletionNewParams{
		Messages: oagc.F([]oagc.ChatCompletionMessageParamUnion{
			oagc.UserMessageParts(
				oagc.TextPart(describer.Prompt),
				oagc.ImagePart(dataURL),
			),
		}),
		Model:               oagc.F(oagc.ChatModel(o.model)),
		MaxCompletionTokens: oagc.Int(int64(maxTokens)),
	}
	resp, err := o.oac.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
