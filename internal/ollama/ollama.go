package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/chriskillpack/captioner/describer"
)

type ollama struct {
	model   string
	srvAddr string

	client *http.Client
}

var _ describer.Describer = &ollama{}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

func Init(model, srvAddr string, httpClient *http.Client) *ollama {
	return &ollama{
		model:   model,
		srvAddr: strings.TrimRight(srvAddr, "/"),
		client:  httpClient,
	}
}

func (o *ollama) Name() string { return "ollama" }

// IsHealthy checks the root endpoint, which answers "Ollama is running".
func (o *ollama) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.srvAddr, nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (o *ollama) DescribeImage(ctx context.Context, image []byte, maxTokens int) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  o.model,
		Prompt: describer.Prompt,
		Images: []string{base64.StdEncoding.EncodeToString(image)},
		Stream: false,
		Options: map[string]any{
			"num_predict": maxTokens,
			"temperature": 0.2,
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.srvAddr+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var gr generateResponse
	if resp.StatusCode != http.StatusOK {
		// Ollama reports errors as JSON, proxies in front of it may not
		if json.NewDecoder(resp.Body).Decode(&gr) == nil && gr.Error != "" {
			return "", fmt.Errorf("ollama returned %s - %s", resp.Status, gr.Error)
		}
		return "", fmt.Errorf("ollama returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("decoding ollama response - %w", err)
	}
	if gr.Error != "" {
		return "", fmt.Errorf("ollama error - %s", gr.Error)
	}

	return strings.TrimSpace(gr.Response), nil
}
