package llama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strings"

	"github.com/chriskillpack/captioner/describer"
)

const (
	imagePreamble = `A chat between a curious human and an artificial intelligence assistant. The assistant gives short, accurate answers to the human's questions.
USER:`
	imageSuffix = `
ASSISTANT:`

	imageID = 10
)

type jsonmap map[string]any

// These were lifted from the web inspector for the server UI, with a lower
// temperature.
var defaultparams = jsonmap{
	"n_probs":           0,
	"temperature":       0.2,
	"stop":              []string{"</s>", "USER:", "ASSISTANT:"},
	"repeat_last_n":     256,
	"repeat_penalty":    1.18,
	"top_k":             40,
	"top_p":             0.5,
	"tfs_z":             1,
	"typical_p":         1,
	"presence_penalty":  0,
	"frequency_penalty": 0,
	"mirostat":          0,
	"mirostat_tau":      5,
	"mirostat_eta":      0.1,
	"grammar":           "",
	"slot_id":           -1,
	"cache_prompt":      true,
}

type llama struct {
	srvAddr string
	seed    int

	client *http.Client
}

var _ describer.Describer = &llama{}

func Init(srvAddr string, seed int, httpClient *http.Client) *llama {
	return &llama{
		srvAddr: strings.TrimRight(srvAddr, "/"),
		seed:    seed,
		client:  httpClient,
	}
}

func (l *llama) Name() string { return "llama" }

func (l *llama) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.srvAddr+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (l *llama) DescribeImage(ctx context.Context, image []byte, maxTokens int) (string, error) {
	imb64 := base64.StdEncoding.EncodeToString(image)
	prompt := fmt.Sprintf("%s[img-%d]%s%s", imagePreamble, imageID, describer.Prompt, imageSuffix)
	return l.sendRequest(ctx, prompt, jsonmap{
		"n_predict": maxTokens,
		"image_data": []jsonmap{
			{
				"data": imb64, "id": imageID,
			},
		},
	})
}

func (l *llama) sendRequest(ctx context.Context, prompt string, keys jsonmap) (string, error) {
	data := maps.Clone(defaultparams)
	maps.Copy(data, keys)
	data["prompt"] = prompt
	data["stream"] = false
	data["seed"] = l.seed

	buf := bytes.NewBuffer(make([]byte, 0, 512_000)) // The buffer will be resized by Encode
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(&data)
	if err != nil {
		return "", err
	}
	br := bytes.NewReader(buf.Bytes())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.srvAddr+"/completion", br)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llama server returned %s", resp.Status)
	}

	content := new(bytes.Buffer)
	respbody := struct {
		Content string
		Stop    bool
	}{}

	lr := bufio.NewScanner(resp.Body)
	for !respbody.Stop {
		// Read in one line
		if !lr.Scan() {
			if err := lr.Err(); err != nil {
				return "", err
			}
			return "", fmt.Errorf("response ended before stop")
		}
		line := lr.Text()
		// The empty line appears after a JSON body
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(line))
		if err := dec.Decode(&respbody); err != nil {
			return "", err
		}
		content.WriteString(respbody.Content)
	}

	return strings.TrimSpace(content.String()), nil
}
