package captioner

import (
	"cmp"
	"errors"
	"log"
	"net/http"

	"github.com/chriskillpack/captioner/describer"
	"github.com/chriskillpack/captioner/internal/llama"
	"github.com/chriskillpack/captioner/internal/ollama"
	"github.com/chriskillpack/captioner/internal/openai"
	"github.com/chriskillpack/captioner/internal/scrape"
)

const (
	DefaultMaxTokens     = 50
	DefaultMinArea       = 400
	DefaultMaxDimension  = 384 // input size of the BLIP base processor
	DefaultMaxImageBytes = 20 << 20
	DefaultMaxPixels     = 40_000_000
	DefaultOllamaModel   = "llava"
	DefaultUserAgent     = "captioner/1.0 (+https://github.com/chriskillpack/captioner)"
)

var (
	ErrNoBackend        = errors.New("no backend selected")
	ErrMultipleBackends = errors.New("multiple backends selected, only one allowed")
)

type InitOptions struct {
	LlamaServer string
	LlamaSeed   int

	OllamaServer string
	OllamaModel  string // defaults to DefaultOllamaModel

	OpenAI        bool
	OpenAIModel   string
	OpenAIBaseURL string

	// Describer, if set, is used as the backend and the options above must
	// be left empty.
	Describer describer.Describer

	HttpClient *http.Client // if nil uses http.DefaultClient
	Logger     *log.Logger  // if nil uses log.Default()
	UserAgent  string       // if empty uses DefaultUserAgent

	// Zero values select the Default* constants.
	MaxTokens     int
	MinArea       int
	MaxDimension  int
	MaxImageBytes int64
	MaxPixels     int
}

// Captioner owns a single describer backend and runs the caption pipeline
// against it. It holds no per-request state and is safe for concurrent use
// as long as the backend and HTTP client are.
type Captioner struct {
	describer.Describer

	client  *http.Client
	scraper *scrape.Scraper
	logger  *log.Logger

	userAgent     string
	maxTokens     int
	minArea       int
	maxDimension  int
	maxImageBytes int64
	maxPixels     int
}

func Init(cio InitOptions) (*Captioner, error) {
	httpClient := cio.HttpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	var n int
	if cio.OpenAI {
		n++
	}
	if cio.LlamaServer != "" {
		n++
	}
	if cio.OllamaServer != "" {
		n++
	}
	if cio.Describer != nil {
		n++
	}
	switch n {
	case 0:
		return nil, ErrNoBackend
	case 1:
		// no-op
	default:
		return nil, ErrMultipleBackends
	}

	c := &Captioner{
		client:        httpClient,
		logger:        cmp.Or(cio.Logger, log.Default()),
		userAgent:     cmp.Or(cio.UserAgent, DefaultUserAgent),
		maxTokens:     cmp.Or(cio.MaxTokens, DefaultMaxTokens),
		minArea:       cmp.Or(cio.MinArea, DefaultMinArea),
		maxDimension:  cmp.Or(cio.MaxDimension, DefaultMaxDimension),
		maxImageBytes: cmp.Or(cio.MaxImageBytes, DefaultMaxImageBytes),
		maxPixels:     cmp.Or(cio.MaxPixels, DefaultMaxPixels),
	}
	c.scraper = scrape.New(httpClient, c.userAgent)

	switch {
	case cio.Describer != nil:
		c.Describer = cio.Describer
	case cio.OpenAI:
		c.Describer = openai.Init(cio.OpenAIModel, cio.OpenAIBaseURL, httpClient)
	case cio.LlamaServer != "":
		c.Describer = llama.Init(cio.LlamaServer, cio.LlamaSeed, httpClient)
	case cio.OllamaServer != "":
		c.Describer = ollama.Init(cmp.Or(cio.OllamaModel, DefaultOllamaModel), cio.OllamaServer, httpClient)
	}

	return c, nil
}
