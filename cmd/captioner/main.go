package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/chriskillpack/captioner"
	"github.com/schollz/progressbar/v3"
)

// config is read from the environment first, flags override.
type config struct {
	LlamaServer   string        `env:"CAPTIONER_LLAMA"`
	LlamaSeed     int           `env:"CAPTIONER_LLAMA_SEED"      envDefault:"385480504"`
	OllamaServer  string        `env:"CAPTIONER_OLLAMA"`
	OllamaModel   string        `env:"CAPTIONER_OLLAMA_MODEL"    envDefault:"llava"`
	OpenAI        bool          `env:"CAPTIONER_OPENAI"`
	OpenAIModel   string        `env:"CAPTIONER_OPENAI_MODEL"    envDefault:"gpt-4o-mini"`
	OpenAIBaseURL string        `env:"CAPTIONER_OPENAI_BASE_URL"`
	Port          string        `env:"PORT"                      envDefault:"8080"`
	HTTPTimeout   time.Duration `env:"CAPTIONER_HTTP_TIMEOUT"    envDefault:"30s"`

	// One-shot mode
	URL       string
	ImagePath string
	HTML      bool
}

var lameduck bool

func parseConfig(args []string, environ map[string]string) (config, error) {
	var cfg config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet("captioner", flag.ContinueOnError)
	fs.StringVar(&cfg.LlamaServer, "llama", cfg.LlamaServer, "Address of running llama server, typically http://localhost:8080")
	fs.IntVar(&cfg.LlamaSeed, "seed", cfg.LlamaSeed, "Random seed to llama")
	fs.StringVar(&cfg.OllamaServer, "ollama", cfg.OllamaServer, "Address of running ollama server, typically http://localhost:11434")
	fs.StringVar(&cfg.OllamaModel, "ollama-model", cfg.OllamaModel, "Vision model to use with ollama")
	fs.BoolVar(&cfg.OpenAI, "openai", cfg.OpenAI, "Use OpenAI, reads OPENAI_API_KEY")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", cfg.OpenAIModel, "OpenAI chat model with vision support")
	fs.StringVar(&cfg.OpenAIBaseURL, "openai-base-url", cfg.OpenAIBaseURL, "Base URL of an OpenAI compatible API")
	fs.StringVar(&cfg.Port, "port", cfg.Port, "Port for the web server")
	fs.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "Timeout for each outbound HTTP request")
	fs.StringVar(&cfg.URL, "url", "", "Caption the images on this webpage and exit")
	fs.StringVar(&cfg.ImagePath, "image", "", "Caption this image file and exit")
	fs.BoolVar(&cfg.HTML, "html", false, "Print one-shot results as HTML")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// captionOnce runs the pipeline a single time and prints the results to w. A
// progress bar over the page's images is drawn on stderr.
func captionOnce(ctx context.Context, c *captioner.Captioner, cfg config, w io.Writer) error {
	var in captioner.Input
	if cfg.ImagePath != "" {
		data, err := os.ReadFile(cfg.ImagePath)
		if err != nil {
			return err
		}
		in = captioner.RawBytes(data)
	}

	var bar *progressbar.ProgressBar
	report, err := c.Run(ctx, cfg.URL, in, func(_ captioner.Outcome, done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(
				total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("Captioning images"),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionShowCount(),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
			)
		}
		bar.Add(1)
	})
	if err != nil {
		return err
	}

	captions := report.Captions()
	if cfg.HTML {
		return captioner.RenderTo(w, captions)
	}

	if cfg.URL != "" {
		fmt.Fprintf(w, "%d of %d images captioned\n", len(captions), len(report.Outcomes))
	}
	for _, capt := range captions {
		if capt.HasSource() {
			fmt.Fprintf(w, "%s\n  %s\n", capt.Source, capt.Text)
		} else {
			fmt.Fprintln(w, capt.Text)
		}
	}
	return nil
}

func run(ctx context.Context, c *captioner.Captioner, cfg config) error {
	// Everything needs the model server. Check if it is healthy.
	if !c.IsHealthy(ctx) {
		return fmt.Errorf("%s server is not responding", c.Name())
	}

	if cfg.URL != "" || cfg.ImagePath != "" {
		return captionOnce(ctx, c, cfg, os.Stdout)
	}

	srv := NewServer(c, cfg.Port, log.Default())
	log.Printf("Listening on port %s, captioning with %s\n", cfg.Port, c.Name())
	return srv.Run(ctx)
}

func sighandler(ch chan os.Signal, cancel context.CancelFunc) {
	for {
		<-ch
		if lameduck {
			// Already in lame duck, hard stop
			fmt.Println("Exiting")
			os.Exit(1)
		}
		fmt.Println("SIGINT received, stopping...")
		lameduck = true
		cancel()
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:], env.ToMap(os.Environ()))
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatal(err)
	}

	cio := captioner.InitOptions{
		LlamaServer:   cfg.LlamaServer,
		LlamaSeed:     cfg.LlamaSeed,
		OllamaServer:  cfg.OllamaServer,
		OllamaModel:   cfg.OllamaModel,
		OpenAI:        cfg.OpenAI,
		OpenAIModel:   cfg.OpenAIModel,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		HttpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}
	c, err := captioner.Init(cio)
	if err != nil {
		log.Fatal(err)
	}

	sigch := make(chan os.Signal, 2)
	signal.Notify(sigch, os.Interrupt)

	ctx, cancel := context.WithCancel(context.Background())
	go sighandler(sigch, cancel)

	if err := run(ctx, c, cfg); err != nil {
		log.Fatal(err)
	}
}
