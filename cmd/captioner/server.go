package main

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/chriskillpack/captioner"
	"golang.org/x/sync/errgroup"
)

const (
	maxUploadBytes  = 32 << 20
	shutdownTimeout = 10 * time.Second
)

var (
	//go:embed tmpl/*.html
	tmplFS embed.FS

	indexTmpl *template.Template
)

type Server struct {
	hs     *http.Server
	c      *captioner.Captioner
	logger *log.Logger
}

type indexPage struct {
	URL      string
	Captions template.HTML
	Count    int
	Error    string
	Backend  string
	Searched bool
}

func init() {
	indexTmpl = template.Must(template.ParseFS(tmplFS, "tmpl/index.html"))
}

func NewServer(c *captioner.Captioner, port string, logger *log.Logger) *Server {
	srv := &Server{
		c:      c,
		logger: logger,
	}

	srv.hs = &http.Server{
		Addr:    net.JoinHostPort("0.0.0.0", port),
		Handler: srv.serveHandler(),
	}

	return srv
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.hs.Shutdown(sctx)
	})

	return g.Wait()
}

func (s *Server) serveHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /captions", s.serveCaptions())
	mux.Handle("GET /healthz", s.serveHealth())
	mux.Handle("GET /{$}", s.serveRoot())

	return mux
}

func (s *Server) serveCaptions() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)
		if err := req.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			s.renderIndex(w, http.StatusBadRequest, indexPage{Error: "Could not read the form: " + err.Error()})
			return
		}

		page := indexPage{URL: req.FormValue("url"), Searched: true}

		var upload captioner.RawBytes
		file, _, err := req.FormFile("image")
		switch {
		case err == nil:
			defer file.Close()
			if upload, err = io.ReadAll(file); err != nil {
				page.Error = "Could not read the uploaded image"
				s.renderIndex(w, http.StatusBadRequest, page)
				return
			}
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			// no upload
		default:
			page.Error = "Could not read the uploaded image"
			s.renderIndex(w, http.StatusBadRequest, page)
			return
		}

		s.logger.Printf("captions - url %q, upload %d bytes\n", page.URL, len(upload))
		captions, err := s.c.GenerateCaptions(req.Context(), page.URL, upload)
		if err != nil {
			s.logger.Printf("GenerateCaptions error - %s\n", err)
			page.Error = err.Error()

			status := http.StatusBadGateway
			if errors.Is(err, captioner.ErrNoURL) || errors.Is(err, captioner.ErrUndecodable) {
				status = http.StatusBadRequest
			}
			s.renderIndex(w, status, page)
			return
		}

		page.Captions = captioner.Render(captions)
		page.Count = len(captions)
		s.renderIndex(w, http.StatusOK, page)
	}
}

func (s *Server) serveHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !s.c.IsHealthy(req.Context()) {
			http.Error(w, s.c.Name()+" is not responding", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok\n"))
	}
}

func (s *Server) serveRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		s.renderIndex(w, http.StatusOK, indexPage{})
	}
}

func (s *Server) renderIndex(w http.ResponseWriter, status int, page indexPage) {
	page.Backend = s.c.Name()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTmpl.Execute(w, page); err != nil {
		s.logger.Printf("template error - %s\n", err)
	}
}
