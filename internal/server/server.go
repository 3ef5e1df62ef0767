// Package server exposes the article cache over HTTP: a small JSON API
// under /wiki-entries/ and a server-rendered web UI.
package server

import (
	"context"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"wikicache/internal/model"
	"wikicache/internal/store"
	"wikicache/internal/wiki"

	"github.com/gorilla/mux"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Service is the slice of wiki.Service the handlers use.
type Service interface {
	GetArticle(ctx context.Context, title string, force bool) (*wiki.Result, error)
	Articles(ctx context.Context, opts store.ListOptions) ([]model.ArticleSummary, error)
	Article(ctx context.Context, id uint) (*model.Article, error)
	Recent(ctx context.Context, limit int) ([]string, error)
}

type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PageSize     int
}

type Server struct {
	svc      Service
	opts     Options
	logger   *zap.Logger
	router   *mux.Router
	server   *http.Server
	pages    map[string]*template.Template
	markdown goldmark.Markdown
	flash    *flashStore
}

func New(svc Service, opts Options, logger *zap.Logger) (*Server, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 60 * time.Second
	}

	pages := make(map[string]*template.Template)
	for _, page := range []string{"index", "view"} {
		tmpl, err := template.New(page).Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+page+".html")
		if err != nil {
			return nil, err
		}
		pages[page] = tmpl
	}

	s := &Server{
		svc:      svc,
		opts:     opts,
		logger:   logger,
		router:   mux.NewRouter(),
		pages:    pages,
		markdown: goldmark.New(),
		flash:    newFlashStore(),
	}
	s.routes()
	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s, nil
}

func (s *Server) routes() {
	s.router.Use(s.requestLog)

	static, _ := fs.Sub(staticFS, "static")
	s.router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	api := s.router.PathPrefix("/wiki-entries").Subrouter()
	api.HandleFunc("", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/fetch", s.handleFetch).Methods(http.MethodPost)
	api.HandleFunc("/fetch/", s.handleFetch).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}", s.handleGet).Methods(http.MethodGet)

	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/fetch", s.handleFetchForm).Methods(http.MethodPost)
	s.router.HandleFunc("/view/{id:[0-9]+}", s.handleView).Methods(http.MethodGet)

	// mux skips middleware for unmatched routes
	notFound := s.requestLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	}))
	notAllowed := s.requestLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}))
	for _, r := range []*mux.Router{s.router, api} {
		r.NotFoundHandler = notFound
		r.MethodNotAllowedHandler = notAllowed
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("Web server listening", zap.String("addr", s.opts.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
