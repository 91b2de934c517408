package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/hangar/pkg/domain/interfaces"
)

// config holds internal HTTP server configuration
type config struct {
	addr        string
	downloadDir string
	keepAlive   time.Duration
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithDownloadDir sets the destination used when a download request has none
func WithDownloadDir(dir string) Option {
	return func(c *config) {
		c.downloadDir = dir
	}
}

// WithKeepAlive sets the interval of comment lines on the event stream
func WithKeepAlive(interval time.Duration) Option {
	return func(c *config) {
		c.keepAlive = interval
	}
}

// UseCases bundles the use cases served by the HTTP API
type UseCases struct {
	Catalog  interfaces.CatalogUseCase
	Download interfaces.DownloadUseCase
	Archive  interfaces.ArchiveUseCase
	Events   interfaces.EventSubscriber
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates a new HTTP server
func NewServer(
	ctx context.Context,
	uc UseCases,
	opts ...Option,
) (*Server, error) {
	// Default configuration
	cfg := &config{
		addr:      "localhost:8080",
		keepAlive: 15 * time.Second,
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	// Shutdown does not cancel request contexts; long-lived streams watch this instead
	closing := make(chan struct{})
	var closeOnce sync.Once

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	// Health check
	router.Get("/health", newHealthHandler(uc.Download))

	router.Route("/api", func(r chi.Router) {
		if uc.Catalog != nil {
			catalog := &catalogHandler{uc: uc.Catalog}
			r.Get("/catalog", catalog.list)
			r.Get("/catalog/{category}", catalog.get)
			r.Post("/catalog/{category}/refresh", catalog.refresh)
		}

		if uc.Download != nil {
			downloads := &downloadHandler{uc: uc.Download, defaultDir: cfg.downloadDir}
			r.Post("/downloads", downloads.start)
			r.Get("/downloads", downloads.list)
			r.Get("/downloads/{id}", downloads.get)
			r.Delete("/downloads/{id}", downloads.acknowledge)
		}

		if uc.Archive != nil {
			r.Post("/extract", (&extractHandler{uc: uc.Archive}).extract)
		}

		if uc.Events != nil {
			r.Get("/events", (&eventHandler{events: uc.Events, keepAlive: cfg.keepAlive, closing: closing}).stream)
		}
	})

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}
	server.RegisterOnShutdown(func() {
		closeOnce.Do(func() { close(closing) })
	})

	return server, nil
}
