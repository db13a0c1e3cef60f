package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"beatbrowser/internal/browser"
	"beatbrowser/internal/catalog"
	"beatbrowser/internal/config"
	"beatbrowser/internal/database"
	"beatbrowser/internal/eventloop"
	"beatbrowser/internal/metadata"
	"beatbrowser/internal/player"
	"beatbrowser/internal/session"
	"beatbrowser/internal/source"
	"beatbrowser/internal/waveform"
	"beatbrowser/pkg/models"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Deps are the components a Server drives. Database may be nil when peaks
// are not persisted.
type Deps struct {
	Config    *config.Config
	Loop      *eventloop.Loop
	Engine    *player.Engine
	Cache     *waveform.Cache
	Browser   *browser.Browser
	Sources   *source.Router
	Extractor *metadata.Extractor
	Database  *database.Database
	Logger    *logrus.Logger
}

// Server exposes the track browser over HTTP and WebSocket. Every browser
// call is marshalled onto the event loop.
type Server struct {
	config    *config.Config
	loop      *eventloop.Loop
	engine    *player.Engine
	cache     *waveform.Cache
	browser   *browser.Browser
	sources   *source.Router
	extractor *metadata.Extractor
	db        *database.Database
	sessions  *session.Manager
	logger    *logrus.Logger
	router    *mux.Router

	catalogMutex sync.RWMutex
	catalog      []models.Track
	filter       catalog.Filter

	closing   chan struct{} // closed on shutdown, ends WebSocket sessions
	closeOnce sync.Once
}

// New creates a server and registers its routes
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}

	s := &Server{
		config:    deps.Config,
		loop:      deps.Loop,
		engine:    deps.Engine,
		cache:     deps.Cache,
		browser:   deps.Browser,
		sources:   deps.Sources,
		extractor: deps.Extractor,
		db:        deps.Database,
		sessions:  session.NewManager(2 * time.Minute),
		logger:    logger,
		closing:   make(chan struct{}),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware, s.panicRecoveryMiddleware, s.requestLoggingMiddleware, s.corsMiddleware)

	r.HandleFunc("/health", s.handleHealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/stream/{id}", s.handleStreamTrack).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/config", s.handleGetConfig).Methods(http.MethodGet)
	api.HandleFunc("/tracks", s.handleGetTracks).Methods(http.MethodGet)
	api.HandleFunc("/filter", s.handleSetFilter).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/state", s.handleGetState).Methods(http.MethodGet)
	api.HandleFunc("/clients", s.handleGetClients).Methods(http.MethodGet)
	api.HandleFunc("/rows/{id}", s.handleGetRow).Methods(http.MethodGet)
	api.HandleFunc("/rows/{id}/toggle", s.handleToggle).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/rows/{id}/seek", s.handleSeek).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/rows/{id}/pointer", s.handlePointer).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/rows/{id}/visible", s.handleVisible).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/waveforms/{id}", s.handleGetWaveform).Methods(http.MethodGet)

	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(s.config.Server.StaticDir))))
	r.HandleFunc("/", s.handleHome).Methods(http.MethodGet)

	s.router = r
}

// SetCatalog replaces the full track list and re-renders the rows through the
// current filter
func (s *Server) SetCatalog(ctx context.Context, tracks []models.Track) error {
	s.catalogMutex.Lock()
	s.catalog = tracks
	filter := s.filter
	s.catalogMutex.Unlock()

	visible := filter.Apply(tracks)
	return s.loop.Call(ctx, func() { s.browser.SetTracks(visible) })
}

// catalogState returns the full catalog and active filter
func (s *Server) catalogState() ([]models.Track, catalog.Filter) {
	s.catalogMutex.RLock()
	defer s.catalogMutex.RUnlock()
	return s.catalog, s.filter
}

// Run drives the event loop, the engine clock, the catalog watcher and the
// HTTP listener until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.loop.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.engine.Run(ctx, s.config.TickInterval())
	}()

	if s.config.Catalog.WatchForChanges {
		watcher := catalog.NewWatcher(s.config.Catalog.Path, 0, func(tracks []models.Track) {
			if err := s.SetCatalog(ctx, tracks); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.WithError(err).Warn("Failed to apply reloaded catalog")
			}
		}, s.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Run(ctx); err != nil {
				s.logger.WithError(err).Warn("Catalog watcher stopped")
			}
		}()
	}

	httpServer := &http.Server{
		Addr:        s.config.GetAddress(),
		Handler:     s.router,
		ReadTimeout: time.Duration(s.config.Server.ReadTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("address", fmt.Sprintf("http://%s", s.config.GetAddress())).Info("Beat browser listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	s.logger.Info("Shutting down beat browser...")
	s.closeOnce.Do(func() { close(s.closing) })
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.WithError(err).Warn("HTTP shutdown incomplete")
	}

	cancel()
	wg.Wait()
	s.cache.Close()
	s.logger.Info("Beat browser shutdown complete")
	return serveErr
}
