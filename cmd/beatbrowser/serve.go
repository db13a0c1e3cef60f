package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"beatbrowser/internal/audio"
	"beatbrowser/internal/browser"
	"beatbrowser/internal/cache"
	"beatbrowser/internal/catalog"
	"beatbrowser/internal/config"
	"beatbrowser/internal/database"
	"beatbrowser/internal/eventloop"
	"beatbrowser/internal/logging"
	"beatbrowser/internal/metadata"
	"beatbrowser/internal/player"
	"beatbrowser/internal/server"
	"beatbrowser/internal/source"
	"beatbrowser/internal/waveform"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// app holds the components shared by every command
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	logCloser io.Closer
	db        *database.Database
	sources   *source.Router
	extractor *metadata.Extractor
}

// newApp loads configuration and builds the logger, the optional peak store
// and the source router
func newApp(ctx context.Context, withDatabase bool) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("error configuring logging: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, logCloser: closer}

	if withDatabase {
		db, err := database.NewDatabase(cfg.Database.Path, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("error initializing database: %w", err)
		}
		a.db = db
	}

	timeout := time.Duration(cfg.Source.TimeoutSeconds) * time.Second
	files := source.NewFileFetcher(cfg.Source.BaseDir, cfg.Source.MaxBytes)
	httpFetcher := source.NewHTTPFetcher(cfg.Source.BaseURL, timeout, cfg.Source.MaxBytes)

	var bucket *source.R2Fetcher
	if cfg.Source.R2.Enabled {
		bucket, err = source.NewR2Fetcher(cfg.Source.R2, cfg.Source.MaxBytes, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		if err := bucket.Check(checkCtx); err != nil {
			logger.WithError(err).Warn("Bucket not reachable, bucket sources will fail to load")
		}
		cancel()
	}

	a.sources = source.NewRouter(files, httpFetcher, bucket, logger)
	a.extractor = metadata.NewExtractor(cfg.Catalog.SupportedFormats, a.sources, logger)
	return a, nil
}

// Close releases the database and log file
func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WithError(err).Warn("Error closing database")
		}
	}
	a.logCloser.Close()
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	cfg, logger := a.cfg, a.logger

	var store waveform.PeakStore
	if cfg.Waveform.Persist {
		db, err := database.NewDatabase(cfg.Database.Path, logger)
		if err != nil {
			a.Close()
			return fmt.Errorf("error initializing database: %w", err)
		}
		a.db = db
		store = db
	}
	defer a.Close()

	if _, err := os.Stat(cfg.Source.BaseDir); os.IsNotExist(err) && cfg.Source.BaseURL == "" && !cfg.Source.R2.Enabled {
		logger.WithField("base_dir", cfg.Source.BaseDir).Warn("Beat directory does not exist and no remote source is configured")
	}

	durations := cache.NewMemoryCache[time.Duration](time.Hour)
	defer durations.Close()

	loop := eventloop.New(logger)
	engine := player.NewEngine(
		player.NewProbeResource(a.extractor, durations, logger),
		loop,
		player.Options{LoadTimeout: time.Duration(cfg.Player.LoadTimeout) * time.Second},
		logger,
	)
	peaks := waveform.NewCache(waveform.CacheOptions{
		Bars:    cfg.Waveform.Bars,
		Workers: cfg.Waveform.Workers,
		Timeout: time.Duration(cfg.Waveform.TimeoutSeconds) * time.Second,
		Peaks: waveform.PeakOptions{
			Stride:  cfg.Waveform.Stride,
			FloorDB: cfg.Waveform.FloorDB,
			CeilDB:  cfg.Waveform.CeilDB,
			Epsilon: cfg.Waveform.Epsilon,
		},
	}, a.sources, audio.NewDecoder(logger), store, loop, logger)

	// The loop is not running yet, so building the browser here is still
	// single-threaded.
	b := browser.New(engine, peaks, browser.Options{ScrubThreshold: cfg.Player.ScrubThresholdPx}, logger)

	srv := server.New(server.Deps{
		Config:    cfg,
		Loop:      loop,
		Engine:    engine,
		Cache:     peaks,
		Browser:   b,
		Sources:   a.sources,
		Extractor: a.extractor,
		Database:  a.db,
		Logger:    logger,
	})

	tracks, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.WithError(err).WithField("catalog", cfg.Catalog.Path).Warn("Could not load catalog, starting with an empty list")
	} else if len(tracks) == 0 {
		logger.WithField("catalog", cfg.Catalog.Path).Warn("Catalog is empty")
	}
	// SetCatalog waits on the loop, so it runs once Run has started it.
	go func() {
		if err := srv.SetCatalog(ctx, tracks); err != nil {
			logger.WithError(err).Warn("Failed to render catalog")
			return
		}
		logger.WithField("tracks", len(tracks)).Info("Catalog loaded")
	}()

	return srv.Run(ctx)
}
