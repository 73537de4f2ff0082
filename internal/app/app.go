// Package app wires the camera, engine, gallery, frame loop and outer
// surfaces into one runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"facecam/internal/config"
	"facecam/internal/desktop"
	"facecam/internal/logger"
	"facecam/internal/repository"
	"facecam/internal/repository/sqlite"
	"facecam/internal/routes"
	"facecam/internal/services"
	"facecam/internal/services/camera"
	"facecam/internal/services/gallery"
	"facecam/internal/services/recognition"
	"facecam/internal/services/storage"
	"facecam/internal/services/websocket"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
)

type App struct {
	config *config.Config
	logger *logger.Logger

	db           *sqlite.DB
	sightingRepo repository.SightingRepository
	engine       recognition.Engine
	camera       *camera.Camera
	gallery      *gallery.Gallery

	bufferService *storage.BufferService
	hubService    *websocket.HubService
	manager       *services.Manager

	closeOnce sync.Once
}

// NewApp loads the engine and opens the camera. The reference gallery is
// empty until LoadGallery runs. A camera that fails to open is reported but
// not fatal; a missing engine model is.
func NewApp(cfg *config.Config, logger *logger.Logger) (*App, error) {
	a := &App{config: cfg, logger: logger}

	if cfg.DatabasePath != "" {
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.db = db
		a.sightingRepo = sqlite.NewSightingRepository(db)
		logger.Info("🗄️  Database opened at %s", cfg.DatabasePath)
	}

	engine, err := recognition.NewEngine(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load %s engine: %w", cfg.Engine, err)
	}
	a.engine = engine
	logger.Info("🤖 Face engine %s loaded from %s", engine.Name(), cfg.ModelDirectory)

	a.gallery, err = NewGallery(cfg, engine, a.db, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.camera = camera.Open(cfg.CameraDevice, cfg.FrameWidth, cfg.FrameHeight)
	if err := a.camera.Err(); err != nil {
		logger.Warning("Camera unavailable, the view will stay blank: %v", err)
	} else {
		logger.Info("📷 Camera %s opened", cfg.CameraDevice)
	}
	if !cfg.StartCapturing {
		a.camera.Stop()
	}

	if cfg.SnapshotsEnabled() {
		var faceRepo repository.FaceRepository
		if a.db != nil {
			faceRepo = sqlite.NewFaceRepository(a.db)
		}
		a.bufferService = storage.NewBufferService(cfg.SnapshotDirectory, cfg.SnapshotLimit, logger, a.sightingRepo, faceRepo)
	}

	a.hubService = websocket.NewHubService(logger)
	a.manager = services.NewManager(a.camera, a.gallery, engine, a.hubService, a.bufferService, cfg, logger)

	return a, nil
}

// NewGallery builds an empty gallery for engine, reusing cached encodings
// from db when it is not nil.
func NewGallery(cfg *config.Config, engine recognition.Engine, db *sqlite.DB, logger *logger.Logger) (*gallery.Gallery, error) {
	labels, err := config.LoadLabels(cfg.LabelsFile)
	if err != nil {
		return nil, err
	}

	opts := gallery.Options{
		Directory:   cfg.ReferenceDirectory,
		MatcherKind: cfg.Matcher,
		Tolerance:   recognition.Tolerance(cfg, engine),
		Labels:      labels,
	}
	if db != nil {
		opts.Cache = sqlite.NewEncodingRepository(db)
	}
	return gallery.New(engine, opts, logger)
}

// LoadGallery encodes the reference directory. progress may be nil.
func (a *App) LoadGallery(ctx context.Context, progress gallery.Progress) (gallery.Report, error) {
	report, err := a.gallery.Load(ctx, progress)
	if err != nil {
		return report, err
	}
	a.logger.Info("👤 %d reference face(s) loaded from %s (%d cached, %d skipped)",
		report.Loaded, a.config.ReferenceDirectory, report.Cached, report.Skipped)
	return report, nil
}

func (a *App) Manager() *services.Manager {
	return a.manager
}

// Handler returns the HTTP router.
func (a *App) Handler() http.Handler {
	return routes.SetupRoutes(a.manager, a.sightingRepo, a.config, a.logger)
}

// startBackground launches the hub, the snapshot buffer and the frame loop.
// The returned wait blocks until all three have stopped after ctx is done.
func (a *App) startBackground(ctx context.Context) (wait func()) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.hubService.Run(ctx)
	}()

	if a.bufferService != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.bufferService.Run(ctx, a.config.FlushInterval)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.manager.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("Frame loop stopped: %v", err)
		}
	}()

	return wg.Wait
}

// Run serves the web view until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wait := a.startBackground(ctx)
	err := a.serve(ctx)
	cancel()
	wait()
	return err
}

func (a *App) serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", a.config.Host, a.config.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("🚀 Camera App listening on http://%s", addr)
	if a.config.AuthEnabled() {
		a.logger.Info("🔑 Login required")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.logger.Info("Shutting down http server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

// RunDesktop shows the native window and blocks until it is closed or ctx
// is cancelled. With web set the HTTP view is served alongside.
func (a *App) RunDesktop(ctx context.Context, web bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fa := fyneapp.NewWithID("facecam")
	win := desktop.NewWindow(fa, a.manager, a.logger)
	a.manager.AddSink(win)
	a.manager.AddStatusListener(win)

	wait := a.startBackground(ctx)

	serveErr := make(chan error, 1)
	if web {
		go func() { serveErr <- a.serve(ctx) }()
	} else {
		close(serveErr)
	}

	go func() {
		<-ctx.Done()
		fyne.Do(fa.Quit)
	}()

	win.ShowAndRun()
	cancel()
	wait()
	return <-serveErr
}

// Close releases the engine, camera, frame buffers and database. Call once
// Run or RunDesktop has returned.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		if a.manager != nil {
			a.manager.Stop()
		}
		if a.camera != nil {
			if err := a.camera.Close(); err != nil {
				errs = append(errs, fmt.Errorf("camera: %w", err))
			}
		}
		if a.engine != nil {
			if err := a.engine.Close(); err != nil {
				errs = append(errs, fmt.Errorf("engine: %w", err))
			}
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("database: %w", err))
			}
		}
	})
	return errors.Join(errs...)
}
