package routes

import (
	"log"
	"net/http"

	"facecam/internal/config"
	"facecam/internal/handlers"
	"facecam/internal/logger"
	"facecam/internal/middleware"
	"facecam/internal/repository"
	"facecam/internal/services"
	"facecam/internal/static"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// pageHandler serves one embedded HTML page.
func pageHandler(name string, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := static.Page(name)
		if err != nil {
			logger.Error("Missing embedded page %s: %v", name, err)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	}
}

// SetupRoutes registers pages, API endpoints and log endpoints, behind the
// password gate when one is configured. sightingRepo may be nil.
func SetupRoutes(manager *services.Manager, sightingRepo repository.SightingRepository, cfg *config.Config, logger *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.RequestLogger(&chiMiddleware.DefaultLogFormatter{
		Logger:  log.New(logger.Writer(), "", log.LstdFlags),
		NoColor: true,
	}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Auth(cfg.Password))

	// Pages
	r.Get("/", pageHandler("index.html", logger))
	r.Get("/login", pageHandler("login.html", logger))

	r.Get("/health", handlers.HealthHandler(manager, logger))

	// API endpoints
	r.Route("/api", func(r chi.Router) {
		r.Get("/view", handlers.ViewWebsocketHandler(manager, manager.GetWebsocketService(), logger))

		r.Post("/capture/start", handlers.StartCaptureHandler(manager, logger))
		r.Post("/capture/stop", handlers.StopCaptureHandler(manager, logger))
		r.Get("/capture/status", handlers.CaptureStatusHandler(manager, logger))

		r.Get("/frame.jpg", handlers.LatestFrameHandler(manager))

		r.Get("/faces", handlers.ListFacesHandler(manager, logger))
		r.Post("/faces/reload", handlers.ReloadFacesHandler(manager, logger))

		r.Get("/sightings", handlers.GetSightingsHandler(sightingRepo, logger))
		r.Get("/sightings/stats", handlers.GetSightingStatsHandler(sightingRepo, logger))
		r.Get("/sightings/view", handlers.ViewSightingHandler(cfg.SnapshotDirectory))
	})

	// Log endpoints
	r.Get("/logs/{level}", handlers.ShowLogsHandler(cfg.LogDirectory))
	r.Post("/logs/{level}/clear", handlers.ClearLogsHandler(logger))

	// Auth endpoints
	r.Post("/auth/login", handlers.LoginHandler(cfg, logger))
	r.HandleFunc("/auth/logout", handlers.LogoutHandler)

	return r
}
