package route

import (
	"net/http"

	"detectionsite/internal/config"
	"detectionsite/internal/handler"
	"detectionsite/internal/logger"
	mw "detectionsite/internal/middleware"
	"detectionsite/internal/service"
	"detectionsite/internal/service/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SetupRoutes registers the auth, feed, event and log endpoints behind the
// authentication middleware.
func SetupRoutes(cfg *config.Config, logger *logger.Logger, feeds *service.FeedService,
	pipeline *service.Pipeline, hub *websocket.HubService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(mw.AuthMiddleware)

	// Auth endpoints
	r.Get("/login", handler.LoginPageHandler)
	r.Post("/auth/login", handler.LoginHandler(cfg, logger))
	r.Get("/auth/logout", handler.LogoutHandler)

	// API endpoints
	r.Route("/api", func(r chi.Router) {
		r.Get("/models", handler.ModelsHandler(pipeline, logger))
		r.Get("/events", handler.EventsWebsocketHandler(hub, logger))

		r.Route("/feeds", func(r chi.Router) {
			r.Get("/", handler.ListFeedsHandler(feeds, logger))
			r.Post("/", handler.UploadFeedHandler(feeds, cfg, logger))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handler.GetFeedHandler(feeds, logger))
				r.Delete("/", handler.DeleteFeedHandler(feeds, logger))
				r.Post("/process", handler.ProcessFeedHandler(pipeline, logger))
				r.Get("/image", handler.FeedImageHandler(feeds, logger, false))
				r.Get("/processed", handler.FeedImageHandler(feeds, logger, true))
			})
		})
	})

	// Log endpoints
	r.Get("/logs/{level}", handler.ShowLogsHandler(logger))
	r.Get("/logs/{level}/clear", handler.ClearLogsHandler(logger))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/feeds", http.StatusSeeOther)
	})

	return r
}
