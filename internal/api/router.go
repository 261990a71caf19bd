package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/hearthd/internal/index"
	"github.com/phrazzld/hearthd/internal/platform/metrics"
	"github.com/phrazzld/hearthd/internal/scheduler"
	"github.com/phrazzld/hearthd/internal/store"
)

// RouterDeps carries the collaborators the router's handlers need.
type RouterDeps struct {
	Store     store.CalendarStore
	Index     *index.EventIndex
	Scheduler *scheduler.Scheduler
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

// NewRouter builds the service's HTTP router with all routes and
// middleware registered.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	eventHandler := NewEventHandler(deps.Store, deps.Index, deps.Logger)
	taskHandler := NewTaskHandler(deps.Scheduler, deps.Logger)
	indexHandler := NewIndexHandler(deps.Index, deps.Store, deps.Logger)

	r.Route("/api", func(r chi.Router) {
		// Calendar events
		r.Post("/events", eventHandler.CreateEvent)
		r.Get("/events", eventHandler.QueryEvents)
		r.Get("/events/search", eventHandler.SearchEvents)
		r.Get("/events/{id}", eventHandler.GetEvent)
		r.Put("/events/{id}", eventHandler.UpdateEvent)
		r.Delete("/events/{id}", eventHandler.DeleteEvent)

		// Background tasks
		r.Post("/tasks", taskHandler.SubmitTask)
		r.Delete("/tasks/{id}", taskHandler.CancelTask)
		r.Get("/scheduler/stats", taskHandler.GetStats)
		r.Get("/scheduler/queue", taskHandler.GetQueueStatus)

		// Index maintenance
		r.Get("/index/stats", indexHandler.GetStats)
		r.Post("/index/optimize", indexHandler.Optimize)
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			deps.Logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
