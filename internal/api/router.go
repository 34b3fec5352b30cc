package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/haldane/pkgd/internal/api/handlers"
	mw "github.com/haldane/pkgd/internal/api/middleware"
	"github.com/haldane/pkgd/internal/config"
	"github.com/haldane/pkgd/internal/domain"
	"github.com/haldane/pkgd/internal/keystore"
	"github.com/haldane/pkgd/internal/service"
	"github.com/haldane/pkgd/internal/session"
	"github.com/haldane/pkgd/internal/store"
	"go.uber.org/zap"
)

// App holds the router and the background services for lifecycle management.
type App struct {
	Router    *chi.Mux
	Scheduler *service.SyncScheduler
	Kill      *service.KillSwitch
	Graph     domain.GraphStore
	Sync      *service.SyncService
	Resolver  *service.ResolverService
}

func NewApp(blobs *store.BlobStore, keys domain.KeyManager, logger *zap.Logger) *App {
	// Stores and services
	graph := store.NewGraphStore(blobs, keys, logger)
	pusher := service.NewPushClient(config.BackendBaseURL(), config.BackendToken())
	syncSvc := service.NewSyncService(graph, blobs, pusher, logger)
	syncSvc.SetInterval(config.SyncInterval())
	resolverSvc := service.NewResolverService(graph, logger)
	killSvc := service.NewKillSwitch(graph, keys, syncSvc, logger)
	scheduler := service.NewSyncScheduler(syncSvc, config.DeviceUserID(), logger)

	// Handlers
	graphHandler := handlers.NewGraphHandler(graph, syncSvc, logger)
	queryHandler := handlers.NewQueryHandler(resolverSvc, logger)
	syncHandler := handlers.NewSyncHandler(syncSvc, logger)
	selfHandler := handlers.NewSelfHandler(killSvc, logger)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(blobs))

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.LocalTokenAuth(config.LocalToken()))

		r.Route("/graph", func(r chi.Router) {
			r.Post("/nodes", graphHandler.UpsertNode)
			r.Delete("/nodes/{id}", graphHandler.RemoveNode)
			r.Post("/edges", graphHandler.UpsertEdge)
			r.Post("/facts", graphHandler.StoreFact)
			r.Post("/people", graphHandler.RegisterPerson)

			r.Get("/resolve", queryHandler.Resolve)
			r.Get("/attribute", queryHandler.GetAttribute)
			r.Get("/capsule", queryHandler.Capsule)
			r.Get("/stats", queryHandler.Stats)
		})

		r.Post("/sync", syncHandler.Trigger)
		r.Delete("/self", selfHandler.Erase)
	})

	return &App{
		Router:    r,
		Scheduler: scheduler,
		Kill:      killSvc,
		Graph:     graph,
		Sync:      syncSvc,
		Resolver:  resolverSvc,
	}
}

func healthHandler(blobs *store.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := blobs.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// Ensure implementations satisfy interfaces at compile time.
var (
	_ domain.GraphStore = (*store.GraphStore)(nil)
	_ domain.KeyManager = (*keystore.Manager)(nil)
	_ domain.BlobStore  = (*store.BlobStore)(nil)
	_ domain.Pusher     = (*service.PushClient)(nil)
	_ session.Sender    = (*session.Client)(nil)
)
