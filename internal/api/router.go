package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/munchie/internal/collectionservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *collectionservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(RequireToken(authEnabled, token))

	r.Route("/collections", func(r chi.Router) {
		r.Get("/", h.ListCollections)
		r.Post("/", h.CreateCollection)
		r.Post("/scan", h.ScanFolders)
		r.Post("/reconcile-hidden", h.ReconcileHidden)
		r.Get("/{id}", h.GetCollection)
		r.Put("/{id}", h.UpdateCollection)
		r.Delete("/{id}", h.DeleteCollection)
	})

	r.Get("/models", h.ListModels)

	r.Get("/backup", h.Backup)
	r.Post("/restore", h.Restore)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
