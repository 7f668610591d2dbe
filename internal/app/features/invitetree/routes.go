// internal/app/features/invitetree/routes.go
package invitetree

import "github.com/go-chi/chi/v5"

// Routes returns the API subrouter. It is mounted under /api.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Route("/users/{id}", func(r chi.Router) {
		r.Get("/descendants", h.ServeDescendants)
		r.Get("/ancestors", h.ServeAncestors)
		r.Get("/stats", h.ServeStats)
		r.Get("/tree", h.ServeTree)
		r.Get("/invitees", h.ServeInvitees)
		r.Get("/health", h.ServeHealth)
		r.Get("/health/history", h.ServeHealthHistory)
		r.Get("/prune-preview", h.ServePrunePreview)
		r.Get("/audit", h.ServeAudit)
	})

	r.Get("/prune-operations", h.ServePruneOperations)
	r.Get("/prune-operations/{opID}", h.ServePruneOperation)

	return r
}
