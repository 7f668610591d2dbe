// internal/app/features/invitetree/handler.go
package invitetree

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dalemusser/invitetree/internal/app/health"
	"github.com/dalemusser/invitetree/internal/app/prune"
	"github.com/dalemusser/invitetree/internal/app/store/audit"
	"github.com/dalemusser/invitetree/internal/app/system/apperr"
	"github.com/dalemusser/invitetree/internal/app/system/timeouts"
	"github.com/dalemusser/invitetree/internal/app/tree"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const maxPageSize = 200

// Handler serves the read-only invite tree API. Mutating operations
// (prune, rollback) are run by operators through invitetreectl.
type Handler struct {
	Tree            *tree.Engine
	Health          *health.Engine
	Prune           *prune.Engine
	Audit           *audit.Store
	DefaultMaxDepth int
	Log             *zap.Logger
}

func NewHandler(t *tree.Engine, h *health.Engine, p *prune.Engine, a *audit.Store, defaultMaxDepth int, logger *zap.Logger) *Handler {
	return &Handler{
		Tree:            t,
		Health:          h,
		Prune:           p,
		Audit:           a,
		DefaultMaxDepth: defaultMaxDepth,
		Log:             logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Infrastructure failures
// are logged and reported without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.Log.Error("invitetree api request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		msg = "internal error"
		if errors.Is(err, apperr.ErrCorruptTree) {
			msg = err.Error()
		}
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func objectIDParam(r *http.Request, name string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, apperr.BadRequest("invalid %s", name)
	}
	return oid, nil
}

func (h *Handler) maxDepth(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("max_depth")
	if raw == "" {
		return h.DefaultMaxDepth, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < tree.NoLimit {
		return 0, apperr.BadRequest("max_depth must be an integer >= -1")
	}
	return n, nil
}

// intQuery parses a non-negative integer query value, clamped to max.
func intQuery(r *http.Request, name string, def, max int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, apperr.BadRequest("%s must be a non-negative integer", name)
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}

// userCall handles the common shape of /users/{id}/... endpoints.
func (h *Handler) userCall(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id primitive.ObjectID) (any, error)) {
	id, err := objectIDParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	out, err := fn(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ServeDescendants handles GET /users/{id}/descendants?max_depth=N.
func (h *Handler) ServeDescendants(w http.ResponseWriter, r *http.Request) {
	depth, err := h.maxDepth(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.userCall(w, r, func(ctx context.Context, id primitive.ObjectID) (any, error) {
		recs, err := h.Tree.Descendants(ctx, id, depth)
		if err != nil {
			return nil, err
		}
		if recs == nil {
			recs = []tree.DescendantRecord{}
		}
		return map[string]any{"descendants": recs, "count": len(recs)}, nil
	})
}

// ServeAncestors handles GET /users/{id}/ancestors.
func (h *Handler) ServeAncestors(w http.ResponseWriter, r *http.Request) {
	h.userCall(w, r, func(ctx context.Context, id primitive.ObjectID) (any, error) {
		return h.Tree.Ancestors(ctx, id)
	})
}

// ServeStats handles GET /users/{id}/stats.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	h.userCall(w, r, func(ctx context.Context, id primitive.ObjectID) (any, error) {
		return h.Tree.SubtreeStats(ctx, id)
	})
}

// ServeTree handles GET /users/{id}/tree?max_depth=N.
func (h *Handler) ServeTree(w http.ResponseWriter, r *http.Request) {
	depth, err := h.maxDepth(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.userCall(w, r, func(ctx context.Context, id primitive.ObjectID) (any, error) {
		return h.Tree.BuildTree(ctx, id, depth)
	})
}

// ServeInvitees handles GET /users/{id}/invitees.
func (h *Handler) ServeInvitees(w http.ResponseWriter, r *http.Request) {
	h.userCall(w, r, func(ctx context.Context, id primitive.ObjectID) (any, error) {
		users, err := h.Tree.DirectInvitees(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"invitees": users, "count": len(users)}, nil
	})
}

// ServeHealth handles GET /users/{id}/health.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	h.userCall(w, r, func(ctx context.Context, id primitive.ObjectID) (any, error) {
		return h.Health.Latest(ctx, id)
	})
}

// ServeHealthHistory handles GET /users/{id}/health/history?limit=N.
func (h *Handler) ServeHealthHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 30, maxPageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.userCall(w, r, func(ctx context.Context, id primitive.ObjectID) (any, error) {
		scores, err := h.Health.History(ctx, id, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"scores": scores}, nil
	})
}

// ServePrunePreview handles GET /users/{id}/prune-preview.
func (h *Handler) ServePrunePreview(w http.ResponseWriter, r *http.Request) {
	h.userCall(w, r, func(ctx context.Context, id primitive.ObjectID) (any, error) {
		affected, err := h.Prune.AffectedUsers(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"affected_users": affected, "count": len(affected)}, nil
	})
}

// ServeAudit handles GET /users/{id}/audit?limit=N.
func (h *Handler) ServeAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 50, maxPageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.userCall(w, r, func(ctx context.Context, id primitive.ObjectID) (any, error) {
		entries, err := h.Audit.ForTarget(ctx, id, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"entries": entries}, nil
	})
}

// ServePruneOperations handles GET /prune-operations?limit=N&offset=M.
func (h *Handler) ServePruneOperations(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 50, maxPageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	offset, err := intQuery(r, "offset", 0, 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	ops, total, err := h.Prune.ListOperations(ctx, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"operations": ops,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

// ServePruneOperation handles GET /prune-operations/{opID}.
func (h *Handler) ServePruneOperation(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "opID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	op, err := h.Prune.GetOperation(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}
