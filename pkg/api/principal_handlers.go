package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pantheon-ops/tenantd/pkg/httputil"
	"github.com/pantheon-ops/tenantd/pkg/kv"
	"github.com/pantheon-ops/tenantd/pkg/license"
	"github.com/pantheon-ops/tenantd/pkg/observability"
	"github.com/pantheon-ops/tenantd/pkg/users"
)

// PrincipalHandlers handles principal lifecycle HTTP requests
type PrincipalHandlers struct {
	users       *users.Orchestrator
	gate        *license.Gate
	invalidator CacheInvalidator
	logger      *logrus.Logger
	metrics     *observability.Metrics
}

// NewPrincipalHandlers creates a new PrincipalHandlers
func NewPrincipalHandlers(orchestrator *users.Orchestrator, gate *license.Gate, invalidator CacheInvalidator, logger *logrus.Logger, metrics *observability.Metrics) *PrincipalHandlers {
	return &PrincipalHandlers{
		users:       orchestrator,
		gate:        gate,
		invalidator: invalidator,
		logger:      logger,
		metrics:     metrics,
	}
}

// invalidateCache drops cached resolutions after a mutation. Best effort;
// the TTL bounds staleness if it fails.
func (h *PrincipalHandlers) invalidateCache(r *http.Request) {
	if h.invalidator == nil {
		return
	}
	if err := h.invalidator.Invalidate(r.Context()); err != nil {
		h.logger.Warnf("Failed to invalidate permission cache: %v", err)
	}
}

// RegisterRoutes registers principal routes
func (h *PrincipalHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/users", h.createUser).Methods("POST")
	router.HandleFunc("/api/v1/users/{id}", h.getUser).Methods("GET")
	router.HandleFunc("/api/v1/users/{id}", h.updateUser).Methods("PUT")
	router.HandleFunc("/api/v1/users/{id}", h.deleteUser).Methods("DELETE")

	// Workstreams
	router.HandleFunc("/api/v1/users/{id}/workstreams", h.getWorkstreams).Methods("GET")
	router.HandleFunc("/api/v1/users/{id}/workstreams", h.replaceWorkstreams).Methods("PUT")

	// Capacity
	router.HandleFunc("/api/v1/accounts/{id}/capacity", h.getCapacity).Methods("GET")
}

// createUser handles POST /api/v1/users
func (h *PrincipalHandlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req users.CreateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.users.Create(r.Context(), req)
	if err != nil {
		switch {
		case license.IsCapacityExceeded(err):
			if h.metrics != nil {
				h.metrics.CapacityRejectionsTotal.WithLabelValues(req.AccountID).Inc()
				h.metrics.UserCreationsTotal.WithLabelValues("rejected").Inc()
			}
			httputil.WriteConflict(w, err.Error())
		case err == license.ErrAccountNotFound:
			httputil.WriteNotFoundError(w, err.Error())
		case kv.IsTransactFailed(err):
			h.logger.Errorf("Failed to persist principal: %v", err)
			if h.metrics != nil {
				h.metrics.UserCreationsTotal.WithLabelValues("failed").Inc()
			}
			httputil.WriteInternalError(w, err)
		default:
			h.logger.Errorf("Failed to create principal: %v", err)
			if h.metrics != nil {
				h.metrics.UserCreationsTotal.WithLabelValues("failed").Inc()
			}
			httputil.WriteInternalError(w, err)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.UserCreationsTotal.WithLabelValues("created").Inc()
		h.metrics.ProviderSyncTotal.WithLabelValues("create", string(result.ProviderSync.Outcome)).Inc()
	}
	h.invalidateCache(r)
	httputil.WriteCreated(w, result)
}

// getUser handles GET /api/v1/users/{id}
func (h *PrincipalHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetPathVars(r)["id"]

	principal, err := h.users.Get(r.Context(), userID)
	if err != nil {
		if err == users.ErrNotFound {
			httputil.WriteNotFoundError(w, "principal not found")
			return
		}
		h.logger.Errorf("Failed to load principal %s: %v", userID, err)
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, principal)
}

// updateUser handles PUT /api/v1/users/{id}
func (h *PrincipalHandlers) updateUser(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetPathVars(r)["id"]

	var req users.UpdateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.users.Update(r.Context(), userID, req)
	if err != nil {
		if err == users.ErrNotFound {
			httputil.WriteNotFoundError(w, "principal not found")
			return
		}
		h.logger.Errorf("Failed to update principal %s: %v", userID, err)
		httputil.WriteInternalError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.ProviderSyncTotal.WithLabelValues("update", string(result.ProviderSync.Outcome)).Inc()
	}
	h.invalidateCache(r)
	httputil.WriteSuccess(w, result)
}

// deleteUser handles DELETE /api/v1/users/{id}
func (h *PrincipalHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetPathVars(r)["id"]

	result, err := h.users.Delete(r.Context(), userID)
	if err != nil {
		if err == users.ErrNotFound {
			httputil.WriteNotFoundError(w, "principal not found")
			return
		}
		h.logger.Errorf("Failed to delete principal %s: %v", userID, err)
		httputil.WriteInternalError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.ProviderSyncTotal.WithLabelValues("delete", string(result.ProviderDelete.Outcome)).Inc()
	}
	h.invalidateCache(r)
	httputil.WriteSuccess(w, result)
}

// WorkstreamsResponse carries a principal's workstream set
type WorkstreamsResponse struct {
	UserID        string   `json:"user_id"`
	WorkstreamIDs []string `json:"workstream_ids"`
}

// getWorkstreams handles GET /api/v1/users/{id}/workstreams
func (h *PrincipalHandlers) getWorkstreams(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetPathVars(r)["id"]

	ids, err := h.users.GetWorkstreams(r.Context(), userID)
	if err != nil {
		if err == users.ErrNotFound {
			httputil.WriteNotFoundError(w, "principal not found")
			return
		}
		h.logger.Errorf("Failed to load workstreams for %s: %v", userID, err)
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, WorkstreamsResponse{UserID: userID, WorkstreamIDs: ids})
}

// replaceWorkstreams handles PUT /api/v1/users/{id}/workstreams
func (h *PrincipalHandlers) replaceWorkstreams(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetPathVars(r)["id"]

	var req WorkstreamsResponse
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.users.ReplaceWorkstreams(r.Context(), userID, req.WorkstreamIDs); err != nil {
		if err == users.ErrNotFound {
			httputil.WriteNotFoundError(w, "principal not found")
			return
		}
		h.logger.Errorf("Failed to replace workstreams for %s: %v", userID, err)
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, WorkstreamsResponse{UserID: userID, WorkstreamIDs: req.WorkstreamIDs})
}

// getCapacity handles GET /api/v1/accounts/{id}/capacity
func (h *PrincipalHandlers) getCapacity(w http.ResponseWriter, r *http.Request) {
	accountID := httputil.GetPathVars(r)["id"]

	capacity, err := h.gate.GetCapacity(r.Context(), accountID)
	if err != nil {
		if err == license.ErrAccountNotFound {
			httputil.WriteNotFoundError(w, "account not found")
			return
		}
		h.logger.Errorf("Failed to compute capacity for %s: %v", accountID, err)
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, capacity)
}
