package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pantheon-ops/tenantd/pkg/access"
	"github.com/pantheon-ops/tenantd/pkg/httputil"
	"github.com/pantheon-ops/tenantd/pkg/observability"
)

// ResolutionHandlers handles access and permission resolution requests
type ResolutionHandlers struct {
	permissions PermissionResolver
	access      *access.Resolver
	logger      *logrus.Logger
	metrics     *observability.Metrics
}

// NewResolutionHandlers creates a new ResolutionHandlers
func NewResolutionHandlers(permissions PermissionResolver, accessResolver *access.Resolver, logger *logrus.Logger, metrics *observability.Metrics) *ResolutionHandlers {
	return &ResolutionHandlers{
		permissions: permissions,
		access:      accessResolver,
		logger:      logger,
		metrics:     metrics,
	}
}

// RegisterRoutes registers resolution routes
func (h *ResolutionHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/access", h.resolveAccess).Methods("GET")
	router.HandleFunc("/api/v1/permissions", h.resolvePermissions).Methods("GET")
}

// resolveAccess handles GET /api/v1/access
func (h *ResolutionHandlers) resolveAccess(w http.ResponseWriter, r *http.Request) {
	email := httputil.ParseQueryString(r, "email", "")
	if email == "" {
		httputil.WriteBadRequest(w, "email query parameter is required")
		return
	}

	caller := access.Caller{Email: email}
	if groups := httputil.ParseQueryString(r, "groups", ""); groups != "" {
		caller.Groups = strings.Split(groups, ",")
	}

	result, err := h.access.Resolve(r.Context(), caller)
	if err != nil {
		h.logger.Errorf("Failed to resolve access for %s: %v", email, err)
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

// resolvePermissions handles GET /api/v1/permissions
func (h *ResolutionHandlers) resolvePermissions(w http.ResponseWriter, r *http.Request) {
	email := httputil.ParseQueryString(r, "email", "")
	if email == "" {
		httputil.WriteBadRequest(w, "email query parameter is required")
		return
	}
	accountID := httputil.ParseQueryString(r, "account_id", "")

	result, err := h.permissions.Resolve(r.Context(), email, accountID)
	if err != nil {
		if h.metrics != nil {
			h.metrics.PermissionResolvesTotal.WithLabelValues("error").Inc()
		}
		h.logger.Errorf("Failed to resolve permissions for %s: %v", email, err)
		httputil.WriteInternalError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.PermissionResolvesTotal.WithLabelValues("ok").Inc()
	}
	httputil.WriteSuccess(w, result)
}
