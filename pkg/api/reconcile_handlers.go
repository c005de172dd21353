package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pantheon-ops/tenantd/pkg/httputil"
	"github.com/pantheon-ops/tenantd/pkg/reconcile"
)

// ReconcileHandlers handles on-demand reconciliation requests
type ReconcileHandlers struct {
	engine *reconcile.Engine
	logger *logrus.Logger
}

// NewReconcileHandlers creates a new ReconcileHandlers
func NewReconcileHandlers(engine *reconcile.Engine, logger *logrus.Logger) *ReconcileHandlers {
	return &ReconcileHandlers{
		engine: engine,
		logger: logger,
	}
}

// RegisterRoutes registers reconciliation routes
func (h *ReconcileHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/reconcile", h.reconcile).Methods("POST")
}

// reconcile handles POST /api/v1/reconcile
func (h *ReconcileHandlers) reconcile(w http.ResponseWriter, r *http.Request) {
	var opts reconcile.Options
	if r.ContentLength > 0 {
		if !httputil.ParseJSONOrError(w, r, &opts) {
			return
		}
	}

	summary, err := h.engine.Reconcile(r.Context(), opts)
	if err != nil {
		if errors.Is(err, reconcile.ErrNotConfigured) {
			httputil.WriteServiceUnavailable(w, err.Error())
			return
		}
		h.logger.Errorf("Reconciliation run failed: %v", err)
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, summary)
}
