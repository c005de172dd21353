package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pantheon-ops/tenantd/pkg/access"
	"github.com/pantheon-ops/tenantd/pkg/httputil"
	"github.com/pantheon-ops/tenantd/pkg/license"
	"github.com/pantheon-ops/tenantd/pkg/observability"
	"github.com/pantheon-ops/tenantd/pkg/rbac"
	"github.com/pantheon-ops/tenantd/pkg/reconcile"
	"github.com/pantheon-ops/tenantd/pkg/users"
)

// PermissionResolver is the resolution contract the API consumes; both the
// direct and the cached resolver satisfy it.
type PermissionResolver interface {
	Resolve(ctx context.Context, callerEmail, tenantID string) (*rbac.ResolveResult, error)
}

// CacheInvalidator drops cached permission resolutions after a principal
// mutation.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Deps carries the collaborators the server exposes.
type Deps struct {
	Users       *users.Orchestrator
	Gate        *license.Gate
	Permissions PermissionResolver
	Access      *access.Resolver
	Reconciler  *reconcile.Engine
	Invalidator CacheInvalidator // may be nil
	Logger      *observability.Logger
	Metrics     *observability.Metrics // may be nil
	HandlerLog  *logrus.Logger
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	deps    Deps
	metrics *observability.Metrics
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	if deps.HandlerLog == nil {
		deps.HandlerLog = logrus.New()
	}
	s := &Server{
		router:  mux.NewRouter(),
		deps:    deps,
		metrics: deps.Metrics,
	}

	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.RecoveryMiddleware(deps.Logger))
	s.router.Use(httputil.LoggingMiddleware(deps.Logger))
	if deps.Metrics != nil {
		s.router.Use(httputil.MetricsMiddleware(deps.Metrics))
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	principals := NewPrincipalHandlers(s.deps.Users, s.deps.Gate, s.deps.Invalidator, s.deps.HandlerLog, s.metrics)
	principals.RegisterRoutes(s.router)

	resolution := NewResolutionHandlers(s.deps.Permissions, s.deps.Access, s.deps.HandlerLog, s.metrics)
	resolution.RegisterRoutes(s.router)

	reconciliation := NewReconcileHandlers(s.deps.Reconciler, s.deps.HandlerLog)
	reconciliation.RegisterRoutes(s.router)
}

// Handler returns the root http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}
