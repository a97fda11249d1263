package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ringforge/callgate/pkg/accounts"
	"github.com/ringforge/callgate/pkg/admission"
	"github.com/ringforge/callgate/pkg/auth"
	"github.com/ringforge/callgate/pkg/billing"
	"github.com/ringforge/callgate/pkg/calls"
	"github.com/ringforge/callgate/pkg/middleware"
	"github.com/ringforge/callgate/pkg/numbers"
	"github.com/ringforge/callgate/pkg/observability"
	"github.com/ringforge/callgate/pkg/usage"
)

// Services bundles everything the API serves
type Services struct {
	Accounts  accounts.Service
	Billing   billing.Service
	Admission admission.Service
	Usage     usage.Service
	Numbers   numbers.Service
	Calls     *calls.Controller
	Catalog   *billing.Catalog
	Sessions  *auth.SessionStore

	// SessionTTL is echoed back to handshake callers as the expiry.
	SessionTTL time.Duration

	// DefaultHold is the hold duration applied when a simulate request
	// asks for a held call without saying for how long.
	DefaultHold time.Duration
}

// Server is the HTTP control surface
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	logger     *observability.Logger
}

// NewServer creates a server with all routes and middleware registered
func NewServer(addr string, services Services, logger *observability.Logger, metrics *observability.Metrics) *Server {
	router := mux.NewRouter()
	router.Use(middleware.NewRequestMiddleware(logger).Handler)
	if metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(metrics))
	}

	v1 := router.PathPrefix("/api/v1").Subrouter()
	if services.Sessions != nil {
		// Sessions are a precondition callers may skip; a presented token
		// still has to resolve.
		v1.Use(middleware.NewSessionMiddleware(services.Sessions, true).Handler)
	}
	NewAccountHandlers(services.Accounts).RegisterRoutes(v1)
	NewBillingHandlers(services.Billing, services.Catalog, metrics).RegisterRoutes(v1)
	NewCallHandlers(services.Calls, services.Admission, services.DefaultHold).RegisterRoutes(v1)
	NewUsageHandlers(services.Usage).RegisterRoutes(v1)
	NewNumberHandlers(services.Numbers).RegisterRoutes(v1)
	NewAuthHandlers(services.Sessions, services.SessionTTL).RegisterRoutes(v1)

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// Router exposes the handler tree, primarily for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting API server")
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
