package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"submux/internal/config"
	"submux/internal/intake"
	"submux/internal/jobs"
	"submux/internal/logging"
	"submux/internal/session"
	"submux/internal/transport"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 64 << 10

// Deps are the services the API fronts.
type Deps struct {
	Config  *config.Config
	Store   *session.Store
	Intake  *intake.Service
	Jobs    *jobs.Orchestrator
	Mailbox *transport.Mailbox
	Logger  *slog.Logger
}

// Server routes HTTP requests to the intake, session, job, and mailbox
// services.
type Server struct {
	cfg      *config.Config
	store    *session.Store
	intake   *intake.Service
	jobs     *jobs.Orchestrator
	mailbox  *transport.Mailbox
	outbound transport.Transport
	logger   *slog.Logger
	handler  http.Handler

	// background URL fetches outlive their request
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the server and its router.
func New(deps Deps) *Server {
	logger := logging.NewComponentLogger(deps.Logger, "api")
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      deps.Config,
		store:    deps.Store,
		intake:   deps.Intake,
		jobs:     deps.Jobs,
		mailbox:  deps.Mailbox,
		outbound: transport.Retry(deps.Mailbox, deps.Config.RetryDelay(), logger),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Close cancels background URL fetches and waits for them to stop.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID)
	r.Use(instrument)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	protected := r.NewRoute().Subrouter()
	protected.Use(authenticate(s.cfg.API.Token, s.logger))
	protected.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := protected.PathPrefix("/api").Subrouter()
	api.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)

	user := api.PathPrefix("/users/{user}").Subrouter()
	user.Use(allowUsers(s.cfg, s.logger))
	user.HandleFunc("/uploads", s.handleUpload).Methods(http.MethodPost)
	user.HandleFunc("/uploads/url", s.handleURLUpload).Methods(http.MethodPost)
	user.HandleFunc("/session", s.handleGetSession).Methods(http.MethodGet)
	user.HandleFunc("/session", s.handleDeleteSession).Methods(http.MethodDelete)
	user.HandleFunc("/output-name", s.handleOutputName).Methods(http.MethodPut)
	user.HandleFunc("/preferences", s.handleGetPreferences).Methods(http.MethodGet)
	user.HandleFunc("/preferences", s.handlePutPreferences).Methods(http.MethodPut)
	user.HandleFunc("/preferences/{field}/cycle", s.handleCyclePreference).Methods(http.MethodPost)
	user.HandleFunc("/jobs", s.handleStartJob).Methods(http.MethodPost)
	user.HandleFunc("/jobs", s.handleCancelJob).Methods(http.MethodDelete)
	user.HandleFunc("/messages", s.handleMessages).Methods(http.MethodGet)
	user.HandleFunc("/deliveries", s.handleListDeliveries).Methods(http.MethodGet)
	user.HandleFunc("/deliveries/{name}", s.handleDownload).Methods(http.MethodGet)

	var handler http.Handler = r
	if origins := s.cfg.API.CORSOrigins; len(origins) > 0 {
		handler = handlers.CORS(
			handlers.AllowedOrigins(origins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization", requestIDHeader}),
			handlers.ExposedHeaders([]string{requestIDHeader}),
		)(handler)
	}
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger: s.logger}),
		handlers.PrintRecoveryStack(false),
	)(handler)
}
