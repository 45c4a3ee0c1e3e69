package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"submux/internal/api"
	"submux/internal/config"
	"submux/internal/deps"
	"submux/internal/intake"
	"submux/internal/jobs"
	"submux/internal/logging"
	"submux/internal/preflight"
	"submux/internal/session"
	"submux/internal/transport"
)

// Daemon owns every long-lived component of the service.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *session.Store
	mailbox *transport.Mailbox
	intake  *intake.Service
	jobs    *jobs.Orchestrator
	api     *api.Server
	janitor *janitor

	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	running  atomic.Bool
	cancel   context.CancelFunc
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	Address      string         `json:"address,omitempty"`
	SessionDB    string         `json:"session_db"`
	LockFilePath string         `json:"lock_file"`
	Sessions     int            `json:"sessions"`
	ActiveJobs   []jobs.JobInfo `json:"active_jobs"`
	Dependencies []deps.Status  `json:"dependencies"`
}

// Option customizes a Daemon.
type Option func(*options)

type options struct {
	jobOpts []jobs.Option
}

// WithJobOptions forwards options to the job orchestrator.
func WithJobOptions(opts ...jobs.Option) Option {
	return func(o *options) { o.jobOpts = append(o.jobOpts, opts...) }
}

// New opens the session store and constructs the service graph.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires a config")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	store, err := session.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	mailbox, err := transport.NewMailbox(cfg.Paths.OutboxDir, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open mailbox: %w", err)
	}
	var orch *jobs.Orchestrator
	svc := intake.New(cfg, store, logger, intake.WithJobGuard(func(userID string) bool {
		return orch.Busy(userID)
	}))
	orch = jobs.New(cfg, store, mailbox, logger,
		append([]jobs.Option{jobs.WithUserLock(svc.LockUser)}, o.jobOpts...)...)
	server := api.New(api.Deps{
		Config:  cfg,
		Store:   store,
		Intake:  svc,
		Jobs:    orch,
		Mailbox: mailbox,
		Logger:  logger,
	})

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		mailbox:  mailbox,
		intake:   svc,
		jobs:     orch,
		api:      server,
		janitor:  newJanitor(cfg, store, svc, orch, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, runs preflight checks, and begins
// serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another submux instance is already running")
	}

	d.logPreflight(ctx)

	listener, err := net.Listen("tcp", d.cfg.API.Bind)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("api listen: %w", err)
	}
	d.listener = listener
	d.server = &http.Server{
		Handler:           d.api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := d.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(d.logger, "api server error", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check api.bind and restart the service"),
			)
		}
	}()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		d.janitor.run(runCtx, janitorInterval)
	}()

	d.running.Store(true)
	d.logger.Info("submux daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("address", listener.Addr().String()),
		logging.String("lock", d.lockPath),
		logging.Int("max_concurrent_jobs", d.cfg.Jobs.MaxConcurrent),
	)
	return nil
}

func (d *Daemon) logPreflight(ctx context.Context) {
	for _, result := range preflight.RunAll(ctx, d.cfg) {
		if result.Passed {
			d.logger.Debug("preflight passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, result.Detail),
			logging.String(logging.FieldImpact, "jobs that need this resource will fail"),
		)
	}
	for _, status := range preflight.CheckSystemDeps(ctx, d.cfg) {
		if status.Available {
			d.logger.Info("dependency ready",
				logging.String("dependency", status.Name),
				logging.String("command", status.Command),
				logging.String("version", status.Version),
			)
			continue
		}
		logging.WarnWithContext(d.logger, "dependency unavailable", "dependency_missing",
			logging.String("dependency", status.Name),
			logging.String("detail", status.Detail),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set encoder.ffmpeg_binary"),
			logging.String(logging.FieldImpact, "every job will fail"),
		)
	}
}

// Addr returns the address the API listens on, or "" before Start.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Stop drains HTTP requests, cancels running jobs, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("api shutdown incomplete", logging.Error(err))
	}
	d.listener = nil
	d.api.Close()
	d.jobs.CancelAll()
	d.jobs.Wait()
	if d.cancel != nil {
		d.cancel()
		<-d.done
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("submux daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and closes the session store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Status reports runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Address:      d.Addr(),
		SessionDB:    d.store.Path(),
		LockFilePath: d.lockPath,
		ActiveJobs:   d.jobs.Active(),
		Dependencies: preflight.CheckSystemDeps(ctx, d.cfg),
	}
	if sessions, err := d.store.List(ctx); err == nil {
		status.Sessions = len(sessions)
	}
	return status
}
