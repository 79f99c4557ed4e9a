package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/gorilla/mux"

	"mashup/internal/config"
	"mashup/internal/deps"
	"mashup/internal/logging"
	"mashup/internal/notifications"
	"mashup/internal/preflight"
	"mashup/internal/queue"
	"mashup/internal/workflow"
)

// Daemon owns the service lifecycle.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *queue.Store
	runner *workflow.Runner
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                `json:"running"`
	PID          int                 `json:"pid"`
	Address      string              `json:"address,omitempty"`
	DatabasePath string              `json:"database_path"`
	LockFilePath string              `json:"lock_file_path"`
	Jobs         map[queue.Phase]int `json:"jobs"`
	Dependencies []deps.Status       `json:"dependencies"`
}

// New constructs a daemon. handler serves cfg.Paths.APIBind alongside the
// daemon's own GET /api/service status route; a nil handler or empty bind
// address runs the worker pool without a listener.
func New(cfg *config.Config, store *queue.Store, runner *workflow.Runner, handler http.Handler, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || runner == nil {
		return nil, errors.New("daemon requires config, store, and workflow runner")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		runner:   runner,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	if handler != nil {
		d.api = newAPIServer(cfg.Paths.APIBind, d.routes(handler), logger)
	}
	return d, nil
}

func (d *Daemon) routes(handler http.Handler) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/api/service", d.handleStatus).Methods(http.MethodGet)
	router.PathPrefix("/").Handler(handler)
	return router
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(d.Status(r.Context())); err != nil {
		d.logger.Warn("failed to write service status", logging.Error(err))
	}
}

// Start acquires the instance lock, fails jobs a previous process abandoned,
// and opens the listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mashup service is already running")
	}

	if _, err := d.runner.Recover(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover interrupted jobs: %w", err)
	}
	d.logPreflight(ctx)

	if err := d.api.start(); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("mashup service started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()),
		logging.Int("max_concurrent_jobs", d.cfg.Workflow.MaxConcurrentJobs),
	)
	return nil
}

// Stop closes the listener, waits for background jobs, and releases the lock.
// Jobs only finish promptly when the context handed to the runner has been
// cancelled.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.api.stop()
	d.runner.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release service lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("mashup service stopped")
}

// Serve starts the daemon and blocks until ctx is done.
func (d *Daemon) Serve(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.logger.Info("shutdown requested")
	d.Stop()
	return nil
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("job stats unavailable", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Address:      d.api.addr(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Jobs:         stats,
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
}

// TestNotification publishes a test alert using the current configuration.
func TestNotification(ctx context.Context, cfg *config.Config) (bool, string, error) {
	if cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	alerts := notifications.NewAlerts(cfg)
	if err := alerts.Publish(ctx, notifications.EventTest, notifications.Payload{}); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

func (d *Daemon) logPreflight(ctx context.Context) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "jobs needing this may fail"),
			logging.String(logging.FieldErrorHint, "run 'mashup check' for details"),
		)
	}
}
