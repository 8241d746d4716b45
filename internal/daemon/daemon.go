package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"stemsense/internal/analyzer"
	"stemsense/internal/api"
	"stemsense/internal/artifacts"
	"stemsense/internal/config"
	"stemsense/internal/deps"
	"stemsense/internal/downloader"
	"stemsense/internal/logging"
	"stemsense/internal/notifications"
	"stemsense/internal/packager"
	"stemsense/internal/preflight"
	"stemsense/internal/separator"
	"stemsense/internal/task"
	"stemsense/internal/workflow"
)

// Daemon coordinates the task store, workflow engine, and API gateway, and
// enforces single-instance execution via a lock file.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *task.Store
	engine *workflow.Engine
	server *api.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	TaskDBPath   string
	LockFilePath string
	Tasks        task.HealthSummary
	Dependencies []deps.Status
}

// New constructs a daemon with its full dependency graph wired from config.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := task.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}

	bucket, err := artifacts.NewBucketStore(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init artifact bucket: %w", err)
	}

	notifier := notifications.NewService(cfg)
	engine := workflow.NewEngine(cfg, store, workflow.Deps{
		Bucket:    bucket,
		Fetcher:   downloader.New(cfg, logger, bucket),
		Separator: separator.New(cfg, logger),
		Analyzer:  analyzer.New(cfg, logger),
		Packager:  packager.New(cfg, logger, bucket),
		Notifier:  notifier,
	}, logger)

	server := api.NewServer(cfg, store, engine, bucket, logger)

	lockPath := filepath.Join(cfg.Paths.LogDir, "stemsensed.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:    store,
		engine:   engine,
		server:   server,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, runs preflight checks, and begins serving.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another stemsense daemon instance is already running")
	}

	for _, result := range preflight.RunAll(ctx, d.cfg) {
		if result.Passed {
			d.logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		d.logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.server.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("stemsense daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops serving, waits for in-flight tasks to observe cancellation, and
// releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.Stop()
	d.engine.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("stemsense daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Store exposes the task store for CLI helpers.
func (d *Daemon) Store() *task.Store {
	return d.store
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	health, err := d.store.Health(ctx)
	if err != nil {
		d.logger.Warn("task health query failed", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		TaskDBPath:   d.store.Path(),
		LockFilePath: d.lockPath,
		Tasks:        health,
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
}
