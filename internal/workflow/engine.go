package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"stemsense/internal/analyzer"
	"stemsense/internal/artifacts"
	"stemsense/internal/config"
	"stemsense/internal/downloader"
	"stemsense/internal/logging"
	"stemsense/internal/packager"
	"stemsense/internal/services"
	"stemsense/internal/task"
)

// Fetcher downloads the source audio for a task.
type Fetcher interface {
	Fetch(ctx context.Context, taskID, query string) (downloader.Result, error)
}

// Separator splits the source audio into stems.
type Separator interface {
	Separate(ctx context.Context, taskID, sourceFile string) (string, error)
}

// Analyzer extracts musical features from the source audio.
type Analyzer interface {
	Analyze(ctx context.Context, sourceFile string) (map[string]any, error)
}

// Packager assembles and uploads the final bundle.
type Packager interface {
	Bundle(ctx context.Context, item *task.Task, analysis map[string]any) (packager.Result, error)
}

// Notifier receives lifecycle events. Delivery failures are logged and never
// affect the task outcome.
type Notifier interface {
	NotifyProcessingStarted(ctx context.Context, item *task.Task) error
	NotifyProcessingCompleted(ctx context.Context, item *task.Task) error
	NotifyProcessingFailed(ctx context.Context, item *task.Task, message string) error
}

// Deps bundles the stage adapters the engine drives.
type Deps struct {
	Bucket    artifacts.Store
	Fetcher   Fetcher
	Separator Separator
	Analyzer  Analyzer
	Packager  Packager
	Notifier  Notifier
}

// Engine walks each task through the pipeline stages, persisting every
// transition and honoring cancellation at stage checkpoints.
type Engine struct {
	cfg    *config.Config
	store  *task.Store
	deps   Deps
	logger *slog.Logger

	mu      sync.Mutex
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
	closed  bool
}

// NewEngine builds an Engine.
func NewEngine(cfg *config.Config, store *task.Store, deps Deps, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:     cfg,
		store:   store,
		deps:    deps,
		logger:  logger.With(logging.String(logging.FieldComponent, "workflow")),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Launch starts processing a task in the background and returns immediately.
func (e *Engine) Launch(taskID string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		e.Process(e.baseCtx, taskID)
	}()
}

// Close stops accepting new launches, cancels in-flight work, and waits for
// running tasks to observe the cancellation.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}

// Process runs the full pipeline for one task. Exposed for synchronous use;
// Launch is the fire-and-forget path.
func (e *Engine) Process(ctx context.Context, taskID string) {
	ctx = logging.WithTask(ctx, taskID)
	logger := logging.WithContext(ctx, e.logger)

	item, err := e.store.Get(ctx, taskID)
	if err != nil {
		logger.Error("task lookup failed", logging.Error(err))
		return
	}
	if item.IsTerminal() {
		logger.Info("task already terminal, nothing to do", logging.String("status", string(item.Status)))
		return
	}

	if e.checkpoint(ctx, logger, item, "before start") {
		return
	}

	if e.deps.Notifier != nil {
		if err := e.deps.Notifier.NotifyProcessingStarted(ctx, item); err != nil {
			logger.Warn("start notification failed", logging.Error(err))
		}
	}

	// Stage 1: fetch.
	if !e.advance(ctx, logger, item, task.StatusDownloading) {
		return
	}
	fetched, err := e.deps.Fetcher.Fetch(ctx, item.ID, item.Query)
	if err != nil {
		e.fail(ctx, logger, item, err)
		return
	}
	item.TrackName = fetched.TrackName
	item.SourceFile = fetched.SourceFile
	if !e.persist(ctx, logger, item) {
		return
	}

	if e.checkpoint(ctx, logger, item, "after fetch") {
		return
	}

	// Stage 2: separate. The source may have been swept from local disk
	// between stages; recover it from the bucket before running.
	if !e.advance(ctx, logger, item, task.StatusSeparating) {
		return
	}
	if err := e.recoverSource(ctx, logger, item); err != nil {
		e.fail(ctx, logger, item, err)
		return
	}
	stemsDir, err := e.deps.Separator.Separate(ctx, item.ID, item.SourceFile)
	if err != nil {
		e.fail(ctx, logger, item, err)
		return
	}
	item.StemsDir = stemsDir
	if !e.persist(ctx, logger, item) {
		return
	}

	if e.checkpoint(ctx, logger, item, "after separation") {
		return
	}

	// Stage 3: analyze. Best effort: failures ship a placeholder instead of
	// failing the task.
	if !e.advance(ctx, logger, item, task.StatusAnalyzing) {
		return
	}
	analysis, err := e.deps.Analyzer.Analyze(ctx, item.SourceFile)
	if err != nil {
		if ctx.Err() != nil {
			e.fail(ctx, logger, item, ctx.Err())
			return
		}
		logger.Warn("analysis failed, bundling placeholder", logging.Error(err))
		analysis = analyzer.Placeholder()
	}

	if e.checkpoint(ctx, logger, item, "after analysis") {
		return
	}

	// Stage 4: package.
	if !e.advance(ctx, logger, item, task.StatusPackaging) {
		return
	}
	bundle, err := e.deps.Packager.Bundle(ctx, item, analysis)
	if err != nil {
		e.fail(ctx, logger, item, err)
		return
	}

	item.ResultFile = bundle.BundleName
	item.ErrorMessage = ""
	item.Status = task.StatusCompleted
	if !e.persist(ctx, logger, item) {
		return
	}

	logger.Info("task completed",
		logging.String("result_file", item.ResultFile),
		logging.String(logging.FieldEventType, "task_completed"),
	)
	if e.deps.Notifier != nil {
		if err := e.deps.Notifier.NotifyProcessingCompleted(ctx, item); err != nil {
			logger.Warn("completion notification failed", logging.Error(err))
		}
	}
}

// checkpoint returns true when the task was cancelled and processing must
// stop. Checkpoints run between stages so cancellation takes effect at the
// next stage boundary.
func (e *Engine) checkpoint(ctx context.Context, logger *slog.Logger, item *task.Task, where string) bool {
	cancelled, err := e.store.IsCancelled(ctx, item.ID)
	if err != nil {
		logger.Warn("cancellation check failed, continuing", logging.Error(err))
		return false
	}
	if cancelled {
		logger.Info("task cancelled, stopping",
			logging.String("checkpoint", where),
			logging.String(logging.FieldEventType, "task_cancelled"),
		)
		return true
	}
	return false
}

// advance moves the task to the next stage status. Returns false when the
// write was rejected because a cancellation won the race.
func (e *Engine) advance(ctx context.Context, logger *slog.Logger, item *task.Task, status task.Status) bool {
	item.Status = status
	if !e.persist(ctx, logger, item) {
		return false
	}
	logger.Info("stage started", logging.String("stage", string(status)))
	return true
}

func (e *Engine) persist(ctx context.Context, logger *slog.Logger, item *task.Task) bool {
	err := e.store.Update(ctx, item)
	if err == nil {
		return true
	}
	if errors.Is(err, task.ErrTerminal) {
		logger.Info("task reached terminal state elsewhere, stopping",
			logging.String(logging.FieldEventType, "stale_write_suppressed"),
		)
		return false
	}
	logger.Error("failed to persist task", logging.Error(err))
	return false
}

// fail records a stage failure unless the task was already cancelled: a
// cancellation that interrupted the stage must not be overwritten by the
// failure it caused.
func (e *Engine) fail(ctx context.Context, logger *slog.Logger, item *task.Task, stageErr error) {
	// Failure writes happen on a fresh context: the stage context may already
	// be dead and the terminal write must still land.
	writeCtx := context.WithoutCancel(ctx)

	current, err := e.store.Get(writeCtx, item.ID)
	if err == nil && current.Status == task.StatusCancelled {
		logger.Info("stage failure suppressed after cancellation",
			logging.Error(stageErr),
			logging.String(logging.FieldEventType, "failure_suppressed"),
		)
		return
	}

	message := services.Message(stageErr)
	if message == "" {
		message = "processing failed"
	}
	item.SetFailed(message)
	if updateErr := e.store.Update(writeCtx, item); updateErr != nil {
		if errors.Is(updateErr, task.ErrTerminal) {
			logger.Info("stage failure suppressed after terminal transition",
				logging.Error(stageErr),
				logging.String(logging.FieldEventType, "failure_suppressed"),
			)
			return
		}
		logger.Error("failed to persist stage failure", logging.Error(updateErr))
		return
	}

	logger.Error("stage failed",
		logging.Error(stageErr),
		logging.String("error_message", message),
		logging.String(logging.FieldEventType, "stage_failure"),
	)
	if e.deps.Notifier != nil {
		if notifyErr := e.deps.Notifier.NotifyProcessingFailed(writeCtx, item, message); notifyErr != nil {
			logger.Warn("failure notification failed", logging.Error(notifyErr))
		}
	}
}

// recoverSource restores the original download from the bucket when the
// local working copy disappeared between stages.
func (e *Engine) recoverSource(ctx context.Context, logger *slog.Logger, item *task.Task) error {
	if item.SourceFile == "" {
		return services.Wrap(services.ErrValidation, string(item.Status), "recover source", "Stem separation failed", errors.New("no source file recorded"))
	}
	if _, err := os.Stat(item.SourceFile); err == nil {
		return nil
	}

	objectName := item.ID + "_original" + filepath.Ext(item.SourceFile)
	exists, err := e.deps.Bucket.Exists(ctx, objectName)
	if err != nil {
		return services.Wrap(services.ErrStorage, string(item.Status), "recover source", "Stem separation failed", err)
	}
	if !exists {
		return services.Wrap(services.ErrStorage, string(item.Status), "recover source", "Stem separation failed", errors.New("original artifact missing from bucket"))
	}
	if err := e.deps.Bucket.Download(ctx, objectName, item.SourceFile); err != nil {
		return services.Wrap(services.ErrStorage, string(item.Status), "recover source", "Stem separation failed", err)
	}
	logger.Info("source recovered from bucket",
		logging.String("object", objectName),
		logging.String(logging.FieldEventType, "artifact_recovered"),
	)
	return nil
}
