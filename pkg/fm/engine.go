package fm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/logandonley/font-activator/internal/platform"
	"github.com/logandonley/font-activator/internal/registry"
)

// Manager is the caller-facing set of font activation operations
type Manager interface {
	// Scan lists the fonts in a directory the user picked
	Scan(dir string) ([]FontDescriptor, error)

	// Activate makes the font at sourcePath visible to the OS
	Activate(ctx context.Context, sourcePath string) (Outcome, error)

	// Deactivate undoes an activation, by original or active path
	Deactivate(ctx context.Context, fontPath string) (Outcome, error)

	// IsActive reports whether a font is active
	IsActive(ctx context.Context, fontPath string) (bool, error)

	// ListSystemFonts returns the fonts in the system and user font directories
	ListSystemFonts(ctx context.Context) ([]FontDescriptor, error)
}

// Outcome is the result of an activation state transition
type Outcome int

const (
	Failed Outcome = iota
	Activated
	AlreadyActive
	Deactivated
	NotActive
)

func (o Outcome) String() string {
	switch o {
	case Activated:
		return "activated"
	case AlreadyActive:
		return "already active"
	case Deactivated:
		return "deactivated"
	case NotActive:
		return "not active"
	default:
		return "failed"
	}
}

// DefaultParallelism bounds ActivateAll when Options.Parallelism is unset.
const DefaultParallelism = 4

// Options wires an Engine to its collaborators
type Options struct {
	Platform platform.Platform
	Registry *registry.Registry
	Holding  *HoldingArea
	Logger   *zap.Logger

	// NotifyTimeout bounds how long an operation waits for the OS
	// notification. Defaults to twice platform.DefaultTimeout.
	NotifyTimeout time.Duration

	// Parallelism bounds concurrent activations in ActivateAll.
	Parallelism int
}

// Engine moves fonts between the inactive and active states and keeps the
// activation registry in step with the filesystem.
type Engine struct {
	platform      platform.Platform
	registry      *registry.Registry
	holding       *HoldingArea
	logger        *zap.Logger
	notifyTimeout time.Duration
	parallelism   int
	locks         *keyedMutex
}

var _ Manager = (*Engine)(nil)

func NewEngine(opts Options) (*Engine, error) {
	if opts.Platform == nil {
		return nil, fmt.Errorf("creating engine: platform is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("creating engine: registry is required")
	}
	if opts.Holding == nil {
		return nil, fmt.Errorf("creating engine: holding area is required")
	}

	e := &Engine{
		platform:      opts.Platform,
		registry:      opts.Registry,
		holding:       opts.Holding,
		logger:        opts.Logger,
		notifyTimeout: opts.NotifyTimeout,
		parallelism:   opts.Parallelism,
		locks:         newKeyedMutex(),
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.notifyTimeout <= 0 {
		e.notifyTimeout = 2 * platform.DefaultTimeout
	}
	if e.parallelism <= 0 {
		e.parallelism = DefaultParallelism
	}
	e.logger.Debug("font engine ready",
		zap.String("platform", e.platform.Name()),
		zap.Int("records", len(e.registry.Records())),
		zap.String("holding", e.holding.Dir()))
	return e, nil
}

// Paths returns the font directories of the running platform.
func (e *Engine) Paths() (platform.FontPaths, error) {
	return e.platform.FontPaths()
}

// Records returns the activation records in registry order.
func (e *Engine) Records() []registry.ActivationRecord {
	return e.registry.Records()
}

// Holding returns the engine's holding area.
func (e *Engine) Holding() *HoldingArea {
	return e.holding
}

// Scan lists the font files directly inside dir.
func (e *Engine) Scan(dir string) ([]FontDescriptor, error) {
	seq, err := Scan(dir, OriginImported)
	if err != nil {
		return nil, err
	}
	return Collect(seq), nil
}

// ListSystemFonts scans the system and user font directories. A directory
// that cannot be read is logged and skipped.
func (e *Engine) ListSystemFonts(ctx context.Context) ([]FontDescriptor, error) {
	paths, err := e.platform.FontPaths()
	if err != nil {
		return nil, fmt.Errorf("getting font paths: %w", err)
	}

	var fonts []FontDescriptor
	for _, src := range []struct {
		dir    string
		origin Origin
	}{
		{paths.SystemDir, OriginSystem},
		{paths.UserDir, OriginUser},
	} {
		seq, err := Scan(src.dir, src.origin)
		if err != nil {
			var unavailable *DirectoryUnavailableError
			if !errors.As(err, &unavailable) {
				return nil, err
			}
			e.logger.Warn("skipping font directory", zap.String("origin", string(src.origin)), zap.Error(err))
			continue
		}
		fonts = append(fonts, Collect(seq)...)
	}
	return fonts, nil
}

// Activate copies the font at sourcePath into the user font directory,
// notifies the OS and records the activation. A font whose file name is
// already present in a consulted font directory is reported as
// AlreadyActive without copying.
func (e *Engine) Activate(ctx context.Context, sourcePath string) (Outcome, error) {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return Failed, &ActivationIOError{Op: "copy", Path: sourcePath, Err: fmt.Errorf("resolving path: %w", err)}
	}
	sourcePath = abs
	name := filepath.Base(sourcePath)
	log := e.opLogger("activate", sourcePath)

	if !IsFontFile(name) {
		return Failed, fmt.Errorf("activating %s: not a font file", sourcePath)
	}

	unlock := e.locks.Lock(lockKey(sourcePath))
	defer unlock()

	paths, err := e.platform.FontPaths()
	if err != nil {
		return Failed, fmt.Errorf("getting font paths: %w", err)
	}
	dest := filepath.Join(paths.UserDir, name)

	if dir, ok := presentIn(paths.Consult, name); ok {
		log.Info("font already active", zap.String("dir", dir))
		return AlreadyActive, nil
	}

	if err := os.MkdirAll(paths.UserDir, 0755); err != nil {
		return Failed, &ActivationIOError{Op: "copy", Path: sourcePath, Err: fmt.Errorf("creating user fonts directory: %w", err)}
	}
	if err := copyFile(sourcePath, dest); err != nil {
		return Failed, &ActivationIOError{Op: "copy", Path: sourcePath, Err: err}
	}

	notified := e.notify(ctx, log, platform.OpActivated, dest)
	upsertErr := e.registry.Upsert(registry.ActivationRecord{OriginalPath: sourcePath, ActivePath: dest})
	e.await(log, notified)

	if upsertErr != nil {
		// The copy stays in place; the next Activate reports it as already active.
		log.Error("activation not recorded", zap.String("active", dest), zap.Error(upsertErr))
		return Failed, fmt.Errorf("persisting activation record: %w", upsertErr)
	}

	log.Info("font activated", zap.String("active", dest))
	return Activated, nil
}

// Deactivate moves the active copy of a font this tool activated into the
// holding area, notifies the OS and drops the record. fontPath may be the
// original or the active path. Fonts without a record are NotActive.
func (e *Engine) Deactivate(ctx context.Context, fontPath string) (Outcome, error) {
	abs, err := filepath.Abs(fontPath)
	if err != nil {
		return Failed, &ActivationIOError{Op: "move", Path: fontPath, Err: fmt.Errorf("resolving path: %w", err)}
	}
	fontPath = abs
	log := e.opLogger("deactivate", fontPath)

	unlock := e.locks.Lock(lockKey(fontPath))
	defer unlock()

	rec, ok := e.registry.Find(fontPath)
	if !ok {
		log.Info("font not activated by this tool")
		return NotActive, nil
	}

	if _, err := os.Lstat(rec.ActivePath); err == nil {
		held, err := e.holding.Hold(rec.ActivePath)
		if err != nil {
			return Failed, &ActivationIOError{Op: "move", Path: rec.ActivePath, Err: err}
		}
		log.Debug("font moved to holding area", zap.String("held", held))
	} else if errors.Is(err, os.ErrNotExist) {
		log.Warn("active font file already gone", zap.String("active", rec.ActivePath))
	} else {
		return Failed, &ActivationIOError{Op: "move", Path: rec.ActivePath, Err: err}
	}

	notified := e.notify(ctx, log, platform.OpDeactivated, rec.ActivePath)
	_, removeErr := e.registry.Remove(fontPath)
	e.await(log, notified)

	if removeErr != nil {
		log.Error("deactivation not recorded", zap.Error(removeErr))
		return Failed, fmt.Errorf("removing activation record: %w", removeErr)
	}

	log.Info("font deactivated", zap.String("active", rec.ActivePath))
	return Deactivated, nil
}

// IsActive reports whether a file with the font's name sits in a consulted
// font directory, or the registry holds a record for it by original path,
// active path or file name. Registry presence alone is enough because OS
// font caches lag behind the filesystem.
func (e *Engine) IsActive(ctx context.Context, fontPath string) (bool, error) {
	abs, err := filepath.Abs(fontPath)
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", fontPath, err)
	}
	fontPath = abs
	name := filepath.Base(fontPath)

	paths, err := e.platform.FontPaths()
	if err != nil {
		return false, fmt.Errorf("getting font paths: %w", err)
	}
	if _, ok := presentIn(paths.Consult, name); ok {
		return true, nil
	}
	if _, ok := e.registry.Find(fontPath); ok {
		return true, nil
	}
	return e.registry.MatchName(name), nil
}

// BatchResult is the outcome of one path in ActivateAll
type BatchResult struct {
	Path    string
	Outcome Outcome
	Err     error
}

// ActivateAll activates paths concurrently, bounded by the engine's
// parallelism. Results are returned in input order; one failure does not
// stop the others.
func (e *Engine) ActivateAll(ctx context.Context, paths []string) []BatchResult {
	results := make([]BatchResult, len(paths))

	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i, path := range paths {
		g.Go(func() error {
			outcome, err := e.Activate(ctx, path)
			results[i] = BatchResult{Path: path, Outcome: outcome, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Engine) opLogger(op, path string) *zap.Logger {
	return e.logger.With(
		zap.String("op", op),
		zap.String("id", uuid.NewString()[:8]),
		zap.String("path", path),
	)
}

// notify runs the platform notification in the background. The returned
// channel yields exactly one Result.
func (e *Engine) notify(ctx context.Context, log *zap.Logger, op, activePath string) <-chan platform.Result {
	done := make(chan platform.Result, 1)
	notifier := e.platform.Notifier()

	go func() {
		res := platform.Result{Platform: e.platform.Name(), Op: op}
		defer func() {
			if r := recover(); r != nil {
				res.Err = &platform.NotificationFailure{Platform: res.Platform, Err: fmt.Errorf("panic: %v", r)}
			}
			done <- res
		}()

		ctx, cancel := context.WithTimeout(ctx, e.notifyTimeout)
		defer cancel()
		if op == platform.OpActivated {
			res = notifier.NotifyActivated(ctx, activePath)
		} else {
			res = notifier.NotifyDeactivated(ctx, activePath)
		}
	}()

	return done
}

// await waits for a notification started by notify and logs its outcome.
// A notifier that ignores its context is abandoned after notifyTimeout.
func (e *Engine) await(log *zap.Logger, notified <-chan platform.Result) {
	timer := time.NewTimer(e.notifyTimeout)
	defer timer.Stop()

	select {
	case res := <-notified:
		if res.OK() {
			log.Debug("os notified", zap.String("command", res.Command), zap.Duration("took", res.Duration))
			return
		}
		log.Warn("os notification failed",
			zap.String("command", res.Command),
			zap.Duration("took", res.Duration),
			zap.Error(res.Err))
	case <-timer.C:
		log.Warn("os notification timed out", zap.Duration("timeout", e.notifyTimeout))
	}
}

// presentIn returns the first directory in dirs holding a file called name.
func presentIn(dirs []string, name string) (string, bool) {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return dir, true
		}
	}
	return "", false
}
