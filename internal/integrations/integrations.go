// Package integrations detects design applications that keep their own font
// state and remembers which of them the user has connected.
package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/logandonley/font-activator/internal/platform"
	"github.com/logandonley/font-activator/internal/store"
)

// Known applications
const (
	Figma     = "figma"
	Photoshop = "photoshop"
)

// KeyPrefix prefixes the store key holding each app's enable flag.
const KeyPrefix = "integrations."

// App is a design application found on this machine.
type App struct {
	Name      string
	Path      string
	Connected bool
}

// UnknownAppError is returned for app names outside Apps().
type UnknownAppError struct {
	App string
}

func (e *UnknownAppError) Error() string {
	return fmt.Sprintf("unknown integration %q (want one of %s)", e.App, strings.Join(Apps(), ", "))
}

// ErrNotInstalled is returned when an app's support directory is absent.
var ErrNotInstalled = errors.New("application not found on this system")

// Apps returns the supported application names.
func Apps() []string {
	return []string{Figma, Photoshop}
}

// Option configures Integrations.
type Option func(*Integrations)

// WithRunner replaces the command runner used by IsRunning.
func WithRunner(r platform.Runner) Option {
	return func(i *Integrations) {
		if r != nil {
			i.runner = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Integrations) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// Integrations resolves app directories for one platform.
type Integrations struct {
	goos    string
	store   store.Store
	runner  platform.Runner
	timeout time.Duration
	logger  *zap.Logger
}

// New returns Integrations for goos, persisting flags in st.
func New(goos string, st store.Store, opts ...Option) (*Integrations, error) {
	if !slices.Contains(platform.Supported(), goos) {
		return nil, &platform.UnsupportedPlatformError{GOOS: goos}
	}
	if st == nil {
		return nil, fmt.Errorf("integrations store is required")
	}
	i := &Integrations{
		goos:    goos,
		store:   st,
		runner:  platform.ExecRunner,
		timeout: platform.DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Dir returns the support directory app uses on this platform, or "" when
// the app has no known location here.
func (i *Integrations) Dir(app string) (string, error) {
	if !slices.Contains(Apps(), app) {
		return "", &UnknownAppError{App: app}
	}

	switch i.goos {
	case "darwin":
		home := os.Getenv("HOME")
		if home == "" {
			return "", fmt.Errorf("HOME is not set")
		}
		support := filepath.Join(home, "Library", "Application Support")
		if app == Figma {
			return filepath.Join(support, "Figma"), nil
		}
		return filepath.Join(support, "Adobe", "Adobe Photoshop"), nil

	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA is not set")
		}
		if app == Figma {
			return filepath.Join(appData, "Figma"), nil
		}
		return filepath.Join(appData, "Adobe", "Adobe Photoshop"), nil
	}
	return "", nil
}

// Available lists the apps whose support directory exists.
func (i *Integrations) Available() ([]App, error) {
	var apps []App
	for _, name := range Apps() {
		dir, err := i.Dir(name)
		if err != nil {
			return nil, err
		}
		if dir == "" || !isDir(dir) {
			continue
		}
		connected, err := i.Enabled(name)
		if err != nil {
			return nil, err
		}
		apps = append(apps, App{Name: name, Path: dir, Connected: connected})
	}
	return apps, nil
}

// Enabled reports the stored flag for app. Unset means false.
func (i *Integrations) Enabled(app string) (bool, error) {
	data, ok, err := i.store.Get(KeyPrefix + app)
	if err != nil || !ok {
		return false, err
	}
	var enabled bool
	if err := json.Unmarshal(data, &enabled); err != nil {
		return false, fmt.Errorf("decoding %s flag: %w", app, err)
	}
	return enabled, nil
}

// SetEnabled persists the flag for an installed app.
func (i *Integrations) SetEnabled(app string, enabled bool) error {
	dir, err := i.Dir(app)
	if err != nil {
		return err
	}
	if dir == "" || !isDir(dir) {
		return fmt.Errorf("%s: %w", app, ErrNotInstalled)
	}

	if err := i.store.Set(KeyPrefix+app, []byte(strconv.FormatBool(enabled))); err != nil {
		return fmt.Errorf("saving %s flag: %w", app, err)
	}
	i.logger.Info("integration updated", zap.String("app", app), zap.Bool("enabled", enabled))
	return nil
}

// IsRunning reports whether a process for app is running.
func (i *Integrations) IsRunning(ctx context.Context, app string) (bool, error) {
	if !slices.Contains(Apps(), app) {
		return false, &UnknownAppError{App: app}
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	if i.goos == "windows" {
		out, err := i.runner(ctx, "tasklist", "/FI", fmt.Sprintf("IMAGENAME eq %s.exe", app), "/NH")
		if err != nil {
			return false, fmt.Errorf("checking %s: %w", app, err)
		}
		return !strings.Contains(string(out), "INFO: No tasks"), nil
	}

	for _, name := range []string{app, strings.ToUpper(app[:1]) + app[1:]} {
		out, err := i.runner(ctx, "pgrep", "-x", name)
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			// pgrep exits 1 when nothing matched
			continue
		case err != nil:
			return false, fmt.Errorf("checking %s: %w", app, err)
		}
		if strings.TrimSpace(string(out)) != "" {
			return true, nil
		}
	}
	return false, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
