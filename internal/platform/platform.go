package platform

import (
	"fmt"
	"runtime"
	"time"
)

// FontPaths represents system and user font directories
type FontPaths struct {
	SystemDir string // System-wide font directory, never written to
	UserDir   string // Per-user font directory fonts are activated into

	// Consult lists the directories checked when deciding whether a font
	// with a given file name is already active, in lookup order.
	Consult []string
}

// Platform handles platform-specific path resolution and OS notification
type Platform interface {
	// Name returns the GOOS value this platform serves
	Name() string

	// FontPaths returns the system and user font directories
	FontPaths() (FontPaths, error)

	// Notifier returns the registration strategy used after files move
	Notifier() Notifier
}

// UnsupportedPlatformError is returned when no variant exists for a GOOS.
type UnsupportedPlatformError struct {
	GOOS string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %q", e.GOOS)
}

// DefaultTimeout bounds every external command a notifier runs.
const DefaultTimeout = 15 * time.Second

type options struct {
	runner  Runner
	timeout time.Duration
}

// Option configures a Platform
type Option func(*options)

// WithRunner replaces the function used to run external commands.
func WithRunner(r Runner) Option {
	return func(o *options) {
		if r != nil {
			o.runner = r
		}
	}
}

// WithTimeout sets the bound applied to each external command.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// Supported returns the GOOS values New accepts.
func Supported() []string {
	return []string{"darwin", "linux", "windows"}
}

// New returns the platform variant for goos
func New(goos string, opts ...Option) (Platform, error) {
	o := options{runner: ExecRunner, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	switch goos {
	case "darwin":
		return newDarwinPlatform(o), nil
	case "linux":
		return newLinuxPlatform(o), nil
	case "windows":
		return newWindowsPlatform(o), nil
	default:
		return nil, &UnsupportedPlatformError{GOOS: goos}
	}
}

// Current returns the platform variant for the running OS
func Current(opts ...Option) (Platform, error) {
	return New(runtime.GOOS, opts...)
}
