package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type darwinPlatform struct {
	notifier *commandNotifier
}

func newDarwinPlatform(o options) Platform {
	p := &darwinPlatform{}
	p.notifier = &commandNotifier{
		platform: "darwin",
		runner:   o.runner,
		timeout:  o.timeout,
		commands: p.commands,
	}
	return p
}

func (p *darwinPlatform) Name() string {
	return "darwin"
}

func (p *darwinPlatform) FontPaths() (FontPaths, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return FontPaths{}, fmt.Errorf("getting user home directory: %w", err)
	}

	userDir := filepath.Join(homeDir, "Library/Fonts")
	return FontPaths{
		SystemDir: "/Library/Fonts",
		UserDir:   userDir,
		Consult:   []string{userDir},
	}, nil
}

func (p *darwinPlatform) Notifier() Notifier {
	return p.notifier
}

// macOS picks up new files in ~/Library/Fonts on its own; touching the
// directory and dropping the ATS databases forces a refresh for running apps.
func (p *darwinPlatform) commands(_, activePath string) ([]command, error) {
	fontsDir := filepath.Dir(activePath)
	return []command{
		{
			label: "touch " + fontsDir,
			fn: func() error {
				now := time.Now()
				if err := os.Chtimes(fontsDir, now, now); err != nil {
					return fmt.Errorf("updating directory timestamp: %w", err)
				}
				return nil
			},
		},
		{name: "atsutil", args: []string{"databases", "-remove"}},
	}, nil
}
