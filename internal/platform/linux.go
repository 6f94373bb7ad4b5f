package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

type linuxPlatform struct {
	notifier *commandNotifier
}

func newLinuxPlatform(o options) Platform {
	return &linuxPlatform{
		notifier: &commandNotifier{
			platform: "linux",
			runner:   o.runner,
			timeout:  o.timeout,
			commands: func(_, activePath string) ([]command, error) {
				// Only the directory that changed is rescanned; no sudo fallback.
				return []command{{name: "fc-cache", args: []string{"-f", filepath.Dir(activePath)}}}, nil
			},
		},
	}
}

func (p *linuxPlatform) Name() string {
	return "linux"
}

func (p *linuxPlatform) FontPaths() (FontPaths, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return FontPaths{}, fmt.Errorf("getting user home directory: %w", err)
	}

	userDir := filepath.Join(homeDir, ".local/share/fonts")
	return FontPaths{
		SystemDir: "/usr/local/share/fonts",
		UserDir:   userDir,
		Consult:   []string{userDir},
	}, nil
}

func (p *linuxPlatform) Notifier() Notifier {
	return p.notifier
}
