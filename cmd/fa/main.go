package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/logandonley/font-activator/internal/config"
	"github.com/logandonley/font-activator/internal/logging"
	"github.com/logandonley/font-activator/internal/platform"
	"github.com/logandonley/font-activator/internal/registry"
	"github.com/logandonley/font-activator/internal/store"
	"github.com/logandonley/font-activator/pkg/fm"
)

// folderKey holds the folder scan uses when no directory is given.
const folderKey = "fontFolder"

// app holds everything a command needs. It is filled by the root command's
// PersistentPreRunE, so subcommands only read it inside RunE.
type app struct {
	cfgFile string
	verbose bool

	cfg      *config.Config
	logger   *zap.Logger
	platform platform.Platform
	store    store.Store
	registry *registry.Registry
	engine   *fm.Engine
	library  *fm.Library
}

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fa",
		Short: "fa activates and deactivates fonts without installing them for good",
		Long: `A font activator for macOS, Windows and Linux.

Activating a font copies it into your user font directory and tells the OS.
Deactivating moves it into a holding area so it can be activated again.

Examples:
  # Remember a folder of fonts and see which are active
  fa folder ~/Fonts
  fa scan

  # Activate every font in a folder
  fa activate --dir ~/Fonts

  # Deactivate a font
  fa deactivate ~/Fonts/Inter.ttf

  # Import a font from Nerd Fonts and activate it
  fa import "FiraCode@nerdfonts" --activate`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newScanCmd(a),
		newFolderCmd(a),
		newActivateCmd(a),
		newDeactivateCmd(a),
		newStatusCmd(a),
		newListCmd(a),
		newImportCmd(a),
		newLibraryCmd(a),
		newWatchCmd(a),
		newIntegrationsCmd(a),
	)
	return rootCmd
}

func (a *app) setup() error {
	path := a.cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg

	a.logger, err = logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}

	timeout, err := cfg.NotifyTimeout()
	if err != nil {
		return err
	}
	a.platform, err = platform.Current(platform.WithTimeout(timeout))
	if err != nil {
		return err
	}

	a.store, err = store.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	a.registry, err = registry.Open(a.store)
	if err != nil {
		return err
	}

	a.engine, err = fm.NewEngine(fm.Options{
		Platform: a.platform,
		Registry: a.registry,
		Holding:  fm.NewHoldingArea(cfg.HoldingDir),
		Logger:   a.logger,
		// darwin runs two commands, each bounded by timeout
		NotifyTimeout: 2 * timeout,
		Parallelism:   cfg.Parallelism,
	})
	if err != nil {
		return err
	}

	a.library = fm.NewLibrary(cfg.LibraryDir, a.logger)
	if err := a.library.RegisterSource(fm.NewNerdFontsSource()); err != nil {
		return fmt.Errorf("registering NerdFonts source: %w", err)
	}
	if err := a.library.RegisterSource(fm.NewFontSourceAPI()); err != nil {
		return fmt.Errorf("registering FontSource API: %w", err)
	}

	a.logger.Debug("activator ready",
		zap.String("config", path),
		zap.String("store", cfg.Store.Backend),
		zap.String("platform", a.platform.Name()))
	return nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.logger != nil {
			a.logger.Warn("closing state store", zap.Error(err))
		}
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// savedFolder returns the folder stored by `fa folder`, or "".
func (a *app) savedFolder() (string, error) {
	data, ok, err := a.store.Get(folderKey)
	if err != nil || !ok {
		return "", err
	}
	var dir string
	if err := json.Unmarshal(data, &dir); err != nil {
		return "", fmt.Errorf("decoding saved folder: %w", err)
	}
	return dir, nil
}

func (a *app) saveFolder(dir string) error {
	data, err := json.Marshal(dir)
	if err != nil {
		return err
	}
	return a.store.Set(folderKey, data)
}
