package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/logandonley/font-activator/pkg/fm"
)

func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [dir]",
		Short: "List the fonts in a folder and whether each is active",
		Long: `List the font files directly inside a folder.
Without a directory, the folder saved with "fa folder" is scanned.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.folderArg(args)
			if err != nil {
				return err
			}

			fonts, err := a.engine.Scan(dir)
			if err != nil {
				return fmt.Errorf("scanning %s: %w", dir, err)
			}

			out := cmd.OutOrStdout()
			if len(fonts) == 0 {
				fmt.Fprintf(out, "No fonts found in %s\n", dir)
				return nil
			}

			header(out, "Fonts in %s:", dir)
			width := 0
			for _, font := range fonts {
				width = max(width, len(font.FileName()))
			}
			active := 0
			for _, font := range fonts {
				ok, err := a.engine.IsActive(cmd.Context(), font.SourcePath)
				if err != nil {
					return fmt.Errorf("checking %s: %w", font.FileName(), err)
				}
				state := dimStyle.Render("inactive")
				if ok {
					state = okStyle.Render("active")
					active++
				}
				fmt.Fprintf(out, "  %s  %s\n", padRight(font.FileName(), width), state)
			}
			fmt.Fprintf(out, "\n%d fonts, %d active\n", len(fonts), active)
			return nil
		},
	}
}

func newFolderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "folder [dir]",
		Short: "Show or set the folder scanned by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				dir, err := a.savedFolder()
				if err != nil {
					return err
				}
				if dir == "" {
					fmt.Fprintln(out, "No font folder set")
					return nil
				}
				fmt.Fprintln(out, dir)
				return nil
			}

			dir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolving %s: %w", args[0], err)
			}
			info, err := os.Stat(dir)
			if err != nil {
				return &fm.DirectoryUnavailableError{Dir: dir, Err: err}
			}
			if !info.IsDir() {
				return &fm.DirectoryUnavailableError{Dir: dir, Err: fmt.Errorf("not a directory")}
			}
			if err := a.saveFolder(dir); err != nil {
				return fmt.Errorf("saving font folder: %w", err)
			}
			fmt.Fprintf(out, "Font folder set to %s\n", dir)
			return nil
		},
	}
}

func newActivateCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "activate [paths...] | --dir <dir>",
		Short: "Activate one or more fonts",
		Long: `Activate fonts by copying them into your user font directory.

Examples:
  # Activate a single font
  fa activate ~/Fonts/Inter.ttf

  # Activate every font in a folder
  fa activate --dir ~/Fonts`,
		Args: func(cmd *cobra.Command, args []string) error {
			if dir != "" {
				if len(args) > 0 {
					return fmt.Errorf("when using --dir, no additional arguments should be provided")
				}
				return nil
			}
			if len(args) < 1 {
				return fmt.Errorf("requires at least 1 font path when not using --dir")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if dir != "" {
				fonts, err := a.engine.Scan(dir)
				if err != nil {
					return fmt.Errorf("scanning %s: %w", dir, err)
				}
				paths = nil
				for _, font := range fonts {
					paths = append(paths, font.SourcePath)
				}
				if len(paths) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No fonts found in %s\n", dir)
					return nil
				}
			}
			return a.activate(cmd, paths)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Activate every font in a folder")
	return cmd
}

// activate runs a batch activation and prints a summary.
func (a *app) activate(cmd *cobra.Command, paths []string) error {
	out := cmd.OutOrStdout()
	var activated, skipped, failed []string

	for _, res := range a.engine.ActivateAll(cmd.Context(), paths) {
		name := filepath.Base(res.Path)
		switch res.Outcome {
		case fm.Activated:
			activated = append(activated, name)
		case fm.AlreadyActive:
			skipped = append(skipped, name)
		default:
			fmt.Fprintf(cmd.ErrOrStderr(), "Error activating %s: %v\n", name, res.Err)
			failed = append(failed, name)
		}
	}

	fmt.Fprintf(out, "\nActivation Summary:\n")
	fmt.Fprintf(out, "%s: %d\n", okStyle.Render("Activated"), len(activated))
	summary(out, warnStyle, "Skipped (already active)", skipped)
	summary(out, failStyle, "Failed to activate", failed)
	if len(failed) > 0 {
		return fmt.Errorf("some fonts failed to activate")
	}
	return nil
}

func newDeactivateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate [paths...]",
		Short: "Deactivate one or more fonts",
		Long: `Deactivate fonts by moving their active copy into the holding area.
Paths may be the original file or the active copy.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var deactivated, skipped, failed []string

			for _, path := range args {
				name := filepath.Base(path)
				outcome, err := a.engine.Deactivate(cmd.Context(), path)
				switch {
				case err != nil:
					fmt.Fprintf(cmd.ErrOrStderr(), "Error deactivating %s: %v\n", name, err)
					failed = append(failed, name)
				case outcome == fm.NotActive:
					skipped = append(skipped, name)
				default:
					deactivated = append(deactivated, name)
				}
			}

			fmt.Fprintf(out, "\nDeactivation Summary:\n")
			fmt.Fprintf(out, "%s: %d\n", okStyle.Render("Deactivated"), len(deactivated))
			summary(out, warnStyle, "Skipped (not active)", skipped)
			summary(out, failStyle, "Failed to deactivate", failed)
			if len(failed) > 0 {
				return fmt.Errorf("some fonts failed to deactivate")
			}
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [path]",
		Short: "Show whether a font is active, or list every activation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				active, err := a.engine.IsActive(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				state := dimStyle.Render("not active")
				if active {
					state = okStyle.Render("active")
				}
				fmt.Fprintf(out, "%s: %s\n", filepath.Base(args[0]), state)
				return nil
			}

			records := a.engine.Records()
			if len(records) == 0 {
				fmt.Fprintln(out, "No active fonts")
				return nil
			}
			header(out, "Active fonts:")
			for _, rec := range records {
				fmt.Fprintf(out, "  - %s %s\n", rec.OriginalPath, dimStyle.Render("-> "+rec.ActivePath))
			}
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the fonts in the system and user font directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fonts, err := a.engine.ListSystemFonts(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing fonts: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(fonts) == 0 {
				fmt.Fprintln(out, "No fonts found")
				return nil
			}

			var current fm.Origin
			for _, font := range fonts {
				if font.Origin != current {
					current = font.Origin
					header(out, "%s fonts:", titleCase(string(current)))
				}
				fmt.Fprintf(out, "  - %s\n", font.FileName())
			}
			return nil
		},
	}
}

// folderArg returns the directory argument or the saved folder.
func (a *app) folderArg(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	dir, err := a.savedFolder()
	if err != nil {
		return "", err
	}
	if dir == "" {
		return "", fmt.Errorf("no folder given and none saved; run \"fa folder <dir>\" first")
	}
	return dir, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
