package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/logandonley/font-activator/pkg/fm"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		file     string
		activate bool
	)
	cmd := &cobra.Command{
		Use:   "import [font names...] | -f <file>",
		Short: "Import one or more fonts into the library",
		Long: `Import fonts from any supported source into the font library.
Imported fonts are not active until activated.

Examples:
  # Import a single font
  fa import "FiraCode"

  # Import fonts from specific sources
  fa import "FiraCode@nerdfonts" "RobotoMono@fontsource"

  # Import from a direct URL and activate
  fa import https://example.com/font.zip --activate

  # Import multiple fonts from a config file
  fa import -f fonts.txt`,
		Args: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				if len(args) > 0 {
					return fmt.Errorf("when using -f flag, no additional arguments should be provided")
				}
				return nil
			}
			if len(args) < 1 {
				return fmt.Errorf("requires at least 1 font name when not using -f flag")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var (
				imported  []string
				importErr error
			)

			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("opening config file: %w", err)
				}
				defer f.Close()

				fmt.Fprintf(out, "Importing fonts from %s...\n", file)
				imported, err = a.library.ImportFromConfig(cmd.Context(), f)
				if err != nil {
					importErr = fmt.Errorf("importing fonts from config: %w", err)
				} else {
					fmt.Fprintf(out, "Imported %d font files from %s\n", len(imported), file)
				}
			} else {
				var failed, skipped []string
				successful := 0
				for _, name := range args {
					fmt.Fprintf(out, "Importing %s...\n", name)
					paths, err := a.library.Import(cmd.Context(), name)
					if errors.Is(err, fm.ErrAlreadyImported) {
						skipped = append(skipped, name)
						continue
					}
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "Error importing %s: %v\n", name, err)
						failed = append(failed, name)
						continue
					}
					imported = append(imported, paths...)
					successful++
				}

				fmt.Fprintf(out, "\nImport Summary:\n")
				fmt.Fprintf(out, "%s: %d\n", okStyle.Render("Successfully imported"), successful)
				summary(out, warnStyle, "Skipped (already imported)", skipped)
				summary(out, failStyle, "Failed to import", failed)
				if len(failed) > 0 {
					importErr = fmt.Errorf("some fonts failed to import")
				}
			}

			// Fonts that did import are activated even when others failed.
			if activate && len(imported) > 0 {
				if err := a.activate(cmd, imported); err != nil && importErr == nil {
					return err
				}
			}
			return importErr
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Import fonts listed in a file, one per line")
	cmd.Flags().BoolVar(&activate, "activate", false, "Activate the imported fonts")
	return cmd
}

func newLibraryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "library",
		Short: "List imported fonts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fonts, err := a.library.List()
			if err != nil {
				return fmt.Errorf("listing library: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(fonts) == 0 {
				fmt.Fprintln(out, "No fonts imported")
				return nil
			}

			header(out, "Imported fonts:")
			family := ""
			for _, font := range fonts {
				if dir := filepath.Base(filepath.Dir(font.SourcePath)); dir != family {
					family = dir
					fmt.Fprintf(out, "  %s\n", family)
				}
				fmt.Fprintf(out, "    - %s %s\n", font.FileName(), dimStyle.Render(font.SourcePath))
			}
			return nil
		},
	}
}
