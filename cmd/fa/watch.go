package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/logandonley/font-activator/internal/watch"
	"github.com/logandonley/font-activator/pkg/fm"
)

func newWatchCmd(a *app) *cobra.Command {
	var activate bool
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a folder and report new fonts",
		Long: `Watch a folder for new font files until interrupted.
Without a directory, the folder saved with "fa folder" is watched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.folderArg(args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			w, err := watch.New(dir, func(font fm.FontDescriptor) {
				fmt.Fprintf(out, "New font: %s\n", font.FileName())
				if !activate {
					return
				}
				outcome, err := a.engine.Activate(ctx, font.SourcePath)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error activating %s: %v\n", font.FileName(), err)
					return
				}
				fmt.Fprintf(out, "  %s\n", okStyle.Render(outcome.String()))
			}, watch.WithLogger(a.logger))
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", dir)
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			a.logger.Debug("watch finished", zap.String("dir", dir), zap.Error(context.Cause(ctx)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&activate, "activate", false, "Activate fonts as they appear")
	return cmd
}
