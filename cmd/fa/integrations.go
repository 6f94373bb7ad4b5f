package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/logandonley/font-activator/internal/integrations"
)

func newIntegrationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrations",
		Short: "List design applications found on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.integrations()
			if err != nil {
				return err
			}
			apps, err := in.Available()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(apps) == 0 {
				fmt.Fprintln(out, "No supported design applications found")
				return nil
			}

			header(out, "Design applications:")
			for _, app := range apps {
				state := dimStyle.Render("disabled")
				if app.Connected {
					state = okStyle.Render("enabled")
				}
				running, err := in.IsRunning(cmd.Context(), app.Name)
				if err != nil {
					return err
				}
				if running {
					state += " " + warnStyle.Render("(running)")
				}
				fmt.Fprintf(out, "  %s  %s  %s\n", padRight(app.Name, 10), state, dimStyle.Render(app.Path))
			}
			return nil
		},
	}
	cmd.AddCommand(newIntegrationToggleCmd(a, "enable", true), newIntegrationToggleCmd(a, "disable", false))
	return cmd
}

func newIntegrationToggleCmd(a *app, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:       verb + " <app>",
		Short:     fmt.Sprintf("%s font sync with a design application", titleCase(verb)),
		Args:      cobra.ExactArgs(1),
		ValidArgs: integrations.Apps(),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.integrations()
			if err != nil {
				return err
			}
			if err := in.SetEnabled(args[0], enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sync with %s %sd\n", args[0], verb)
			return nil
		},
	}
}

func (a *app) integrations() (*integrations.Integrations, error) {
	return integrations.New(runtime.GOOS, a.store, integrations.WithLogger(a.logger))
}
