package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Show the effective configuration and check the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg := a.cfg

			fmt.Fprintln(out, "Configuration")
			fmt.Fprintf(out, "  config file:     %s\n", a.resolvedConfigPath())
			fmt.Fprintf(out, "  base url:        %s\n", cfg.API.BaseURL)
			fmt.Fprintf(out, "  chat timeout:    %s\n", durationOrNone(cfg.GetChatTimeout()))
			fmt.Fprintf(out, "  upload timeout:  %s\n", durationOrNone(cfg.GetUploadTimeout()))
			fmt.Fprintf(out, "  track sources:   %t\n", cfg.Features.TrackSources)
			fmt.Fprintf(out, "  track progress:  %t\n", cfg.Features.TrackUploadProgress)
			fmt.Fprintf(out, "  max files:       %d\n", cfg.Upload.MaxFiles)
			if cfg.History.Enabled {
				fmt.Fprintf(out, "  history:         %s (%s)\n", cfg.History.Path, cfg.History.Driver)
			} else {
				fmt.Fprintln(out, "  history:         off")
			}
			if cfg.Logging.DebugMode {
				fmt.Fprintf(out, "  log file:        %s\n", cfg.Logging.File)
			}

			fmt.Fprintln(out, "\nBackend")
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			code, err := a.newClient().Health(ctx)
			if err != nil {
				fmt.Fprintf(out, "  ✗ %v\n", err)
				return fmt.Errorf("backend check failed")
			}
			fmt.Fprintf(out, "  ✓ reachable (HTTP %d)\n", code)
			return nil
		},
	}
}

func durationOrNone(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}
