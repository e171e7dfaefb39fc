package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pdfchat/internal/logging"
	"pdfchat/internal/watch"

	"github.com/spf13/cobra"
)

func (a *app) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Upload PDFs as they appear in a directory",
		Long: `Watches a directory and uploads new or changed PDFs once writes settle
(watch.debounce). Runs until interrupted.

Example:
  pdfchat watch ~/Downloads`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runWatch(ctx, cmd, args[0])
		},
	}
}

func (a *app) runWatch(ctx context.Context, cmd *cobra.Command, dir string) error {
	w, err := watch.New(a.cfg.IsAllowedFile, a.cfg.GetWatchDebounce())
	if err != nil {
		return err
	}
	defer w.Close()

	batches, err := w.Watch(ctx, dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s for PDFs (Ctrl+C to stop)\n", dir)

	up := a.newUploader(out, cmd.ErrOrStderr())
	for batch := range batches {
		fmt.Fprintf(out, "Uploading %d PDFs...\n", len(batch))
		if err := up.uploadAll(ctx, batch); err != nil {
			if ctx.Err() != nil {
				break
			}
			// Keep watching; the next batch may succeed.
			logging.WatchWarn("batch upload failed: %v", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "Upload failed: %v\n", err)
		}
	}

	logging.Watch("watch of %s stopped", dir)
	return nil
}
