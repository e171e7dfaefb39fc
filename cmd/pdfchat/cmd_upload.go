package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"pdfchat/internal/backend"
	"pdfchat/internal/conversation"
	"pdfchat/internal/logging"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/spf13/cobra"
)

func (a *app) newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <files...>",
		Short: "Upload PDFs to the backend",
		Long: `Uploads one or more PDFs so later questions are answered from them.
Selections larger than upload.max_files are sent in several batches.

Example:
  pdfchat upload report.pdf appendix.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			for _, f := range args {
				if !a.cfg.IsAllowedFile(f) {
					fmt.Fprintf(cmd.ErrOrStderr(), "Skipping %s: not a PDF\n", f)
					continue
				}
				files = append(files, f)
			}
			if len(files) == 0 {
				return fmt.Errorf("no PDFs to upload")
			}

			up := a.newUploader(cmd.OutOrStdout(), cmd.ErrOrStderr())
			return up.uploadAll(cmd.Context(), files)
		},
	}
}

// uploader drives conversation uploads for the non-interactive commands.
type uploader struct {
	client *backend.Client
	sess   *conversation.Session
	max    int
	out    io.Writer
	errOut io.Writer

	mu  sync.Mutex
	bar progress.Model
}

func (a *app) newUploader(out, errOut io.Writer) *uploader {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40
	return &uploader{
		client: a.newClient(),
		sess: conversation.New(conversation.Options{
			Features:       a.features(),
			MaxUploadFiles: a.cfg.Upload.MaxFiles,
		}),
		max:    a.cfg.Upload.MaxFiles,
		out:    out,
		errOut: errOut,
		bar:    bar,
	}
}

// uploadAll sends files in batches of at most max.
func (u *uploader) uploadAll(ctx context.Context, files []string) error {
	for start := 0; start < len(files); start += u.max {
		end := start + u.max
		if end > len(files) {
			end = len(files)
		}
		if err := u.uploadBatch(ctx, files[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (u *uploader) uploadBatch(ctx context.Context, files []string) error {
	u.sess.SelectFiles(files)
	ticket, ok := u.sess.BeginUpload()
	if !ok {
		return nil
	}

	var onProgress backend.ProgressFunc
	if u.sess.Features().TrackUploadProgress {
		onProgress = func(sent, total int64) {
			u.mu.Lock()
			defer u.mu.Unlock()
			u.sess.UploadProgress(ticket, sent, total)
			fmt.Fprintf(u.errOut, "\r%s", u.bar.ViewAs(float64(u.sess.Progress())/100))
		}
	}

	timer := logging.StartTimer(logging.CategoryUpload, fmt.Sprintf("upload of %d files", len(files)))
	resp, err := u.client.Upload(ctx, ticket.Files, onProgress)
	timer.Stop()

	u.mu.Lock()
	defer u.mu.Unlock()
	if onProgress != nil {
		fmt.Fprintln(u.errOut)
	}

	msg := ""
	if resp != nil {
		msg = resp.Message
	}
	u.sess.FinishUpload(ticket, msg, err)
	n, _ := u.sess.Notice()
	u.sess.DismissNotice()
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	fmt.Fprintln(u.out, n.Text)
	fmt.Fprintf(u.out, "Current Mode: %s\n", u.sess.Mode())
	return nil
}
