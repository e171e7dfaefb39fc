package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"pdfchat/internal/conversation"
	"pdfchat/internal/store"

	"github.com/spf13/cobra"
)

func (a *app) newSessionsCmd() *cobra.Command {
	var limit int

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Browse saved chat transcripts",
		Long: `Lists and prints transcripts saved while history.enabled is on.
Transcripts are stored in the SQLite database at history.path.`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := a.openTranscripts()
			if err != nil {
				return err
			}
			if tr == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved sessions.")
				return nil
			}
			defer tr.Close()

			sessions, err := tr.ListSessions(limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No saved sessions.")
				return nil
			}

			fmt.Fprintf(out, "Saved sessions (%d):\n", len(sessions))
			fmt.Fprintln(out, strings.Repeat("─", 72))
			for _, s := range sessions {
				fmt.Fprintf(out, "%s  %s  %3d messages  %s\n",
					s.ID, s.LastActivity.Local().Format("2006-01-02 15:04"), s.Messages, s.BaseURL)
			}
			fmt.Fprintln(out, strings.Repeat("─", 72))
			fmt.Fprintln(out, "Use 'pdfchat sessions show <id>' to print a transcript.")
			return nil
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum sessions to list")

	showCmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a saved transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := a.openTranscripts()
			if err != nil {
				return err
			}
			if tr == nil {
				return fmt.Errorf("session %s: %w", args[0], store.ErrSessionNotFound)
			}
			defer tr.Close()

			msgs, err := tr.LoadMessages(args[0])
			if err != nil {
				if errors.Is(err, store.ErrSessionNotFound) {
					return fmt.Errorf("%w (run 'pdfchat sessions list')", err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %s (%d messages)\n", args[0], len(msgs))
			fmt.Fprintln(out, strings.Repeat("─", 72))
			for _, m := range msgs {
				fmt.Fprintln(out, formatTranscriptLine(m))
			}
			return nil
		},
	}

	sessionsCmd.AddCommand(listCmd, showCmd)
	return sessionsCmd
}

// openTranscripts opens the history database for reading. Returns nil when
// no database has been written yet.
func (a *app) openTranscripts() (*store.Transcript, error) {
	if _, err := os.Stat(a.cfg.History.Path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return store.Open(a.cfg.History.Driver, a.cfg.History.Path)
}

func formatTranscriptLine(m conversation.Message) string {
	who := "Bot"
	if m.Role == conversation.RoleUser {
		who = "You"
	}
	line := fmt.Sprintf("[%s] %s: %s", m.Time.Local().Format("15:04:05"), who, m.Content)
	if m.Status == conversation.StatusFailed {
		line += " (not answered"
		if m.Err != nil {
			line += ": " + m.Err.Error()
		}
		line += ")"
	}
	return line
}
