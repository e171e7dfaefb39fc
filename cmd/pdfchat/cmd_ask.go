package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"pdfchat/cmd/pdfchat/ui"
	"pdfchat/internal/conversation"
	"pdfchat/internal/logging"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (a *app) newAskCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask one question and print the answer",
		Long: `Sends a single question to the backend and prints the answer, its
sources and the resulting mode.

Example:
  pdfchat ask "What does section 3 say about retention?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAsk(cmd, joinArgs(args), plain)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print the raw answer without markdown rendering")
	return cmd
}

func (a *app) runAsk(cmd *cobra.Command, question string, plain bool) error {
	tr, err := a.openHistory()
	if err != nil {
		return err
	}

	opts := conversation.Options{ID: uuid.NewString(), Features: a.features()}
	if tr != nil {
		defer tr.Close()
		opts.OnSettle = func(m conversation.Message) {
			if err := tr.SaveMessage(opts.ID, m); err != nil {
				logging.StoreError("failed to save message %s: %v", m.ID, err)
			}
		}
	}
	sess := conversation.New(opts)
	if tr != nil {
		if err := tr.StartSession(sess.ID(), a.cfg.API.BaseURL, time.Now()); err != nil {
			logging.StoreError("failed to start session %s: %v", sess.ID(), err)
		}
	}

	sess.SetInput(question)
	ticket, ok := sess.Submit()
	if !ok {
		return fmt.Errorf("question is empty")
	}

	timer := logging.StartTimer(logging.CategoryAPI, "ask")
	resp, err := a.newClient().Chat(cmd.Context(), ticket.Question)
	timer.Stop()
	if err != nil {
		sess.FailChat(ticket, err)
		return err
	}
	sess.ApplyChatResponse(ticket, resp.Answer, resp.Sources)

	out := cmd.OutOrStdout()
	printAnswer(out, resp.Answer, plain, a.cfg.UI.Theme, a.cfg.UI.WordWrap)
	printSources(out, sess)
	fmt.Fprintf(out, "\nCurrent Mode: %s\n", sess.Mode())
	return nil
}

func printAnswer(w io.Writer, answer string, plain bool, theme string, wrap int) {
	if plain {
		fmt.Fprintln(w, answer)
		return
	}

	style := "light"
	if ui.ThemeFor(theme).IsDark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		fmt.Fprintln(w, answer)
		return
	}
	rendered, err := r.Render(answer)
	if err != nil {
		fmt.Fprintln(w, answer)
		return
	}
	fmt.Fprint(w, strings.TrimRight(rendered, "\n")+"\n")
}

func printSources(w io.Writer, sess *conversation.Session) {
	sources := sess.Sources()
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for _, s := range sources {
		fmt.Fprintf(w, "  • %s\n", s)
	}
}
