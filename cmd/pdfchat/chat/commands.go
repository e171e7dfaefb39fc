package chat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pdfchat/internal/conversation"
	"pdfchat/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
)

const helpText = `Keys
  Enter        send question
  Alt+Enter    new line
  Ctrl+O       pick a PDF to add to the selection
  Ctrl+U       upload selected PDFs
  Ctrl+L       clear selection
  PgUp/PgDn    scroll history
  Esc          dismiss this notice
  Ctrl+C       quit

Commands
  /attach <paths...>  select PDFs (globs allowed)
  /upload             upload the selection
  /files              list selected files
  /clear              clear the selection
  /mode               show the current mode and sources
  /help               show this help
  /quit               quit`

// handleCommand runs a slash command typed into the input.
func (m Model) handleCommand(input string) (Model, tea.Cmd) {
	parts := strings.Fields(input)
	cmd, args := parts[0], parts[1:]
	logging.UIDebug("command %s args=%d", cmd, len(args))

	switch cmd {
	case "/attach":
		m.attach(args)
		return m, nil

	case "/upload":
		return m.startUpload()

	case "/files":
		sel := m.session.Selection()
		if len(sel) == 0 {
			m.session.Notify(conversation.NoticeInfo, "No PDFs selected.")
			return m, nil
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d selected:", len(sel))
		for _, p := range sel {
			sb.WriteString("\n  " + p)
		}
		m.session.Notify(conversation.NoticeInfo, sb.String())
		return m, nil

	case "/clear":
		m.session.ClearSelection()
		m.session.Notify(conversation.NoticeInfo, "Selection cleared.")
		return m, nil

	case "/mode":
		text := "Current Mode: " + string(m.session.Mode())
		if src := m.session.Sources(); len(src) > 0 {
			text += fmt.Sprintf(" (%d sources)", len(src))
		}
		m.session.Notify(conversation.NoticeInfo, text)
		return m, nil

	case "/help":
		m.session.Notify(conversation.NoticeInfo, helpText)
		return m, nil

	case "/quit", "/exit":
		m.Shutdown()
		return m, tea.Quit

	default:
		m.session.Notify(conversation.NoticeWarning, fmt.Sprintf("Unknown command %s. Type /help for a list.", cmd))
		return m, nil
	}
}

// attach replaces the selection with the files matching args.
func (m Model) attach(args []string) {
	if len(args) == 0 {
		m.session.Notify(conversation.NoticeWarning, "Usage: /attach <paths...>")
		return
	}

	var selected, rejected []string
	for _, arg := range args {
		matches, err := filepath.Glob(expandHome(arg))
		if err != nil || len(matches) == 0 {
			rejected = append(rejected, arg)
			continue
		}
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil || info.IsDir() || !m.allow(path) {
				rejected = append(rejected, path)
				continue
			}
			selected = append(selected, path)
		}
	}

	if len(selected) == 0 {
		m.session.Notify(conversation.NoticeWarning, "No PDFs matched: "+strings.Join(rejected, ", "))
		return
	}

	// SelectFiles raises its own warning when the batch is truncated.
	if dropped := m.session.SelectFiles(selected); dropped > 0 {
		return
	}
	text := fmt.Sprintf("Selected %d PDFs. Press Ctrl+U to upload.", len(selected))
	if len(rejected) > 0 {
		text += " Skipped: " + strings.Join(rejected, ", ")
	}
	m.session.Notify(conversation.NoticeInfo, text)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
