package chat

import (
	"fmt"
	"path/filepath"
	"strings"

	"pdfchat/cmd/pdfchat/ui"
	"pdfchat/internal/conversation"
	"pdfchat/internal/logging"

	"github.com/charmbracelet/lipgloss"
)

// View renders the widget.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.mode == pickerView {
		title := m.styles.Header.Render(" Select a PDF ")
		hint := m.styles.Muted.Render("Enter: select  Esc: back")
		return lipgloss.JoinVertical(lipgloss.Left, title, m.styles.Content.Render(m.filepicker.View()), hint)
	}

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.Theme.Accent)

	parts := []string{
		m.renderStatusBar(),
		m.styles.Content.Render(m.viewport.View()),
	}
	if panels := m.renderPanels(); panels != "" {
		parts = append(parts, panels)
	}
	parts = append(parts, inputStyle.Render(m.textarea.View()), m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderStatusBar shows the mode indicator and request activity.
func (m Model) renderStatusBar() string {
	badge := m.styles.ModeChat
	if m.session.Mode() == conversation.ModePDF {
		badge = m.styles.ModePDF
	}
	bar := m.styles.Bold.Render("Current Mode: ") + badge.Render(string(m.session.Mode()))

	if n := m.session.PendingCount(); n > 0 {
		bar += "  " + m.spinner.View() + m.styles.Muted.Render(" thinking...")
	}
	if n := len(m.session.Selection()); n > 0 {
		bar += m.styles.Muted.Render(fmt.Sprintf("  %d PDFs selected", n))
	}
	return bar
}

// renderPanels renders the optional panels between history and input.
func (m Model) renderPanels() string {
	var panels []string

	if m.session.Features().TrackSources {
		if src := m.session.Sources(); len(src) > 0 {
			panels = append(panels, m.renderSources(src))
		}
	}

	if m.session.Uploading() {
		if m.session.Features().TrackUploadProgress {
			pct := m.session.Progress()
			panels = append(panels, fmt.Sprintf("Uploading... %s %3d%%",
				m.progress.ViewAs(float64(pct)/100), pct))
		} else {
			panels = append(panels, m.spinner.View()+" Uploading...")
		}
	}

	if n, ok := m.session.Notice(); ok {
		panels = append(panels, m.renderNotice(n))
	}

	if sel := m.session.Selection(); len(sel) > 0 {
		chips := make([]string, 0, len(sel))
		for _, p := range sel {
			chips = append(chips, m.styles.FileChip.Render(filepath.Base(p)))
		}
		panels = append(panels, strings.Join(chips, " "))
	}

	if len(panels) == 0 {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left, panels...)
}

func (m Model) renderSources(sources []string) string {
	var sb strings.Builder
	sb.WriteString(m.styles.Bold.Render("Sources:"))
	for _, s := range sources {
		sb.WriteString("\n• " + s)
	}
	return m.styles.SourcesBox.Render(sb.String())
}

func (m Model) renderNotice(n conversation.Notice) string {
	style := m.styles.Notice
	var color lipgloss.Color
	switch n.Level {
	case conversation.NoticeSuccess:
		color = ui.Success
	case conversation.NoticeWarning:
		color = ui.Warning
	case conversation.NoticeError:
		color = ui.Destructive
	default:
		color = ui.Info
	}
	return style.BorderForeground(color).Render(n.Text + m.styles.Muted.Render("  (Esc)"))
}

// renderHistory formats the transcript for the viewport.
func (m Model) renderHistory() string {
	msgs := m.session.Messages()
	if len(msgs) == 0 {
		return m.styles.Muted.Render("Ask a question, or upload PDFs (Ctrl+O, /attach) to switch to PDF Mode.")
	}

	var sb strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch msg.Role {
		case conversation.RoleUser:
			sb.WriteString(m.styles.UserLabel.Render("You"))
			switch msg.Status {
			case conversation.StatusPending:
				sb.WriteString(m.styles.Pending.Render("  sending..."))
			case conversation.StatusFailed:
				reason := "failed"
				if msg.Err != nil {
					reason = msg.Err.Error()
				}
				sb.WriteString(m.styles.Failed.Render("  not answered: " + reason))
			}
			sb.WriteString("\n")
			sb.WriteString(m.styles.UserMessage.Render(msg.Content))
			sb.WriteString("\n")
		default:
			sb.WriteString(m.styles.BotLabel.Render("Bot"))
			sb.WriteString("\n")
			sb.WriteString(m.renderAnswer(msg.Content))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// renderAnswer renders a bot answer as markdown, memoized per width.
func (m Model) renderAnswer(content string) string {
	key := ui.ComputeKey(content, m.viewport.Width)
	return m.cache.GetOrCompute(key, func() string {
		return strings.TrimRight(m.safeRenderMarkdown(content), "\n")
	})
}

// safeRenderMarkdown renders markdown with panic recovery.
// Without a working renderer the answer is shown as styled plain text.
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			logging.UIDebug("markdown render panicked: %v", r)
			result = m.styles.BotMessage.Render(content)
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return m.styles.BotMessage.Render(content)
}

// renderFooter shows key hints and the backend address.
func (m Model) renderFooter() string {
	hints := "Enter send • Alt+Enter newline • Ctrl+O pick • Ctrl+U upload • /help • Ctrl+C quit"
	if m.baseURL != "" {
		hints += " • " + m.baseURL
	}
	return m.styles.Footer.Render(hints)
}
