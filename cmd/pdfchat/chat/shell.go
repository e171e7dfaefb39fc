package chat

import (
	"fmt"

	"pdfchat/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
)

// shellChrome is the number of rows the shell heading takes.
const shellChrome = 1

// DefaultTitle is the shell heading.
const DefaultTitle = "PDF Chatbot"

// Shell renders the application heading above exactly one chat widget.
type Shell struct {
	title  string
	widget Model
}

// NewShell mounts w under title.
func NewShell(title string, w Model) Shell {
	if title == "" {
		title = DefaultTitle
	}
	return Shell{title: title, widget: w}
}

// Widget returns the mounted widget.
func (s Shell) Widget() Model { return s.widget }

// Init delegates to the widget.
func (s Shell) Init() tea.Cmd { return s.widget.Init() }

// Update delegates to the widget.
func (s Shell) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := s.widget.Update(msg)
	s.widget = next.(Model)
	return s, cmd
}

// View renders the heading and the widget.
func (s Shell) View() string {
	heading := s.widget.styles.Header.Render(s.title)
	return heading + "\n" + s.widget.View()
}

// RunInteractive runs the shell full screen until the user quits.
func RunInteractive(title string, opts Options) error {
	shell := NewShell(title, NewWidget(opts))
	logging.UI("starting interactive session: base_url=%s", opts.BaseURL)

	p := tea.NewProgram(shell, tea.WithAltScreen(), tea.WithMouseCellMotion())
	final, err := p.Run()
	if s, ok := final.(Shell); ok {
		s.widget.Shutdown()
	} else {
		shell.widget.Shutdown()
	}
	if err != nil {
		return fmt.Errorf("chat UI failed: %w", err)
	}
	return nil
}
