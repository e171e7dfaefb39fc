package chat

import (
	"fmt"
	"path/filepath"
	"strings"

	"pdfchat/internal/conversation"
	"pdfchat/internal/logging"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if m.mode == pickerView {
			return m.handlePickerKey(msg)
		}
		if next, cmd, handled := m.handleKey(msg); handled {
			next.refresh()
			return next, cmd
		}

	case chatReplyMsg:
		if msg.err != nil {
			m.session.FailChat(msg.ticket, msg.err)
		} else {
			m.session.ApplyChatResponse(msg.ticket, msg.answer, msg.sources)
		}
		m.refresh()
		return m, nil

	case uploadProgressMsg:
		m.session.UploadProgress(msg.ticket, msg.sent, msg.total)
		return m, waitForUploadProgress(msg.events)

	case uploadDoneMsg:
		m.session.FinishUpload(msg.ticket, msg.message, msg.err)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// Everything else feeds the active component.
	if m.mode == pickerView {
		var cmd tea.Cmd
		m.filepicker, cmd = m.filepicker.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	if _, isKey := msg.(tea.KeyMsg); !isKey {
		// Keys belong to the input; the viewport only scrolls on mouse and pgup/pgdown.
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// handleKey processes chat-view shortcuts. handled is false for keys that
// belong to the text input.
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		m.Shutdown()
		return m, tea.Quit, true

	case "esc":
		m.session.DismissNotice()
		return m, nil, true

	case "enter":
		next, cmd := m.handleSubmit()
		return next, cmd, true

	case "alt+enter":
		m.textarea.InsertString("\n")
		return m, nil, true

	case "ctrl+o":
		m.mode = pickerView
		logging.UIDebug("file picker opened in %s", m.filepicker.CurrentDirectory)
		return m, m.filepicker.Init(), true

	case "ctrl+u":
		next, cmd := m.startUpload()
		return next, cmd, true

	case "ctrl+l":
		m.session.ClearSelection()
		return m, nil, true

	case "pgup":
		m.viewport.HalfViewUp()
		return m, nil, true

	case "pgdown":
		m.viewport.HalfViewDown()
		return m, nil, true
	}
	return m, nil, false
}

// handlePickerKey routes keys to the file picker while it is open.
func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.Shutdown()
		return m, tea.Quit
	case "esc":
		m.mode = chatView
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.filepicker, cmd = m.filepicker.Update(msg)

	if ok, path := m.filepicker.DidSelectFile(msg); ok {
		m.mode = chatView
		if m.session.AddFile(path) {
			m.session.Notify(conversation.NoticeInfo, fmt.Sprintf("Selected %s (%d selected). Press Ctrl+U to upload.",
				filepath.Base(path), len(m.session.Selection())))
		}
		m.refresh()
		return m, cmd
	}
	if ok, path := m.filepicker.DidSelectDisabledFile(msg); ok {
		m.session.Notify(conversation.NoticeWarning, fmt.Sprintf("%s is not a PDF.", filepath.Base(path)))
	}
	return m, cmd
}

// handleSubmit sends the input as a question or runs it as a slash command.
func (m Model) handleSubmit() (Model, tea.Cmd) {
	input := m.textarea.Value()
	if trimmed := strings.TrimSpace(input); strings.HasPrefix(trimmed, "/") {
		m.textarea.Reset()
		return m.handleCommand(trimmed)
	}

	m.session.SetInput(input)
	ticket, ok := m.session.Submit()
	if !ok {
		return m, nil
	}
	m.textarea.Reset()
	return m, tea.Batch(m.chatCmd(ticket), m.spinner.Tick)
}

// startUpload uploads the current selection.
func (m Model) startUpload() (Model, tea.Cmd) {
	ticket, ok := m.session.BeginUpload()
	if !ok {
		m.session.Notify(conversation.NoticeWarning, "No PDFs selected. Press Ctrl+O or use /attach first.")
		return m, nil
	}

	cmds := []tea.Cmd{m.spinner.Tick}
	var events chan uploadProgressMsg
	if m.session.Features().TrackUploadProgress {
		events = make(chan uploadProgressMsg, 32)
		cmds = append(cmds, waitForUploadProgress(events))
	}
	cmds = append(cmds, m.uploadCmd(ticket, events))
	return m, tea.Batch(cmds...)
}

// busy reports whether any request is in flight.
func (m Model) busy() bool {
	return m.session.PendingCount() > 0 || m.session.Uploading()
}

// resize lays the widget out for a terminal of the given size.
func (m *Model) resize(width, height int) {
	if width < 20 {
		width = 20
	}
	if height < 10 {
		height = 10
	}
	m.width = width
	m.height = height

	inner := width - 4
	m.textarea.SetWidth(inner)
	m.viewport.Width = inner
	m.progress.Width = inner
	m.filepicker.Height = height - 6

	wrap := m.wordWrap
	if inner < wrap {
		wrap = inner
	}
	m.renderer = newRenderer(m.styles.Theme.IsDark, wrap)
	m.cache.Clear()

	m.ready = true
	m.lastRevision = -1
	m.refresh()
}

// refresh re-renders the transcript and sizes the viewport to the space left
// by the surrounding panels. It scrolls to the newest entry when the
// history changed.
func (m *Model) refresh() {
	if !m.ready {
		return
	}

	chrome := lipgloss.Height(m.renderStatusBar()) +
		inputHeight + 2 + // input border
		lipgloss.Height(m.renderFooter()) +
		shellChrome
	if panels := m.renderPanels(); panels != "" {
		chrome += lipgloss.Height(panels)
	}
	h := m.height - chrome
	if h < 3 {
		h = 3
	}
	m.viewport.Height = h

	if rev := m.session.Revision(); rev != m.lastRevision {
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		m.lastRevision = rev
	}
}
