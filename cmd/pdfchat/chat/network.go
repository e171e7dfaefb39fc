package chat

import (
	"pdfchat/internal/conversation"
	"pdfchat/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
)

// chatReplyMsg carries the outcome of one /chat request.
type chatReplyMsg struct {
	ticket  conversation.ChatTicket
	answer  string
	sources []string
	err     error
}

// uploadProgressMsg reports transport progress of one upload. events is the
// channel it came from so the listener can re-arm itself.
type uploadProgressMsg struct {
	ticket conversation.UploadTicket
	sent   int64
	total  int64
	events <-chan uploadProgressMsg
}

// uploadDoneMsg carries the outcome of one /upload request.
type uploadDoneMsg struct {
	ticket  conversation.UploadTicket
	message string
	err     error
}

// chatCmd issues the request described by t.
func (m Model) chatCmd(t conversation.ChatTicket) tea.Cmd {
	ctx := m.ctx
	be := m.backend
	return func() tea.Msg {
		logging.UIDebug("chat request %d dispatched", t.RequestID)
		resp, err := be.Chat(ctx, t.Question)
		if err != nil {
			return chatReplyMsg{ticket: t, err: err}
		}
		return chatReplyMsg{ticket: t, answer: resp.Answer, sources: resp.Sources}
	}
}

// uploadCmd issues the upload described by t. When events is non-nil,
// progress is offered to it without blocking and it is closed at the end.
func (m Model) uploadCmd(t conversation.UploadTicket, events chan uploadProgressMsg) tea.Cmd {
	ctx := m.ctx
	be := m.backend
	return func() tea.Msg {
		var onProgress func(sent, total int64)
		if events != nil {
			defer close(events)
			onProgress = func(sent, total int64) {
				select {
				case events <- uploadProgressMsg{ticket: t, sent: sent, total: total, events: events}:
				default:
					// Listener is behind; a later report supersedes this one.
				}
			}
		}

		resp, err := be.Upload(ctx, t.Files, onProgress)
		if err != nil {
			return uploadDoneMsg{ticket: t, err: err}
		}
		return uploadDoneMsg{ticket: t, message: resp.Message}
	}
}

// waitForUploadProgress listens for the next progress report. It yields nil
// once the upload has finished.
func waitForUploadProgress(events <-chan uploadProgressMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}
