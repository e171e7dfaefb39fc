// Package conversation holds the chat widget state: message history, input
// text, file selection, upload progress, the last source list and the mode
// indicator.
//
// A Session performs no I/O. Operations that need the network return a ticket
// describing the request; the owner issues it and reports the outcome back.
// A Session is owned by a single event loop and is not safe for concurrent use.
package conversation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pdfchat/internal/logging"

	"github.com/google/uuid"
)

// ErrSuperseded marks a question whose answer arrived after a newer question
// had been sent.
var ErrSuperseded = errors.New("superseded by a newer question")

// DefaultMaxUploadFiles caps a single upload batch.
const DefaultMaxUploadFiles = 10

const uploadConfirmation = "PDFs uploaded! Future questions will use them."

// Features are the independently toggleable widget capabilities.
type Features struct {
	// TrackSources keeps the latest source list and derives the mode from it.
	TrackSources bool
	// TrackUploadProgress keeps a 0-100 percentage while an upload runs.
	TrackUploadProgress bool
}

// DefaultFeatures enables everything.
func DefaultFeatures() Features {
	return Features{TrackSources: true, TrackUploadProgress: true}
}

// Options configures a Session.
type Options struct {
	ID             string // generated when empty
	Features       Features
	MaxUploadFiles int

	// OnSettle is called once per message when it reaches a final status:
	// user messages on confirm/fail, bot messages on append.
	OnSettle func(Message)

	Clock func() time.Time
}

// ChatTicket describes a /chat request the owner must issue.
type ChatTicket struct {
	RequestID uint64
	MessageID string
	Question  string
}

// UploadTicket describes an /upload request the owner must issue.
type UploadTicket struct {
	RequestID uint64
	Files     []string
}

// Session is the chat widget state machine.
type Session struct {
	id       string
	features Features
	maxFiles int
	onSettle func(Message)
	clock    func() time.Time

	history  []Message
	revision int

	input     string
	selection []string

	uploading bool
	progress  int

	sources []string
	mode    Mode

	notice    Notice
	hasNotice bool

	chat   Fence
	upload Fence
}

// New creates an empty session in Chat Mode.
func New(opts Options) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.MaxUploadFiles <= 0 {
		opts.MaxUploadFiles = DefaultMaxUploadFiles
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Session{
		id:       opts.ID,
		features: opts.Features,
		maxFiles: opts.MaxUploadFiles,
		onSettle: opts.OnSettle,
		clock:    opts.Clock,
		mode:     ModeChat,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Features returns the enabled capabilities.
func (s *Session) Features() Features { return s.features }

// =============================================================================
// CHAT
// =============================================================================

// SetInput stores the current input text.
func (s *Session) SetInput(text string) { s.input = text }

// Input returns the current input text.
func (s *Session) Input() string { return s.input }

// Submit sends the current input. Blank input is ignored and returns false.
// Otherwise the question is appended as a pending user message, the input is
// cleared and the returned ticket must be sent to /chat.
func (s *Session) Submit() (ChatTicket, bool) {
	if strings.TrimSpace(s.input) == "" {
		return ChatTicket{}, false
	}

	question := s.input
	id := s.chat.Next()
	msg := Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   question,
		Status:    StatusPending,
		Time:      s.clock(),
		RequestID: id,
	}
	s.appendMessage(msg)
	s.input = ""

	logging.SessionDebug("submit: session=%s request=%d len=%d", s.id, id, len(question))
	return ChatTicket{RequestID: id, MessageID: msg.ID, Question: question}, true
}

// ApplyChatResponse records the answer to t. Answers to anything but the
// newest question are discarded and their question is marked failed with
// ErrSuperseded. Returns whether the answer was applied.
func (s *Session) ApplyChatResponse(t ChatTicket, answer string, sources []string) bool {
	idx := s.indexOf(t.MessageID)

	if !s.chat.IsLatest(t.RequestID) {
		s.settle(idx, StatusFailed, ErrSuperseded)
		logging.SessionDebug("stale chat response discarded: request=%d latest=%d", t.RequestID, s.chat.Latest())
		return false
	}

	s.settle(idx, StatusConfirmed, nil)

	bot := Message{
		ID:        uuid.NewString(),
		Role:      RoleBot,
		Content:   answer,
		Status:    StatusConfirmed,
		Time:      s.clock(),
		RequestID: t.RequestID,
	}
	s.appendMessage(bot)
	if s.onSettle != nil {
		s.onSettle(s.history[len(s.history)-1])
	}

	if s.features.TrackSources {
		s.sources = append([]string(nil), sources...)
		s.mode = modeFor(s.sources)
		logging.SessionDebug("sources=%d mode=%s", len(s.sources), s.mode)
	}
	return true
}

// FailChat marks the question behind t as failed. The message stays in the
// history so the user can see what did not go through.
func (s *Session) FailChat(t ChatTicket, err error) {
	if err == nil {
		err = errors.New("chat request failed")
	}
	s.settle(s.indexOf(t.MessageID), StatusFailed, err)
	logging.Session("chat request %d failed: %v", t.RequestID, err)
}

// Messages returns a copy of the history in display order.
func (s *Session) Messages() []Message {
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of messages.
func (s *Session) Len() int { return len(s.history) }

// Revision increases on every history change; views scroll to the newest
// entry when it moves.
func (s *Session) Revision() int { return s.revision }

// PendingCount returns how many questions still await an answer.
func (s *Session) PendingCount() int {
	n := 0
	for _, m := range s.history {
		if m.Status == StatusPending {
			n++
		}
	}
	return n
}

// Sources returns a copy of the latest source list.
func (s *Session) Sources() []string {
	return append([]string(nil), s.sources...)
}

// Mode returns the current mode label.
func (s *Session) Mode() Mode { return s.mode }

func (s *Session) appendMessage(m Message) {
	m.Seq = len(s.history) + 1
	s.history = append(s.history, m)
	s.revision++
}

func (s *Session) indexOf(id string) int {
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].ID == id {
			return i
		}
	}
	return -1
}

// settle moves a pending message to its final status.
func (s *Session) settle(idx int, status Status, err error) {
	if idx < 0 || s.history[idx].Status != StatusPending {
		return
	}
	s.history[idx].Status = status
	s.history[idx].Err = err
	s.revision++
	if s.onSettle != nil {
		s.onSettle(s.history[idx])
	}
}

// =============================================================================
// UPLOAD
// =============================================================================

// SelectFiles replaces the selection. Selections over the batch limit are
// truncated with a warning; the number of dropped paths is returned.
func (s *Session) SelectFiles(paths []string) int {
	var selected []string
	for _, p := range paths {
		if strings.TrimSpace(p) != "" {
			selected = append(selected, p)
		}
	}

	dropped := 0
	if len(selected) > s.maxFiles {
		dropped = len(selected) - s.maxFiles
		selected = selected[:s.maxFiles]
		s.setNotice(NoticeWarning, fmt.Sprintf("You can upload a maximum of %d PDFs. Only the first %d were kept.", s.maxFiles, s.maxFiles))
	}
	s.selection = selected
	return dropped
}

// AddFile appends one path to the selection. Returns false if it is already
// selected or the batch is full.
func (s *Session) AddFile(path string) bool {
	for _, p := range s.selection {
		if p == path {
			return false
		}
	}
	if len(s.selection) >= s.maxFiles {
		s.setNotice(NoticeWarning, fmt.Sprintf("You can upload a maximum of %d PDFs.", s.maxFiles))
		return false
	}
	s.selection = append(s.selection, path)
	return true
}

// ClearSelection drops the selected files.
func (s *Session) ClearSelection() { s.selection = nil }

// Selection returns a copy of the selected paths.
func (s *Session) Selection() []string {
	return append([]string(nil), s.selection...)
}

// BeginUpload starts uploading the selection. Returns false when nothing is
// selected.
func (s *Session) BeginUpload() (UploadTicket, bool) {
	if len(s.selection) == 0 {
		return UploadTicket{}, false
	}
	s.uploading = true
	s.progress = 0
	t := UploadTicket{
		RequestID: s.upload.Next(),
		Files:     append([]string(nil), s.selection...),
	}
	logging.Upload("upload %d started: files=%d", t.RequestID, len(t.Files))
	return t, true
}

// UploadProgress records transport progress for t. The percentage never
// decreases during an upload.
func (s *Session) UploadProgress(t UploadTicket, sent, total int64) {
	if !s.features.TrackUploadProgress || !s.uploading || !s.upload.IsLatest(t.RequestID) || total <= 0 {
		return
	}
	pct := int(sent * 100 / total)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if pct > s.progress {
		s.progress = pct
	}
}

// FinishUpload records the outcome of t. Outcomes of superseded uploads are
// ignored; returns whether the outcome was applied.
func (s *Session) FinishUpload(t UploadTicket, serverMessage string, err error) bool {
	if !s.upload.IsLatest(t.RequestID) {
		logging.UploadDebug("stale upload outcome ignored: request=%d latest=%d", t.RequestID, s.upload.Latest())
		return false
	}

	s.uploading = false
	if sameFiles(s.selection, t.Files) {
		s.selection = nil
	}

	if err != nil {
		logging.UploadError("upload %d failed: %v", t.RequestID, err)
		s.setNotice(NoticeError, fmt.Sprintf("Upload failed: %v", err))
		return true
	}

	s.progress = 100
	s.mode = ModePDF

	text := strings.TrimSpace(serverMessage)
	if text == "" {
		text = uploadConfirmation
	}
	s.setNotice(NoticeSuccess, text)
	logging.Upload("upload %d finished: files=%d", t.RequestID, len(t.Files))
	return true
}

// Uploading reports whether an upload is in flight.
func (s *Session) Uploading() bool { return s.uploading }

// Progress returns the current upload percentage.
func (s *Session) Progress() int { return s.progress }

func sameFiles(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// =============================================================================
// NOTICES
// =============================================================================

// Notify raises a notice, replacing any current one.
func (s *Session) Notify(level NoticeLevel, text string) { s.setNotice(level, text) }

// Notice returns the current notice, if any.
func (s *Session) Notice() (Notice, bool) { return s.notice, s.hasNotice }

// DismissNotice clears the current notice.
func (s *Session) DismissNotice() {
	s.notice = Notice{}
	s.hasNotice = false
}

func (s *Session) setNotice(level NoticeLevel, text string) {
	s.notice = Notice{Level: level, Text: text}
	s.hasNotice = true
}
