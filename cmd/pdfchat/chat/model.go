// Package chat implements the interactive pdfchat terminal UI: a Shell that
// shows the application heading and hosts one chat Widget.
//
// The Widget follows the Elm architecture: network calls run as tea.Cmds and
// their outcomes come back as messages, so all conversation state is mutated
// from Update only.
package chat

import (
	"context"
	"os"
	"sync"
	"time"

	"pdfchat/cmd/pdfchat/ui"
	"pdfchat/internal/backend"
	"pdfchat/internal/conversation"
	"pdfchat/internal/logging"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// Backend is the question-answering service the widget talks to.
type Backend interface {
	Chat(ctx context.Context, question string) (*backend.ChatResponse, error)
	Upload(ctx context.Context, paths []string, onProgress backend.ProgressFunc) (*backend.UploadResponse, error)
}

// Transcript persists settled messages.
type Transcript interface {
	StartSession(id, baseURL string, at time.Time) error
	SaveMessage(sessionID string, m conversation.Message) error
}

// Options configures a Widget.
type Options struct {
	Backend    Backend
	Transcript Transcript // nil disables saving
	BaseURL    string     // shown in the footer and recorded with transcripts

	Features          conversation.Features
	MaxUploadFiles    int
	AllowedExtensions []string // picker filter; empty allows everything
	AllowFile         func(path string) bool

	Theme    string
	WordWrap int
	StartDir string // initial file picker directory
}

const inputHeight = 3

// viewMode selects what the widget body shows.
type viewMode int

const (
	chatView viewMode = iota
	pickerView
)

// Model is the chat widget.
type Model struct {
	session *conversation.Session
	backend Backend
	saver   Transcript
	baseURL string
	allow   func(string) bool

	// UI components
	textarea   textarea.Model
	viewport   viewport.Model
	spinner    spinner.Model
	progress   progress.Model
	filepicker filepicker.Model
	styles     ui.Styles
	renderer   *glamour.TermRenderer
	cache      *ui.RenderCache

	// Layout
	width        int
	height       int
	wordWrap     int
	ready        bool
	mode         viewMode
	lastRevision int

	// Shutdown coordination
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce *sync.Once
}

// NewWidget creates a chat widget.
func NewWidget(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		backend:      opts.Backend,
		saver:        opts.Transcript,
		baseURL:      opts.BaseURL,
		allow:        opts.AllowFile,
		styles:       ui.NewStyles(ui.ThemeFor(opts.Theme)),
		cache:        ui.NewRenderCache(256),
		wordWrap:     opts.WordWrap,
		ctx:          ctx,
		cancel:       cancel,
		shutdownOnce: &sync.Once{},
	}
	if m.allow == nil {
		m.allow = func(string) bool { return true }
	}
	if m.wordWrap <= 0 {
		m.wordWrap = 80
	}

	sessionOpts := conversation.Options{
		Features:       opts.Features,
		MaxUploadFiles: opts.MaxUploadFiles,
	}
	if m.saver != nil {
		saver := m.saver
		var sessionID string
		sessionOpts.OnSettle = func(msg conversation.Message) {
			if err := saver.SaveMessage(sessionID, msg); err != nil {
				logging.StoreError("transcript save failed: %v", err)
			}
		}
		m.session = conversation.New(sessionOpts)
		sessionID = m.session.ID()
		if err := saver.StartSession(sessionID, opts.BaseURL, time.Now()); err != nil {
			logging.StoreError("transcript session start failed: %v", err)
		}
	} else {
		m.session = conversation.New(sessionOpts)
	}

	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.ShowLineNumbers = false
	ta.Prompt = "┃ "
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.Focus()
	m.textarea = ta

	m.viewport = viewport.New(m.wordWrap, 10)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = m.styles.Spinner
	m.spinner = sp

	m.progress = progress.New(progress.WithDefaultGradient())

	fp := filepicker.New()
	fp.AllowedTypes = opts.AllowedExtensions
	fp.CurrentDirectory = opts.StartDir
	if fp.CurrentDirectory == "" {
		if wd, err := os.Getwd(); err == nil {
			fp.CurrentDirectory = wd
		}
	}
	m.filepicker = fp

	m.renderer = newRenderer(m.styles.Theme.IsDark, m.wordWrap)

	logging.UI("widget created: session=%s features=%+v", m.session.ID(), opts.Features)
	return m
}

// newRenderer builds the glamour renderer; nil falls back to plain text.
func newRenderer(dark bool, width int) *glamour.TermRenderer {
	style := "light"
	if dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		logging.UIDebug("glamour renderer unavailable: %v", err)
		return nil
	}
	return r
}

// Session exposes the conversation state.
func (m Model) Session() *conversation.Session { return m.session }

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Shutdown cancels in-flight requests. Safe to call more than once.
func (m Model) Shutdown() {
	m.shutdownOnce.Do(func() {
		logging.UI("widget shutting down: session=%s pending=%d uploading=%v",
			m.session.ID(), m.session.PendingCount(), m.session.Uploading())
		if m.cancel != nil {
			m.cancel()
		}
	})
}
