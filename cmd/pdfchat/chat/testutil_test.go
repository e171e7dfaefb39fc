package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pdfchat/internal/backend"
	"pdfchat/internal/conversation"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

type fakeBackend struct {
	mu        sync.Mutex
	questions []string
	uploads   [][]string

	answer   func(question string) (*backend.ChatResponse, error)
	uploadFn func(paths []string, onProgress backend.ProgressFunc) (*backend.UploadResponse, error)
}

func (f *fakeBackend) Chat(_ context.Context, question string) (*backend.ChatResponse, error) {
	f.mu.Lock()
	f.questions = append(f.questions, question)
	f.mu.Unlock()
	if f.answer != nil {
		return f.answer(question)
	}
	return &backend.ChatResponse{Answer: "echo: " + question}, nil
}

func (f *fakeBackend) Upload(_ context.Context, paths []string, onProgress backend.ProgressFunc) (*backend.UploadResponse, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, append([]string(nil), paths...))
	f.mu.Unlock()
	if f.uploadFn != nil {
		return f.uploadFn(paths, onProgress)
	}
	if onProgress != nil {
		onProgress(50, 100)
		onProgress(100, 100)
	}
	return &backend.UploadResponse{}, nil
}

func (f *fakeBackend) Questions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.questions...)
}

func (f *fakeBackend) Uploads() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.uploads...)
}

// =============================================================================
// FAKE TRANSCRIPT
// =============================================================================

type fakeTranscript struct {
	sessions []string
	saved    []conversation.Message
	fail     bool
}

func (f *fakeTranscript) StartSession(id, _ string, _ time.Time) error {
	f.sessions = append(f.sessions, id)
	return nil
}

func (f *fakeTranscript) SaveMessage(_ string, m conversation.Message) error {
	if f.fail {
		return errors.New("disk full")
	}
	f.saved = append(f.saved, m)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func pdfOnly(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// NewTestModel creates a sized widget wired to be.
func NewTestModel(t *testing.T, be Backend, mutate ...func(*Options)) Model {
	t.Helper()
	opts := Options{
		Backend:           be,
		BaseURL:           "http://localhost:8000",
		Features:          conversation.DefaultFeatures(),
		MaxUploadFiles:    10,
		AllowedExtensions: []string{".pdf"},
		AllowFile:         pdfOnly,
		Theme:             "light",
		WordWrap:          80,
		StartDir:          t.TempDir(),
	}
	for _, f := range mutate {
		f(&opts)
	}
	m := NewWidget(opts)
	t.Cleanup(m.Shutdown)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

// update feeds msg to m and returns the new model and command.
func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

// typeAndSend puts text in the input and presses Enter.
func typeAndSend(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.textarea.SetValue(text)
	return update(t, m, key(tea.KeyEnter))
}

// runCmd executes cmd (expanding batches concurrently, since some commands
// wait on others) and returns every resulting message except spinner ticks
// and nils.
func runCmd(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}

	out := make(chan tea.Msg, 64)
	var wg sync.WaitGroup
	var run func(c tea.Cmd)
	run = func(c tea.Cmd) {
		defer wg.Done()
		msg := c()
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, sub := range batch {
				if sub != nil {
					wg.Add(1)
					go run(sub)
				}
			}
			return
		}
		out <- msg
	}
	wg.Add(1)
	go run(cmd)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("commands did not finish")
	}
	close(out)

	var msgs []tea.Msg
	for msg := range out {
		switch msg.(type) {
		case chatReplyMsg, uploadProgressMsg, uploadDoneMsg, tea.QuitMsg:
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// deliver feeds msgs to m, following re-armed progress listeners.
func deliver(t *testing.T, m Model, msgs []tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		var cmd tea.Cmd
		m, cmd = update(t, m, msg)
		if _, ok := msg.(uploadProgressMsg); ok {
			m = deliver(t, m, runCmd(t, cmd))
		}
	}
	return m
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
