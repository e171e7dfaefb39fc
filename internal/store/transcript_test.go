package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pdfchat/internal/conversation"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTest(t *testing.T, driver string) *Transcript {
	t.Helper()
	tr, err := Open(driver, filepath.Join(t.TempDir(), "nested", "history.db"))
	if driver == "sqlite3" && err != nil {
		t.Skipf("cgo sqlite3 driver unavailable: %v", err)
	}
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func msg(id string, role conversation.Role, content string, status conversation.Status, at time.Time) conversation.Message {
	return conversation.Message{ID: id, Role: role, Content: content, Status: status, Time: at, RequestID: 1}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("postgres", filepath.Join(t.TempDir(), "x.db"))
	assert.ErrorContains(t, err, "unsupported")
}

func TestTranscriptRoundTrip(t *testing.T) {
	for _, driver := range []string{"sqlite", "sqlite3"} {
		t.Run(driver, func(t *testing.T) {
			tr := openTest(t, driver)
			assert.Equal(t, driver, tr.Driver())

			require.NoError(t, tr.StartSession("s1", "http://localhost:8000", t0))
			require.NoError(t, tr.StartSession("s1", "http://ignored", t0.Add(time.Hour)), "restart is a no-op")

			q := msg("m1", conversation.RoleUser, "What is X?", conversation.StatusConfirmed, t0.Add(time.Second))
			a := msg("m2", conversation.RoleBot, "X is Y.", conversation.StatusConfirmed, t0.Add(2*time.Second))
			q.Seq, a.Seq = 1, 2
			require.NoError(t, tr.SaveMessage("s1", q))
			require.NoError(t, tr.SaveMessage("s1", a))

			got, err := tr.LoadMessages("s1")
			require.NoError(t, err)

			want := []conversation.Message{q, a}
			if diff := cmp.Diff(want, got, cmpopts.EquateApproxTime(0)); diff != "" {
				t.Errorf("messages mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSaveMessageUpdatesStatusInPlace(t *testing.T) {
	tr := openTest(t, "sqlite")
	require.NoError(t, tr.StartSession("s1", "http://x", t0))

	first := msg("m1", conversation.RoleUser, "first", conversation.StatusPending, t0)
	second := msg("m2", conversation.RoleUser, "second", conversation.StatusConfirmed, t0.Add(time.Second))
	require.NoError(t, tr.SaveMessage("s1", first))
	require.NoError(t, tr.SaveMessage("s1", second))

	first.Status = conversation.StatusFailed
	first.Err = conversation.ErrSuperseded
	require.NoError(t, tr.SaveMessage("s1", first))

	got, err := tr.LoadMessages("s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Content, "keeps its position")
	assert.Equal(t, conversation.StatusFailed, got[0].Status)
	require.Error(t, got[0].Err)
	assert.Equal(t, conversation.ErrSuperseded.Error(), got[0].Err.Error())
	assert.NoError(t, got[1].Err)
}

func TestTranscriptKeepsHistoryOrderWhenQuestionsOverlap(t *testing.T) {
	tr := openTest(t, "sqlite")

	var saveErr error
	sess := conversation.New(conversation.Options{
		ID:       "s1",
		Features: conversation.DefaultFeatures(),
		Clock:    func() time.Time { return t0 },
		OnSettle: func(m conversation.Message) {
			if err := tr.SaveMessage("s1", m); err != nil {
				saveErr = err
			}
		},
	})
	require.NoError(t, tr.StartSession(sess.ID(), "http://x", t0))

	sess.SetInput("first question")
	q1, ok := sess.Submit()
	require.True(t, ok)
	sess.SetInput("second question")
	q2, ok := sess.Submit()
	require.True(t, ok)

	// The newer answer lands first; the older one is superseded.
	require.True(t, sess.ApplyChatResponse(q2, "second answer", nil))
	require.False(t, sess.ApplyChatResponse(q1, "first answer", nil))
	require.NoError(t, saveErr)

	got, err := tr.LoadMessages("s1")
	require.NoError(t, err)

	contents := func(msgs []conversation.Message) []string {
		var out []string
		for _, m := range msgs {
			out = append(out, m.Content)
		}
		return out
	}
	assert.Equal(t, contents(sess.Messages()), contents(got))
	assert.Equal(t, []string{"first question", "second question", "second answer"}, contents(got))
	assert.Equal(t, conversation.StatusFailed, got[0].Status)
	assert.Equal(t, []int{1, 2, 3}, []int{got[0].Seq, got[1].Seq, got[2].Seq})
}

func TestLoadMessagesUnknownSession(t *testing.T) {
	tr := openTest(t, "sqlite")

	_, err := tr.LoadMessages("missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestLoadMessagesEmptySession(t *testing.T) {
	tr := openTest(t, "sqlite")
	require.NoError(t, tr.StartSession("s1", "http://x", t0))

	got, err := tr.LoadMessages("s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListSessions(t *testing.T) {
	tr := openTest(t, "sqlite")

	require.NoError(t, tr.StartSession("old", "http://a", t0))
	require.NoError(t, tr.StartSession("new", "http://b", t0.Add(time.Hour)))
	require.NoError(t, tr.SaveMessage("old", msg("m1", conversation.RoleUser, "q", conversation.StatusConfirmed, t0.Add(time.Minute))))
	require.NoError(t, tr.SaveMessage("old", msg("m2", conversation.RoleBot, "a", conversation.StatusConfirmed, t0.Add(2*time.Minute))))

	sessions, err := tr.ListSessions(0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, "new", sessions[0].ID)
	assert.Equal(t, 0, sessions[0].Messages)
	assert.True(t, sessions[0].LastActivity.Equal(t0.Add(time.Hour)))

	assert.Equal(t, "old", sessions[1].ID)
	assert.Equal(t, "http://a", sessions[1].BaseURL)
	assert.Equal(t, 2, sessions[1].Messages)
	assert.True(t, sessions[1].StartedAt.Equal(t0))
	assert.True(t, sessions[1].LastActivity.Equal(t0.Add(2*time.Minute)))

	limited, err := tr.ListSessions(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	tr, err := Open("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, tr.StartSession("s1", "http://x", t0))
	require.NoError(t, tr.SaveMessage("s1", msg("m1", conversation.RoleUser, "hi", conversation.StatusConfirmed, t0)))
	require.NoError(t, tr.Close())

	tr, err = Open("sqlite", path)
	require.NoError(t, err)
	defer tr.Close()
	assert.Equal(t, path, tr.Path())

	got, err := tr.LoadMessages("s1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
