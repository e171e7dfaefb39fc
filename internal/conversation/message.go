package conversation

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Status tracks an optimistic message through its request lifecycle.
type Status int

const (
	StatusPending   Status = iota // Shown before the backend has answered
	StatusConfirmed               // Backend answered and the answer was applied
	StatusFailed                  // Request failed or its answer was discarded
)

// String returns the display name for each status
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Message is a single entry in the chat history.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Status    Status
	Err       error // set when Status is StatusFailed
	Time      time.Time
	RequestID uint64 // chat request that produced or carried this message
	Seq       int    // 1-based history position, assigned on append
}

// Mode is the display label derived from the latest answer's sources.
type Mode string

const (
	ModeChat Mode = "Chat Mode"
	ModePDF  Mode = "PDF Mode"
)

// modeFor derives the mode from a source list.
func modeFor(sources []string) Mode {
	if len(sources) > 0 {
		return ModePDF
	}
	return ModeChat
}

// NoticeLevel classifies a user-facing notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeWarning
	NoticeError
)

// Notice is a blocking-style alert the UI shows until dismissed.
type Notice struct {
	Level NoticeLevel
	Text  string
}
