package conversation

import "time"

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// QuickReply is a structured choice rendered alongside a bot message. Title
// is what the user sees; Payload is the opaque value sent back to the
// service when the reply is picked.
type QuickReply struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// Message is one rendered turn of the conversation. Messages are append-only
// and ordered by creation; they are never mutated or reordered.
type Message struct {
	ID           string       `json:"id"`
	Sender       Sender       `json:"sender"`
	Text         string       `json:"text"`
	Timestamp    time.Time    `json:"timestamp"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
}

// State is the controller's explicit state machine. It replaces the scattered
// isLoading/isOnboarding/nullable-session flag combinations with a single
// tagged value, so impossible combinations cannot be represented.
type State uint8

const (
	StateIdle State = iota
	StateStarting
	StateOnboarding
	StateActive
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateOnboarding:
		return "onboarding"
	case StateActive:
		return "active"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Phase classifies whether the dialogue is still following the scripted
// onboarding flow or has become free-form.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseOnboarding Phase = "onboarding"
	PhaseActive     Phase = "active"
)

func (s State) Phase() Phase {
	switch s {
	case StateOnboarding:
		return PhaseOnboarding
	case StateActive:
		return PhaseActive
	default:
		return PhaseNotStarted
	}
}
