package onboarding

// QuickReply — server-offered structured choice. Payload is opaque and is
// echoed back to the service verbatim.
type QuickReply struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

type StartRequest struct {
	Channel        string `json:"channel"`
	UserIdentifier string `json:"user_identifier"`
	UserID         string `json:"user_id,omitempty"`
}

// StepRequest submits one turn. Step is sent as an empty string when there is
// no step context — the service treats that as an active/free status message.
// Do not switch to omitting the field without confirming the service's
// handling of absent vs empty values.
type StepRequest struct {
	SessionID string         `json:"session_id"`
	Step      string         `json:"step"`
	Response  string         `json:"response"`
	Data      map[string]any `json:"data,omitempty"`
}

// StepResponse is the shared response shape of session start and turn
// submission. Step is null once the scripted flow has no current step.
type StepResponse struct {
	SessionID    string       `json:"session_id"`
	Step         *string      `json:"step"`
	Message      string       `json:"message"`
	QuickReplies []QuickReply `json:"quick_replies"`
	Completed    bool         `json:"completed"`
	Status       string       `json:"status"`
}

type StatusResponse struct {
	SessionID      string         `json:"session_id"`
	Status         string         `json:"status"`
	CurrentStep    *string        `json:"current_step"`
	Channel        string         `json:"channel"`
	UserIdentifier string         `json:"user_identifier"`
	StepData       map[string]any `json:"step_data"`
}

type FindResponse struct {
	Found       bool    `json:"found"`
	SessionID   *string `json:"session_id"`
	Status      string  `json:"status,omitempty"`
	CurrentStep *string `json:"current_step,omitempty"`
	Channel     string  `json:"channel,omitempty"`
}

// StatusOnboarding is the only session status the controller interprets;
// everything else counts as free-form.
const StatusOnboarding = "onboarding"
