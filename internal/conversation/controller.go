package conversation

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kamafile/onboarding-bridge/internal/onboarding"
)

// apologyText is the synthetic bot message appended whenever a network call
// fails. Failures never propagate to the presentation layer.
const apologyText = "Sorry, I'm having trouble responding right now. Please try again."

// Controller drives one conversation against the onboarding service: session
// acquisition, turn submission, step tracking and error recovery. It is the
// single writer of its Store.
//
// Turns are strictly sequential: while a request is in flight every new
// start/submit is rejected, so a stale step cursor can never be sent.
type Controller struct {
	store     *Store
	transport Transport
	log       zerolog.Logger

	channel        string
	userIdentifier string
	userID         string

	mu          sync.Mutex
	state       State
	sessionID   string
	currentStep string // "" means no step context; sent as empty string on the wire
	pending     bool
	gen         uint64 // bumped by Reset; stale in-flight completions are dropped
}

type ControllerOption func(*Controller)

// WithUserID attaches an authenticated user id to session starts, on top of
// the anonymous device identifier.
func WithUserID(id string) ControllerOption {
	return func(c *Controller) { c.userID = id }
}

func WithControllerLogger(log zerolog.Logger) ControllerOption {
	return func(c *Controller) { c.log = log }
}

func NewController(store *Store, transport Transport, channel, userIdentifier string, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:          store,
		transport:      transport,
		log:            zerolog.Nop(),
		channel:        channel,
		userIdentifier: userIdentifier,
		state:          StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start acquires a session. It is a no-op unless the controller is idle with
// an empty log: concurrent triggers collapse to a single in-flight start.
// A failed start may be retried: Errored is not a terminal sink.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.pending || c.sessionID != "" {
		c.mu.Unlock()
		return
	}
	if c.state != StateErrored && c.store.Len() > 0 {
		c.mu.Unlock()
		return
	}
	c.state = StateStarting
	c.pending = true
	gen := c.gen
	c.mu.Unlock()

	c.log.Debug().Str("channel", c.channel).Msg("starting session")

	resp, err := c.transport.StartSession(ctx, onboarding.StartRequest{
		Channel:        c.channel,
		UserIdentifier: c.userIdentifier,
		UserID:         c.userID,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// The surface was torn down while the request was in flight.
		return
	}
	c.pending = false

	if err != nil {
		// Start never partially succeeds: no session identifier is stored.
		c.state = StateErrored
		c.log.Warn().Err(err).Msg("session start failed")
		c.store.AppendBot(apologyText, nil)
		return
	}

	c.applyLocked(resp)
}

// SubmitText submits a free-text turn. Empty or whitespace-only input is
// silently ignored.
func (c *Controller) SubmitText(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	c.submit(ctx, text, text)
}

// SubmitQuickReply submits a tapped quick reply. The displayed user message
// uses the reply's title; the request carries its payload verbatim.
func (c *Controller) SubmitQuickReply(ctx context.Context, reply QuickReply) {
	if strings.TrimSpace(reply.Payload) == "" {
		return
	}
	display := reply.Title
	if strings.TrimSpace(display) == "" {
		display = reply.Payload
	}
	c.submit(ctx, display, reply.Payload)
}

// submit is the single turn path shared by free text and quick replies; they
// differ only in which field feeds the message text versus the wire value.
func (c *Controller) submit(ctx context.Context, display, value string) {
	c.mu.Lock()
	if c.pending {
		// One turn at a time. The shell is expected to disable input while
		// pending, so this is not surfaced as an error.
		c.mu.Unlock()
		return
	}
	if c.sessionID == "" {
		c.mu.Unlock()
		c.Start(ctx)
		return
	}

	// Optimistic append: the user's message is recorded before the call
	// resolves and stays recorded even if the call fails.
	c.store.AppendUser(display)

	c.pending = true
	gen := c.gen
	req := onboarding.StepRequest{
		SessionID: c.sessionID,
		Step:      c.currentStep,
		Response:  value,
	}
	c.mu.Unlock()

	resp, err := c.transport.SubmitStep(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.pending = false

	if err != nil {
		// Session identity is retained so the user can keep trying; the
		// state stays wherever it was.
		c.log.Warn().Err(err).Str("session_id", c.sessionID).Msg("turn failed")
		c.store.AppendBot(apologyText, nil)
		return
	}

	c.applyLocked(resp)
}

// applyLocked folds one service response into the controller. Caller holds mu.
func (c *Controller) applyLocked(resp *onboarding.StepResponse) {
	if c.sessionID == "" {
		c.sessionID = resp.SessionID
	}

	if resp.Step != nil {
		c.currentStep = *resp.Step
	} else {
		c.currentStep = ""
	}

	prev := c.state
	if resp.Completed || resp.Status != onboarding.StatusOnboarding {
		c.state = StateActive
	} else {
		c.state = StateOnboarding
	}

	if c.state != prev {
		c.log.Info().
			Stringer("from", prev).
			Stringer("to", c.state).
			Str("session_id", c.sessionID).
			Str("step", c.currentStep).
			Msg("state transition")
	}

	replies := make([]QuickReply, 0, len(resp.QuickReplies))
	for _, qr := range resp.QuickReplies {
		replies = append(replies, QuickReply{Title: qr.Title, Payload: qr.Payload})
	}
	c.store.AppendBot(resp.Message, replies)
}

// Reset tears the conversation down for a fresh surface: the log is cleared
// and any in-flight completion is discarded instead of being applied.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.gen++
	c.state = StateIdle
	c.sessionID = ""
	c.currentStep = ""
	c.pending = false
	c.mu.Unlock()

	c.store.Reset()
}

func (c *Controller) Store() *Store { return c.store }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Phase() Phase {
	return c.State().Phase()
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// CurrentStep returns the server-side step cursor, empty when the dialogue
// has no step context.
func (c *Controller) CurrentStep() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentStep
}

func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}
