package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kamafile/onboarding-bridge/internal/onboarding"
)

type fakeTransport struct {
	mu         sync.Mutex
	startResp  *onboarding.StepResponse
	startErr   error
	stepResp   *onboarding.StepResponse
	stepErr    error
	startCalls []onboarding.StartRequest
	stepCalls  []onboarding.StepRequest

	// When set, SubmitStep signals entered and then blocks until release is
	// closed, to simulate a slow in-flight turn.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeTransport) StartSession(_ context.Context, req onboarding.StartRequest) (*onboarding.StepResponse, error) {
	f.mu.Lock()
	f.startCalls = append(f.startCalls, req)
	resp, err := f.startResp, f.startErr
	f.mu.Unlock()
	return resp, err
}

func (f *fakeTransport) SubmitStep(_ context.Context, req onboarding.StepRequest) (*onboarding.StepResponse, error) {
	f.mu.Lock()
	f.stepCalls = append(f.stepCalls, req)
	entered, release := f.entered, f.release
	resp, err := f.stepResp, f.stepErr
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	return resp, err
}

func (f *fakeTransport) starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.startCalls)
}

func (f *fakeTransport) steps() []onboarding.StepRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]onboarding.StepRequest(nil), f.stepCalls...)
}

func strPtr(s string) *string { return &s }

func welcomeResp() *onboarding.StepResponse {
	return &onboarding.StepResponse{
		SessionID: "s1",
		Step:      strPtr("name"),
		Message:   "Hi, what's your name?",
		Completed: false,
		Status:    "onboarding",
	}
}

func newTestController(t *testing.T, tr Transport) *Controller {
	t.Helper()
	return NewController(NewStore(), tr, "web", "user_1_abc")
}

func TestStartTransitionsToOnboarding(t *testing.T) {
	tr := &fakeTransport{startResp: welcomeResp()}
	c := newTestController(t, tr)

	c.Start(context.Background())

	if got := c.State(); got != StateOnboarding {
		t.Fatalf("state = %v, want %v", got, StateOnboarding)
	}
	if got := c.CurrentStep(); got != "name" {
		t.Fatalf("currentStep = %q, want %q", got, "name")
	}
	if got := c.SessionID(); got != "s1" {
		t.Fatalf("sessionID = %q, want %q", got, "s1")
	}

	msgs := c.Store().Snapshot()
	if len(msgs) != 1 {
		t.Fatalf("store has %d messages, want 1", len(msgs))
	}
	if msgs[0].Sender != SenderBot || msgs[0].Text != "Hi, what's your name?" {
		t.Fatalf("unexpected first message: %+v", msgs[0])
	}

	if tr.startCalls[0].Channel != "web" || tr.startCalls[0].UserIdentifier != "user_1_abc" {
		t.Fatalf("unexpected start request: %+v", tr.startCalls[0])
	}
}

func TestStartDerivesActivePhase(t *testing.T) {
	cases := []struct {
		name string
		resp *onboarding.StepResponse
	}{
		{"completed flag", &onboarding.StepResponse{SessionID: "s1", Message: "done", Completed: true, Status: "onboarding"}},
		{"non-onboarding status", &onboarding.StepResponse{SessionID: "s1", Message: "hi again", Completed: false, Status: "active"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := &fakeTransport{startResp: tc.resp}
			c := newTestController(t, tr)

			c.Start(context.Background())

			if got := c.State(); got != StateActive {
				t.Fatalf("state = %v, want %v", got, StateActive)
			}
			if got := c.Phase(); got != PhaseActive {
				t.Fatalf("phase = %v, want %v", got, PhaseActive)
			}
		})
	}
}

func TestStartIsIdempotentAfterSuccess(t *testing.T) {
	tr := &fakeTransport{startResp: welcomeResp()}
	c := newTestController(t, tr)

	c.Start(context.Background())
	c.Start(context.Background())

	if got := tr.starts(); got != 1 {
		t.Fatalf("start called %d times, want 1", got)
	}
	if got := c.Store().Len(); got != 1 {
		t.Fatalf("store has %d messages, want 1", got)
	}
}

func TestStartFailureAppendsApologyAndStoresNoSession(t *testing.T) {
	tr := &fakeTransport{startErr: errors.New("boom")}
	c := newTestController(t, tr)

	c.Start(context.Background())

	if got := c.State(); got != StateErrored {
		t.Fatalf("state = %v, want %v", got, StateErrored)
	}
	if got := c.SessionID(); got != "" {
		t.Fatalf("sessionID = %q, want empty", got)
	}
	if c.Pending() {
		t.Fatal("pending should be false after failure")
	}

	msgs := c.Store().Snapshot()
	if len(msgs) != 1 || msgs[0].Sender != SenderBot || msgs[0].Text != apologyText {
		t.Fatalf("expected single apology message, got %+v", msgs)
	}
}

func TestStartRetriesAfterFailure(t *testing.T) {
	tr := &fakeTransport{startErr: errors.New("boom")}
	c := newTestController(t, tr)

	c.Start(context.Background())

	tr.mu.Lock()
	tr.startErr = nil
	tr.startResp = welcomeResp()
	tr.mu.Unlock()

	c.Start(context.Background())

	if got := c.State(); got != StateOnboarding {
		t.Fatalf("state = %v, want %v", got, StateOnboarding)
	}
	if got := c.SessionID(); got != "s1" {
		t.Fatalf("sessionID = %q, want %q", got, "s1")
	}
}

func TestEmptyInputIgnored(t *testing.T) {
	tr := &fakeTransport{startResp: welcomeResp(), stepResp: welcomeResp()}
	c := newTestController(t, tr)
	c.Start(context.Background())
	before := c.Store().Len()

	c.SubmitText(context.Background(), "")
	c.SubmitText(context.Background(), "   \t\n")
	c.SubmitQuickReply(context.Background(), QuickReply{Title: "Yes", Payload: "  "})

	if got := len(tr.steps()); got != 0 {
		t.Fatalf("step called %d times, want 0", got)
	}
	if got := c.Store().Len(); got != before {
		t.Fatalf("store grew from %d to %d on empty input", before, got)
	}
}

func TestSubmitWithoutSessionReentersStart(t *testing.T) {
	tr := &fakeTransport{startResp: welcomeResp()}
	c := newTestController(t, tr)

	c.SubmitText(context.Background(), "hello")

	if got := tr.starts(); got != 1 {
		t.Fatalf("start called %d times, want 1", got)
	}
	if got := len(tr.steps()); got != 0 {
		t.Fatalf("step called %d times, want 0", got)
	}
	if got := c.State(); got != StateOnboarding {
		t.Fatalf("state = %v, want %v", got, StateOnboarding)
	}
}

func TestTurnSuccessKeepsSubmissionOrder(t *testing.T) {
	tr := &fakeTransport{
		startResp: welcomeResp(),
		stepResp: &onboarding.StepResponse{
			SessionID: "s1",
			Step:      strPtr("goal"),
			Message:   "Nice to meet you. What would you like to do?",
			Completed: false,
			Status:    "onboarding",
		},
	}
	c := newTestController(t, tr)
	c.Start(context.Background())

	c.SubmitText(context.Background(), "Ada")

	steps := tr.steps()
	if len(steps) != 1 {
		t.Fatalf("step called %d times, want 1", len(steps))
	}
	if steps[0].SessionID != "s1" || steps[0].Step != "name" || steps[0].Response != "Ada" {
		t.Fatalf("unexpected step request: %+v", steps[0])
	}

	msgs := c.Store().Snapshot()
	if len(msgs) != 3 {
		t.Fatalf("store has %d messages, want 3", len(msgs))
	}
	wantSenders := []Sender{SenderBot, SenderUser, SenderBot}
	for i, want := range wantSenders {
		if msgs[i].Sender != want {
			t.Fatalf("message %d sender = %v, want %v", i, msgs[i].Sender, want)
		}
	}
	if msgs[1].Text != "Ada" {
		t.Fatalf("user message text = %q, want %q", msgs[1].Text, "Ada")
	}
	if got := c.CurrentStep(); got != "goal" {
		t.Fatalf("currentStep = %q, want %q", got, "goal")
	}
}

func TestQuickReplyTitleDisplayedPayloadSent(t *testing.T) {
	tr := &fakeTransport{
		startResp: welcomeResp(),
		stepResp:  welcomeResp(),
	}
	c := newTestController(t, tr)
	c.Start(context.Background())

	c.SubmitQuickReply(context.Background(), QuickReply{Title: "Yes", Payload: "yes"})

	steps := tr.steps()
	if len(steps) != 1 || steps[0].Response != "yes" {
		t.Fatalf("unexpected step requests: %+v", steps)
	}

	msgs := c.Store().Snapshot()
	var lastUser *Message
	for i := range msgs {
		if msgs[i].Sender == SenderUser {
			lastUser = &msgs[i]
		}
	}
	if lastUser == nil || lastUser.Text != "Yes" {
		t.Fatalf("newest user message = %+v, want text %q", lastUser, "Yes")
	}
}

func TestCompletedTurnTransitionsToActive(t *testing.T) {
	tr := &fakeTransport{
		startResp: welcomeResp(),
		stepResp: &onboarding.StepResponse{
			SessionID: "s1",
			Step:      nil,
			Message:   "You're all set.",
			Completed: true,
			Status:    "active",
		},
	}
	c := newTestController(t, tr)
	c.Start(context.Background())

	c.SubmitText(context.Background(), "done")

	if got := c.State(); got != StateActive {
		t.Fatalf("state = %v, want %v", got, StateActive)
	}
	if got := c.CurrentStep(); got != "" {
		t.Fatalf("currentStep = %q, want empty", got)
	}

	// A free-form turn after completion carries the empty-string step, the
	// service's convention for "no step context".
	tr.mu.Lock()
	tr.stepResp = &onboarding.StepResponse{SessionID: "s1", Message: "Happy to help.", Completed: true, Status: "active"}
	tr.mu.Unlock()

	c.SubmitText(context.Background(), "what documents do I need?")

	steps := tr.steps()
	if got := steps[len(steps)-1].Step; got != "" {
		t.Fatalf("free-form turn sent step %q, want empty string", got)
	}
}

func TestTurnFailureRetainsSession(t *testing.T) {
	tr := &fakeTransport{
		startResp: welcomeResp(),
		stepErr:   errors.New("service unavailable"),
	}
	c := newTestController(t, tr)
	c.Start(context.Background())

	c.SubmitText(context.Background(), "Ada")

	if got := c.SessionID(); got != "s1" {
		t.Fatalf("sessionID = %q, want %q", got, "s1")
	}
	if got := c.State(); got != StateOnboarding {
		t.Fatalf("state = %v, want %v", got, StateOnboarding)
	}
	if c.Pending() {
		t.Fatal("pending should be false after failure")
	}

	msgs := c.Store().Snapshot()
	if len(msgs) != 3 {
		t.Fatalf("store has %d messages, want 3 (welcome, user, apology)", len(msgs))
	}
	if msgs[1].Sender != SenderUser || msgs[1].Text != "Ada" {
		t.Fatalf("user message was dropped: %+v", msgs[1])
	}
	if msgs[2].Sender != SenderBot || msgs[2].Text != apologyText {
		t.Fatalf("expected apology message, got %+v", msgs[2])
	}

	// The user can keep trying with the same session.
	tr.mu.Lock()
	tr.stepErr = nil
	tr.stepResp = welcomeResp()
	tr.mu.Unlock()

	c.SubmitText(context.Background(), "Ada")
	steps := tr.steps()
	if steps[len(steps)-1].SessionID != "s1" {
		t.Fatalf("retry used session %q, want %q", steps[len(steps)-1].SessionID, "s1")
	}
}

func TestPendingTurnRejectsOverlap(t *testing.T) {
	tr := &fakeTransport{
		startResp: welcomeResp(),
		stepResp:  welcomeResp(),
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
	c := newTestController(t, tr)
	c.Start(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.SubmitText(context.Background(), "first")
	}()

	<-tr.entered
	if !c.Pending() {
		t.Fatal("pending should be true while a turn is in flight")
	}
	lenBefore := c.Store().Len()

	c.SubmitText(context.Background(), "second")

	if got := c.Store().Len(); got != lenBefore {
		t.Fatalf("store changed while pending: %d -> %d", lenBefore, got)
	}

	close(tr.release)
	<-done

	if got := len(tr.steps()); got != 1 {
		t.Fatalf("step called %d times, want 1", got)
	}
	if c.Pending() {
		t.Fatal("pending should be false after the in-flight turn resolved")
	}
}

func TestResetDiscardsInFlightCompletion(t *testing.T) {
	tr := &fakeTransport{
		startResp: welcomeResp(),
		stepResp:  welcomeResp(),
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
	c := newTestController(t, tr)
	c.Start(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.SubmitText(context.Background(), "first")
	}()

	<-tr.entered
	c.Reset()
	close(tr.release)
	<-done

	// The stale completion must not repopulate the fresh surface.
	if got := c.Store().Len(); got != 0 {
		t.Fatalf("store has %d messages after reset, want 0", got)
	}
	if got := c.SessionID(); got != "" {
		t.Fatalf("sessionID = %q after reset, want empty", got)
	}
	if got := c.State(); got != StateIdle {
		t.Fatalf("state = %v after reset, want %v", got, StateIdle)
	}
	if c.Pending() {
		t.Fatal("pending should be false after reset")
	}
}

func TestStoreGrowsMonotonically(t *testing.T) {
	tr := &fakeTransport{startResp: welcomeResp(), stepResp: welcomeResp()}
	c := newTestController(t, tr)
	c.Start(context.Background())

	prev := c.Store().Len()
	for i := 0; i < 5; i++ {
		c.SubmitText(context.Background(), "turn")
		got := c.Store().Len()
		if got != prev+2 {
			t.Fatalf("turn %d: store went from %d to %d, want +2", i, prev, got)
		}
		prev = got
	}
}
