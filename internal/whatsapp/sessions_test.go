package whatsapp

import (
	"testing"
	"time"

	"github.com/kamafile/onboarding-bridge/internal/conversation"
)

func newRegistryForTest() *Registry {
	tr := &fakeTransport{}
	return NewRegistry(func(identifier string) *conversation.Controller {
		return conversation.NewController(conversation.NewStore(), tr, "whatsapp", identifier)
	})
}

func TestRegistryReusesSessionPerIdentifier(t *testing.T) {
	r := newRegistryForTest()

	a := r.getOrCreate("+2348012345678")
	b := r.getOrCreate("+2348012345678")
	c := r.getOrCreate("+14155238886")

	if a != b {
		t.Fatal("same identifier produced two sessions")
	}
	if a == c {
		t.Fatal("different identifiers shared one session")
	}
	if got := r.Len(); got != 2 {
		t.Fatalf("registry holds %d sessions, want 2", got)
	}
}

func TestRegistryEvictsIdleSessions(t *testing.T) {
	r := newRegistryForTest()

	stale := r.getOrCreate("+2348012345678")
	stale.mu.Lock()
	stale.lastActivity = time.Now().Add(-2 * time.Hour)
	stale.mu.Unlock()

	fresh := r.getOrCreate("+14155238886")
	fresh.touch()

	if got := r.EvictIdle(time.Hour); got != 1 {
		t.Fatalf("evicted %d sessions, want 1", got)
	}
	if got := r.Len(); got != 1 {
		t.Fatalf("registry holds %d sessions, want 1", got)
	}

	// The survivor must be the fresh one.
	if r.getOrCreate("+14155238886") != fresh {
		t.Fatal("fresh session was evicted")
	}
}

func TestSessionRelayCursor(t *testing.T) {
	r := newRegistryForTest()
	s := r.getOrCreate("+2348012345678")

	store := s.ctrl.Store()
	store.AppendBot("welcome", nil)
	store.AppendUser("hi")
	store.AppendBot("next", nil)

	first := s.unrelayed()
	if len(first) != 2 {
		t.Fatalf("unrelayed = %d messages, want 2 bot messages", len(first))
	}

	// Nothing new: cursor moved past everything.
	if again := s.unrelayed(); len(again) != 0 {
		t.Fatalf("unrelayed after drain = %d, want 0", len(again))
	}

	store.AppendBot("later", nil)
	if later := s.unrelayed(); len(later) != 1 || later[0].Text != "later" {
		t.Fatalf("unexpected relay batch: %+v", later)
	}
}
