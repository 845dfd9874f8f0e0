package whatsapp

import (
	"context"
	"sync"
	"time"

	"github.com/kamafile/onboarding-bridge/internal/conversation"
)

// session binds one WhatsApp user to one controller instance and remembers
// how much of the conversation log has already been relayed outbound.
type session struct {
	ctrl *conversation.Controller

	mu           sync.Mutex
	relayed      int
	lastActivity time.Time
}

// unrelayed returns the bot messages appended since the last relay and
// advances the cursor past everything seen so far.
func (s *session) unrelayed() []conversation.Message {
	snapshot := s.ctrl.Store().Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.relayed > len(snapshot) {
		// The log was reset underneath us.
		s.relayed = 0
	}

	var out []conversation.Message
	for _, msg := range snapshot[s.relayed:] {
		if msg.Sender == conversation.SenderBot {
			out = append(out, msg)
		}
	}
	s.relayed = len(snapshot)
	s.lastActivity = time.Now()
	return out
}

// pendingQuickReplies returns the quick replies offered by the newest bot
// message, if the user has not answered it yet.
func (s *session) pendingQuickReplies() []conversation.QuickReply {
	last, ok := s.ctrl.Store().Last()
	if !ok || last.Sender != conversation.SenderBot {
		return nil
	}
	return last.QuickReplies
}

func (s *session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Registry holds one session per user identifier. Each controller still
// manages exactly one conversation; the registry only multiplexes users.
type Registry struct {
	newController func(identifier string) *conversation.Controller

	mu       sync.Mutex
	sessions map[string]*session
}

func NewRegistry(newController func(identifier string) *conversation.Controller) *Registry {
	return &Registry{
		newController: newController,
		sessions:      make(map[string]*session),
	}
}

func (r *Registry) getOrCreate(identifier string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[identifier]; ok {
		return s
	}

	s := &session{
		ctrl:         r.newController(identifier),
		lastActivity: time.Now(),
	}
	r.sessions[identifier] = s
	return s
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle drops sessions with no activity since the cutoff. In-flight
// completions for an evicted session are discarded by the controller's own
// generation check.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			s.ctrl.Reset()
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Janitor evicts idle sessions on an interval until ctx is done.
func (r *Registry) Janitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle(maxIdle)
		}
	}
}
