package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the in-memory ordered log of exchanged messages. It has a single
// writer (the controller) and any number of readers (presentation shells).
// Entries are never edited or removed; Reset replaces the whole log for a
// freshly opened surface.
type Store struct {
	mu   sync.RWMutex
	msgs []Message
	subs []chan struct{}

	now func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// Reset clears the log to empty. Used when a conversation surface is opened
// with no prior session.
func (s *Store) Reset() {
	s.mu.Lock()
	s.msgs = nil
	s.mu.Unlock()
	s.notify()
}

// AppendUser records one user-authored message and returns it.
func (s *Store) AppendUser(text string) Message {
	return s.append(Message{Sender: SenderUser, Text: text})
}

// AppendBot records one bot-authored message, with optional quick replies.
func (s *Store) AppendBot(text string, quickReplies []QuickReply) Message {
	msg := Message{Sender: SenderBot, Text: text}
	if len(quickReplies) > 0 {
		msg.QuickReplies = append([]QuickReply(nil), quickReplies...)
	}
	return s.append(msg)
}

func (s *Store) append(msg Message) Message {
	msg.ID = uuid.NewString()
	msg.Timestamp = s.now()

	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()

	s.notify()
	return msg
}

// Snapshot returns a stable copy of the log in creation order. The caller
// owns the slice; later appends do not show through.
func (s *Store) Snapshot() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// Last returns the newest message, if any.
func (s *Store) Last() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.msgs) == 0 {
		return Message{}, false
	}
	return s.msgs[len(s.msgs)-1], true
}

// Subscribe returns a channel that receives a signal after every store
// change, and a cancel func that releases the subscription. Signals coalesce:
// a slow reader sees at least one signal for any burst of appends.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
	return ch, cancel
}

func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
