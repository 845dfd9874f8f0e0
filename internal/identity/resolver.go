// Package identity provides the stable anonymous user identifier that
// correlates onboarding sessions server-side.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultKey is the storage key used when a process holds a single device
// identity (the CLI shell). Server shells key by remote device instead.
const DefaultKey = "device"

var identifierPattern = regexp.MustCompile(`^user_\d+_[a-f0-9]{8}$`)

// Store persists identifiers with write-once-if-absent semantics: the first
// stored value for a key wins, and every later call returns it.
type Store interface {
	// LoadOrStore returns the identifier already persisted under key, or
	// persists candidate and returns it.
	LoadOrStore(ctx context.Context, key, candidate string) (string, error)
}

// Generate builds a fresh identifier from a creation timestamp and a random
// suffix. It never fails: a broken entropy source degrades to timestamp-only
// uniqueness rather than aborting.
func Generate() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		buf = []byte{0, 0, 0, 0}
	}
	return fmt.Sprintf("user_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

// Valid reports whether s looks like an identifier produced by Generate.
func Valid(s string) bool {
	return identifierPattern.MatchString(s)
}

// Resolver hands out the device's identifier, creating it lazily on first
// use. Once generated the same value is returned indefinitely. There is no
// error path: if persistence fails the resolver degrades to handing out a
// fresh value per process, which is a documented limitation rather than a
// fatal condition.
type Resolver struct {
	store Store
	key   string
	log   zerolog.Logger

	mu     sync.Mutex
	cached string
}

type ResolverOption func(*Resolver)

func WithKey(key string) ResolverOption {
	return func(r *Resolver) { r.key = key }
}

func WithLogger(log zerolog.Logger) ResolverOption {
	return func(r *Resolver) { r.log = log }
}

func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{store: store, key: DefaultKey, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UserIdentifier returns the persisted identifier for this device,
// generating and persisting one on first call.
func (r *Resolver) UserIdentifier(ctx context.Context) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != "" {
		return r.cached
	}

	candidate := Generate()
	id, err := r.store.LoadOrStore(ctx, r.key, candidate)
	if err != nil {
		r.log.Warn().Err(err).Msg("identity persistence unavailable, using fresh identifier")
		return candidate
	}

	r.cached = id
	return id
}
