package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/natthaponj/relaybot/relay/contract"
)

const DefaultWindow = 20

type Config struct {
	Window      int           `split_words:"true" default:"20"`
	SessionTTL  time.Duration `split_words:"true" default:"30m"`
	PostgresDSN string        `split_words:"true"`
}

// Option customizes a Store.
type Option func(*Store)

// WithTurnLog attaches a durable turn log. Reads on a cold session are
// hydrated from it; every append is recorded to it best-effort.
func WithTurnLog(turnLog contractx.TurnLog) Option {
	return func(s *Store) {
		s.log = turnLog
	}
}

type sessionWindow struct {
	turns        []contractx.Turn
	lastActivity time.Time
	hydrated     bool
}

// Store keeps a bounded, most-recent window of turns per session. All
// methods are safe for concurrent use across sessions; callers that need
// append-then-read ordering within one session serialize at a higher level.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionWindow
	window   int
	log      contractx.TurnLog
	now      func() time.Time
}

func NewStore(window int, opts ...Option) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	s := &Store{
		sessions: make(map[string]*sessionWindow),
		window:   window,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Append adds a turn to the session, creating the session on first use.
// Eviction of the oldest turns beyond the window runs synchronously here.
func (s *Store) Append(ctx context.Context, sessionID string, turn contractx.Turn) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("%w: session id is empty", contractx.ErrValidation)
	}

	s.mu.Lock()
	sess := s.sessions[sessionID]
	if sess == nil {
		sess = &sessionWindow{}
		s.sessions[sessionID] = sess
	}
	sess.turns = append(sess.turns, turn)
	if over := len(sess.turns) - s.window; over > 0 {
		sess.turns = append([]contractx.Turn(nil), sess.turns[over:]...)
	}
	sess.lastActivity = s.now()
	s.mu.Unlock()

	if s.log != nil {
		if err := s.log.Record(ctx, sessionID, turn); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("turn log record failed")
		}
	}
	return nil
}

// Read returns the session's current window, oldest first. Unknown
// sessions yield an empty slice. With a turn log configured, the first
// read of a session merges recorded turns from a previous process
// lifetime in front of the in-memory window, deduplicated by timestamp.
func (s *Store) Read(ctx context.Context, sessionID string) ([]contractx.Turn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is empty", contractx.ErrValidation)
	}

	if s.log != nil {
		if err := s.hydrate(ctx, sessionID); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("turn log hydration failed")
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := s.sessions[sessionID]
	if sess == nil {
		return []contractx.Turn{}, nil
	}
	return append([]contractx.Turn(nil), sess.turns...), nil
}

// Clear discards the session's in-memory turns. Recorded history in the
// turn log is kept; a later read starts a fresh hydration.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("%w: session id is empty", contractx.ErrValidation)
	}
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// Sweep removes sessions idle longer than ttl and reports how many were
// dropped. The serve loop runs this on a ticker.
func (s *Store) Sweep(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastActivity.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Store) hydrate(ctx context.Context, sessionID string) error {
	s.mu.RLock()
	sess := s.sessions[sessionID]
	done := sess != nil && sess.hydrated
	s.mu.RUnlock()
	if done {
		return nil
	}

	recent, err := s.log.ListRecent(ctx, sessionID, s.window)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess = s.sessions[sessionID]
	if sess == nil {
		sess = &sessionWindow{lastActivity: s.now()}
		s.sessions[sessionID] = sess
	}
	if sess.hydrated {
		return nil
	}
	sess.turns = mergeTurns(recent, sess.turns, s.window)
	sess.hydrated = true
	return nil
}

// mergeTurns prepends recorded turns that predate the local window,
// dropping timestamp duplicates, and caps the result to the last limit.
func mergeTurns(recorded, local []contractx.Turn, limit int) []contractx.Turn {
	seen := make(map[time.Time]struct{}, len(local))
	for _, t := range local {
		seen[t.Timestamp] = struct{}{}
	}

	merged := make([]contractx.Turn, 0, len(recorded)+len(local))
	for _, t := range recorded {
		if _, dup := seen[t.Timestamp]; dup {
			continue
		}
		if len(local) > 0 && !t.Timestamp.Before(local[0].Timestamp) {
			continue
		}
		merged = append(merged, t)
	}
	merged = append(merged, local...)

	if over := len(merged) - limit; over > 0 {
		merged = merged[over:]
	}
	return merged
}
