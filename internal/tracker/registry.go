package tracker

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/dar-kow/discord-bot-jira-work-log/internal/logging"
)

// shardCount trades memory for contention; must be a power of two.
const shardCount = 32

// Registry holds open sessions keyed by user ID. Locking is striped per
// user so closes for unrelated users never serialize on one lock.
type Registry struct {
	shards [shardCount]registryShard
}

type registryShard struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns an empty session registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].sessions = make(map[string]*Session)
	}
	return r
}

func (r *Registry) shard(userID string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &r.shards[h.Sum32()&(shardCount-1)]
}

// Open registers a new session for the user. If the user already has an
// open session the new one is rejected and the prior session kept, so the
// earliest observed start time wins and duplicate join events are
// harmless. It reports whether the session was registered.
func (r *Registry) Open(sess Session) bool {
	s := r.shard(sess.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.sessions[sess.UserID]; ok {
		logging.WithComponent("registry").Debug("open rejected, session already active",
			"user_id", sess.UserID,
			"open_channel", prior.ChannelID,
			"requested_channel", sess.ChannelID)
		return false
	}
	copied := sess
	s.sessions[sess.UserID] = &copied
	return true
}

// Close removes the user's session and returns it stamped with the close
// time. A missing session is a normal outcome, reported via the bool.
// Removal happens before any external call, so a concurrent duplicate
// close finds nothing.
func (r *Registry) Close(userID string, now time.Time) (ClosedSession, bool) {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return ClosedSession{}, false
	}
	delete(s.sessions, userID)
	return ClosedSession{Session: *sess, EndedAt: now}, true
}

// Active returns the user's open session, if any.
func (r *Registry) Active(userID string) (Session, bool) {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		n += len(s.sessions)
		s.mu.Unlock()
	}
	return n
}

// Stale returns copies of sessions open longer than maxAge. They are not
// closed; stale sessions usually mean a missed leave event and need a
// human decision, not a bogus worklog.
func (r *Registry) Stale(now time.Time, maxAge time.Duration) []Session {
	var out []Session
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for _, sess := range s.sessions {
			if now.Sub(sess.StartedAt) > maxAge {
				out = append(out, *sess)
			}
		}
		s.mu.Unlock()
	}
	return out
}
