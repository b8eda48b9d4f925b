// Package session provides the server-side session store. A session carries
// the authenticated identity and the shopping cart; both disappear when the
// session expires or the user logs out.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookbazaar/bookbazaar/internal/domain"
)

type Session struct {
	Token     string
	UserID    string
	Username  string
	Email     string
	Role      domain.Role
	Cart      domain.Cart
	ExpiresAt time.Time
}

// Store is an in-memory token -> session map with a sliding TTL. All access
// goes through the store's mutex; a session itself is single-owner, so the
// cart needs no locking of its own.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*Session
	now      func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create starts a session for an authenticated user and returns its token.
func (s *Store) Create(user *domain.User) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{
		Token:     uuid.New().String(),
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		Cart:      domain.NewCart(),
		ExpiresAt: s.now().Add(s.ttl),
	}
	s.sessions[sess.Token] = sess
	return sess
}

// Get returns the session for token, sliding its expiry, or nil when the
// token is unknown or expired.
func (s *Store) Get(token string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil
	}
	if s.now().After(sess.ExpiresAt) {
		delete(s.sessions, token)
		return nil
	}
	sess.ExpiresAt = s.now().Add(s.ttl)
	return sess
}

// Destroy removes a session; unknown tokens are ignored.
func (s *Store) Destroy(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// UpdateCart applies fn to the session's cart under the store lock.
func (s *Store) UpdateCart(token string, fn func(domain.Cart)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok || s.now().After(sess.ExpiresAt) {
		return false
	}
	fn(sess.Cart)
	return true
}

// ClearCart replaces the session's cart with an empty one in a single step.
func (s *Store) ClearCart(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[token]; ok {
		sess.Cart = domain.NewCart()
	}
}

// Sweep drops expired sessions. The server runs it periodically.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}
