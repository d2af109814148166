// Package session holds the single bearer-token and agent-link slot of a
// client. A Store is opened over a Backend and closed when the owning
// request or process is done with it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ErlanBelekov/agentgate/internal/domain"
)

const (
	KeyAccessToken = "access_token"
	KeyTokenType   = "token_type"
	KeyUserScope   = "user_scope"
	KeyAgentLink   = "agent_link"
)

var ErrClosed = errors.New("session store is closed")

var allKeys = []string{KeyAccessToken, KeyTokenType, KeyUserScope, KeyAgentLink}

type Store struct {
	mu      sync.RWMutex
	backend Backend
	closed  bool
	logger  *slog.Logger
}

// Open binds a Store to backend. A nil backend yields a store on which
// every read is absent, the equivalent of a context without storage.
func Open(backend Backend, logger *slog.Logger) *Store {
	return &Store{backend: backend, logger: logger.With("component", "session_store")}
}

// Close detaches the store from its backend. Reads after Close are absent
// and writes fail with ErrClosed. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) usable() (Backend, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.backend == nil {
		return nil, false
	}
	return s.backend, true
}

// Save stores sess in the single slot, replacing any prior session. The
// link derived from the previous session is dropped with it.
func (s *Store) Save(ctx context.Context, sess domain.Session) error {
	b, ok := s.usable()
	if !ok {
		return ErrClosed
	}
	if sess.AccessToken == "" {
		return errors.New("save session: empty access token")
	}

	if err := b.Delete(ctx, KeyAgentLink, KeyUserScope); err != nil {
		return fmt.Errorf("drop stale link: %w", err)
	}
	if err := b.Set(ctx, KeyAccessToken, sess.AccessToken); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	tokenType := sess.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	if err := b.Set(ctx, KeyTokenType, tokenType); err != nil {
		return fmt.Errorf("save token type: %w", err)
	}
	if sess.UserScope != "" {
		if err := b.Set(ctx, KeyUserScope, sess.UserScope); err != nil {
			return fmt.Errorf("save user scope: %w", err)
		}
	}
	return nil
}

// Load returns the stored session. Storage that is unavailable or failing
// reads as absent.
func (s *Store) Load(ctx context.Context) (domain.Session, bool) {
	b, ok := s.usable()
	if !ok {
		return domain.Session{}, false
	}

	token, ok, err := b.Get(ctx, KeyAccessToken)
	if err != nil {
		s.logger.WarnContext(ctx, "load session", "error", err)
		return domain.Session{}, false
	}
	if !ok || token == "" {
		return domain.Session{}, false
	}

	sess := domain.Session{AccessToken: token, TokenType: "bearer"}
	if tt, ok, err := b.Get(ctx, KeyTokenType); err == nil && ok && tt != "" {
		sess.TokenType = tt
	}
	if scope, ok, err := b.Get(ctx, KeyUserScope); err == nil && ok {
		sess.UserScope = scope
	}
	return sess, true
}

// Authenticated reports whether a token is present.
func (s *Store) Authenticated(ctx context.Context) bool {
	_, ok := s.Load(ctx)
	return ok
}

// Clear removes the session and its link. Clearing an empty or closed
// store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	b, ok := s.usable()
	if !ok {
		return nil
	}
	if err := b.Delete(ctx, allKeys...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// SaveLink overwrites the stored agent link. A link is only meaningful
// alongside a token, so saving without one is refused.
func (s *Store) SaveLink(ctx context.Context, link domain.AgentLink) error {
	b, ok := s.usable()
	if !ok {
		return ErrClosed
	}
	if _, ok := s.Load(ctx); !ok {
		return errors.New("save link: no session")
	}
	if err := b.Set(ctx, KeyAgentLink, link.SignedURL); err != nil {
		return fmt.Errorf("save link: %w", err)
	}
	return nil
}

// LoadLink returns the stored link only while a session is present.
func (s *Store) LoadLink(ctx context.Context) (domain.AgentLink, bool) {
	b, ok := s.usable()
	if !ok {
		return domain.AgentLink{}, false
	}
	if _, ok := s.Load(ctx); !ok {
		return domain.AgentLink{}, false
	}
	v, ok, err := b.Get(ctx, KeyAgentLink)
	if err != nil {
		s.logger.WarnContext(ctx, "load agent link", "error", err)
		return domain.AgentLink{}, false
	}
	if !ok || v == "" {
		return domain.AgentLink{}, false
	}
	return domain.AgentLink{SignedURL: v}, true
}
