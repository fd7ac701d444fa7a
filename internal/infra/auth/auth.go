// Package auth adapts the external authentication collaborator to the app
// layer. The transport binds the connection's user onto the request context;
// services resolve it through the Context provider.
package auth

import (
	"context"
	"sync"

	"bridgebites-service/internal/domain"
)

type contextKey struct{}

// WithUser binds user to ctx for the Context provider.
func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// Context resolves the current user from the request context. A context
// without a bound user reports ErrUnauthenticated; there is no pending state
// because the transport only builds contexts after its own handshake.
type Context struct{}

func (Context) CurrentUser(ctx context.Context) (domain.User, error) {
	if user, ok := ctx.Value(contextKey{}).(domain.User); ok && user.ID != "" {
		return user, nil
	}
	return domain.User{}, domain.ErrUnauthenticated
}

// Static is a settable provider for tests and demo wiring. It starts in the
// resolving state: callers see ErrAuthPending until Resolve or SignOut moves
// it on, keeping "no user" and "not yet resolved" distinct.
type Static struct {
	mu       sync.RWMutex
	resolved bool
	user     *domain.User
}

func NewStatic() *Static {
	return &Static{}
}

// NewStaticUser returns a provider already resolved to user.
func NewStaticUser(user domain.User) *Static {
	return &Static{resolved: true, user: &user}
}

// Resolve completes bootstrap with a signed-in user.
func (s *Static) Resolve(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = true
	s.user = &user
}

// SignOut completes bootstrap (or ends a session) with no user.
func (s *Static) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = true
	s.user = nil
}

func (s *Static) CurrentUser(context.Context) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.resolved {
		return domain.User{}, domain.ErrAuthPending
	}
	if s.user == nil {
		return domain.User{}, domain.ErrUnauthenticated
	}
	return *s.user, nil
}
