// Package session owns the client's authenticated identity: a tagged state
// machine over (user, token) with crash-safe local persistence and a
// verify-in-background startup reconciliation against the live profile API.
package session

import "github.com/affinityhq/affinity/internal/domain"

// State is the session lifecycle state.
type State string

const (
	// StateUninitialized is the state before startup reconciliation ran.
	StateUninitialized State = "uninitialized"

	// StateVerifying means cached credentials were found and a background
	// profile fetch is confirming them. With a cached user the session
	// already counts as authenticated while the fetch is pending.
	StateVerifying State = "verifying"

	// StateAuthenticated means the identity is confirmed.
	StateAuthenticated State = "authenticated"

	// StateAnonymous means no valid session exists.
	StateAnonymous State = "anonymous"
)

// Credentials is the durable (token, user) pair. The two are always written
// together as one document so storage can never hold one without the other.
type Credentials struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user,omitempty"`
}

// Snapshot is a read-only view of the session at one point in time.
type Snapshot struct {
	State State
	User  *domain.User
	Token string
}

// IsAuthenticated reports whether requests may be issued with this identity.
// It is never true without a token. A verifying session with a cached user
// counts as authenticated so startup does not flash a logged-out view.
func (s Snapshot) IsAuthenticated() bool {
	if s.Token == "" {
		return false
	}
	switch s.State {
	case StateAuthenticated:
		return true
	case StateVerifying:
		return s.User != nil
	}
	return false
}

// Loading reports whether the identity is still unresolved: reconciliation
// has not run, or a token is being verified with no cached user to show.
func (s Snapshot) Loading() bool {
	if s.State == StateUninitialized {
		return true
	}
	return s.State == StateVerifying && s.User == nil
}
