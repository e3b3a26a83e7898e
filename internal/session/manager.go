package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/affinityhq/affinity/internal/api"
	"github.com/affinityhq/affinity/internal/domain"
)

// AuthAPI is the slice of the platform API the session manager needs.
type AuthAPI interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.AuthResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error)
	Profile(ctx context.Context) (*domain.User, error)
}

// Result is the structured outcome of an auth operation. Failures are
// reported here, not as errors: a failed login is an expected outcome and
// must leave the current session untouched.
type Result struct {
	Success                   bool
	User                      *domain.User
	Message                   string
	EmailVerificationRequired bool
}

// Manager is the single source of truth for "who is logged in". It is the
// sole writer of the credential store; every mutation persists the
// (token, user) pair before the in-memory transition is published.
type Manager struct {
	store  CredentialStore
	auth   AuthAPI
	logger *slog.Logger

	validate *validator.Validate

	mu    sync.RWMutex
	state State
	user  *domain.User
	token string
}

// NewManager creates a session manager. The API can be attached later with
// SetAuthAPI when client construction needs the manager as token source.
func NewManager(store CredentialStore, auth AuthAPI, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    store,
		auth:     auth,
		logger:   logger,
		validate: validator.New(),
		state:    StateUninitialized,
	}
}

// SetAuthAPI attaches the auth API.
func (m *Manager) SetAuthAPI(auth AuthAPI) {
	m.auth = auth
}

// Snapshot returns a read-only view of the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{State: m.state, User: m.user, Token: m.token}
}

// Token implements api.TokenSource.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Bootstrap runs the storage-only part of startup reconciliation: it reads
// the cached credential pair and either transitions straight to Anonymous
// or enters Verifying. With a cached user the session is optimistically
// authenticated while verification is pending. It reports whether Verify
// still needs to run.
func (m *Manager) Bootstrap() bool {
	creds, err := m.store.Load()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil && !errors.Is(err, ErrNoCredentials) {
		m.logger.Warn("read stored credentials", "error", err)
	}

	if creds == nil || creds.Token == "" {
		// Nothing usable cached. A user without a token would violate the
		// pairing invariant, so any stale entry is dropped here.
		if err := m.store.Clear(); err != nil {
			m.logger.Warn("clear stale credentials", "error", err)
		}
		m.state = StateAnonymous
		m.user = nil
		m.token = ""
		return false
	}

	m.state = StateVerifying
	m.token = creds.Token
	m.user = creds.User

	if info, err := PeekToken(creds.Token); err == nil && !info.ExpiresAt.IsZero() {
		m.logger.Debug("verifying cached session", "subject", info.Subject, "expires_at", info.ExpiresAt)
	}
	return true
}

// Verify completes reconciliation with a live profile fetch. Any failure is
// treated as an invalid token: storage is cleared and the session rolls
// back to Anonymous, forcing re-login rather than running with an
// unverifiable identity. No retry is attempted. When the fresh record
// equals the cached one, no storage write happens.
func (m *Manager) Verify(ctx context.Context) {
	fresh, err := m.auth.Profile(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateVerifying {
		// Logout (or another transition) won the race; its outcome stands.
		return
	}

	if err != nil {
		m.logger.Warn("session verification failed, forcing re-login", "error", err)
		if cerr := m.store.Clear(); cerr != nil {
			m.logger.Warn("clear credentials", "error", cerr)
		}
		m.state = StateAnonymous
		m.user = nil
		m.token = ""
		return
	}

	if !fresh.Equal(m.user) {
		if serr := m.store.Save(&Credentials{Token: m.token, User: fresh}); serr != nil {
			m.logger.Warn("persist refreshed user", "error", serr)
		}
		m.user = fresh
	}
	m.state = StateAuthenticated
}

// Start runs Bootstrap and, when needed, verification in the background.
// The returned channel closes once the session state is settled.
func (m *Manager) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if !m.Bootstrap() {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		m.Verify(ctx)
	}()
	return done
}

// Login exchanges credentials for an authenticated session. A rejected
// login does not disturb existing state.
func (m *Manager) Login(ctx context.Context, req api.LoginRequest) Result {
	if err := m.validate.Struct(req); err != nil {
		return Result{Message: "email and password are required"}
	}

	resp, err := m.auth.Login(ctx, req)
	if err != nil {
		m.logger.Info("login rejected", "email", req.Email, "error", err)
		return Result{Message: api.Message(err)}
	}
	if resp.User == nil || resp.Token == "" {
		return Result{Message: "login response was incomplete"}
	}

	if err := m.setAuthenticated(resp.User, resp.Token); err != nil {
		return Result{Message: fmt.Sprintf("persist session: %v", err)}
	}
	return Result{Success: true, User: resp.User}
}

// Register creates a new account. When the server requires email
// verification (explicit flag or missing token) the session stays
// unauthenticated; otherwise registration behaves like a successful login.
func (m *Manager) Register(ctx context.Context, req api.RegisterRequest) Result {
	if err := m.validate.Struct(req); err != nil {
		return Result{Message: registrationMessage(err)}
	}

	resp, err := m.auth.Register(ctx, req)
	if err != nil {
		return Result{Message: api.Message(err)}
	}

	if resp.EmailVerificationRequired || resp.Token == "" {
		msg := resp.Message
		if msg == "" {
			msg = "check your email to verify your account before logging in"
		}
		return Result{
			Success:                   true,
			User:                      resp.User,
			Message:                   msg,
			EmailVerificationRequired: true,
		}
	}
	if resp.User == nil {
		return Result{Message: "registration response was incomplete"}
	}

	if err := m.setAuthenticated(resp.User, resp.Token); err != nil {
		return Result{Message: fmt.Sprintf("persist session: %v", err)}
	}
	return Result{Success: true, User: resp.User}
}

// Logout drops the session unconditionally. It is client-side only, works
// from any state, and cannot fail: a storage error is logged but the
// in-memory transition to Anonymous happens regardless.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.logger.Warn("clear credentials on logout", "error", err)
	}
	m.state = StateAnonymous
	m.user = nil
	m.token = ""
}

// UpdateUser shallow-merges the patch into the current user and persists
// the merged record. The token and authentication state are untouched.
func (m *Manager) UpdateUser(patch domain.UserPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil || m.token == "" {
		return domain.ErrNotAuthenticated
	}

	merged := patch.Apply(*m.user)
	if err := m.store.Save(&Credentials{Token: m.token, User: &merged}); err != nil {
		return fmt.Errorf("persist updated user: %w", err)
	}
	m.user = &merged
	return nil
}

// SetUser authenticates from credentials obtained outside the normal login
// call, e.g. a post-email-verification auto-login. It behaves like the
// success path of Login.
func (m *Manager) SetUser(user *domain.User, token string) error {
	if user == nil || token == "" {
		return domain.ErrInvalidInput
	}
	return m.setAuthenticated(user, token)
}

// setAuthenticated persists the pair first, then publishes the transition.
func (m *Manager) setAuthenticated(user *domain.User, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Save(&Credentials{Token: token, User: user}); err != nil {
		return err
	}
	m.state = StateAuthenticated
	m.user = user
	m.token = token
	return nil
}

// registrationMessage maps the first validation failure to a field-scoped
// message.
func registrationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "email":
			return "a valid email address is required"
		case "min":
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		default:
			return fmt.Sprintf("%s is required", fe.Field())
		}
	}
	return "registration details are invalid"
}
