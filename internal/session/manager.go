package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"groww-gateway/internal/config"
)

// refreshInterval is the safety-net re-authentication period, independent of
// any provider-signaled expiry.
const refreshInterval = 8 * time.Hour

// record is the session state, replaced wholesale on each successful login.
type record struct {
	authenticated bool
	lastAuthTime  time.Time
	metadata      map[string]any
	client        Client
}

// Info is a read-only snapshot of the session for health reporting.
type Info struct {
	Authenticated bool           `json:"authenticated"`
	LastAuthTime  *time.Time     `json:"last_auth_time"`
	ShouldRefresh bool           `json:"should_refresh"`
	SessionData   map[string]any `json:"session_data"`
}

// Manager coordinates authentication against the provider. Readers observe
// the session record under a RWMutex; login round-trips serialize behind a
// separate mutex so concurrent stale callers trigger a single login.
type Manager struct {
	provider  Provider
	apiKey    string
	apiSecret string
	totpSeed  string
	logger    *slog.Logger
	now       func() time.Time

	authMu sync.Mutex // serializes login round-trips
	mu     sync.RWMutex
	sess   record
}

// NewManager creates a session manager. No login is attempted until the
// first Authenticate or GetClient call.
func NewManager(provider Provider, cfg config.GrowwConfig, logger *slog.Logger) *Manager {
	return &Manager{
		provider:  provider,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		totpSeed:  cfg.TOTPSeed,
		logger:    logger.With("component", "session"),
		now:       time.Now,
	}
}

// Authenticate performs a single login attempt. Concurrent calls serialize;
// each caller still pays for its own round-trip. Failures are never retried
// here, that is the caller's decision.
func (m *Manager) Authenticate(ctx context.Context) error {
	m.authMu.Lock()
	defer m.authMu.Unlock()
	return m.login(ctx)
}

// GetClient returns the live client handle, logging in first if the session
// was never established or is past its refresh deadline. When N callers
// arrive with no session, one performs the login and the rest reuse its
// result.
func (m *Manager) GetClient(ctx context.Context) (Client, error) {
	if c, ok := m.freshClient(); ok {
		return c, nil
	}

	m.authMu.Lock()
	defer m.authMu.Unlock()

	// A login that finished while we waited for the mutex counts.
	if c, ok := m.freshClient(); ok {
		return c, nil
	}
	if err := m.login(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess.client, nil
}

// ForceRefresh discards the current session state and logs in again.
func (m *Manager) ForceRefresh(ctx context.Context) error {
	m.authMu.Lock()
	defer m.authMu.Unlock()

	m.mu.Lock()
	m.sess.authenticated = false
	m.mu.Unlock()

	m.logger.Info("forcing authentication refresh")
	return m.login(ctx)
}

// Logout clears the session to its empty state. Provider-side notification
// is best-effort; Logout itself never fails.
func (m *Manager) Logout() {
	m.authMu.Lock()
	defer m.authMu.Unlock()

	m.mu.Lock()
	wasAuthenticated := m.sess.authenticated
	m.sess = record{}
	m.mu.Unlock()

	if wasAuthenticated {
		m.logger.Info("logged out")
	}
}

// IsAuthenticated reports whether a usable session exists right now.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess.authenticated && m.sess.client != nil
}

// ShouldRefresh reports whether the next GetClient would trigger a login.
func (m *Manager) ShouldRefresh() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshDue(m.sess)
}

// SessionInfo returns a snapshot for health/status endpoints.
func (m *Manager) SessionInfo() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info := Info{
		Authenticated: m.sess.authenticated,
		ShouldRefresh: m.refreshDue(m.sess),
		SessionData:   m.sess.metadata,
	}
	if !m.sess.lastAuthTime.IsZero() {
		t := m.sess.lastAuthTime
		info.LastAuthTime = &t
	}
	return info
}

// freshClient returns the client handle if the session is usable as-is.
func (m *Manager) freshClient() (Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sess.authenticated && !m.refreshDue(m.sess) {
		return m.sess.client, true
	}
	return nil, false
}

func (m *Manager) refreshDue(s record) bool {
	if s.lastAuthTime.IsZero() {
		return true
	}
	return m.now().Sub(s.lastAuthTime) > refreshInterval
}

// login performs one provider round-trip. Callers must hold authMu.
func (m *Manager) login(ctx context.Context) error {
	creds := Login{APIKey: m.apiKey, APISecret: m.apiSecret}

	if m.totpSeed != "" {
		code, err := totp.GenerateCode(m.totpSeed, m.now())
		if err != nil {
			m.markFailed()
			return &AuthError{Kind: KindTransport, Message: "generate totp code", Err: err}
		}
		creds.TOTPCode = code
	}

	m.logger.Info("attempting authentication", "totp", creds.TOTPCode != "")

	res, err := m.provider.Login(ctx, creds)
	if err != nil {
		m.markFailed()
		m.logger.Error("authentication transport failure", "error", err)
		return &AuthError{Kind: KindTransport, Message: err.Error(), Err: err}
	}
	if !strings.EqualFold(res.Status, "success") {
		m.markFailed()
		msg := res.ErrorMessage
		if msg == "" {
			msg = "unknown authentication error"
		}
		m.logger.Error("authentication rejected", "error", msg)
		return &AuthError{Kind: KindCredentialsRejected, Message: msg}
	}

	m.mu.Lock()
	m.sess = record{
		authenticated: true,
		lastAuthTime:  m.now(),
		metadata:      res.Metadata,
		client:        res.Client,
	}
	m.mu.Unlock()

	m.logger.Info("authentication successful",
		"session_id", metadataString(res.Metadata, "session_id"),
		"user_id", metadataString(res.Metadata, "user_id"),
	)
	return nil
}

// markFailed flips the authenticated flag, leaving lastAuthTime untouched so
// observers can still see when the last good login happened.
func (m *Manager) markFailed() {
	m.mu.Lock()
	m.sess.authenticated = false
	m.mu.Unlock()
}

func metadataString(md map[string]any, key string) string {
	if s, ok := md[key].(string); ok {
		return s
	}
	return "unknown"
}
