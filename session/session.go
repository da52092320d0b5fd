// Package session tracks who is logged in.
//
// The machine has three states: Anonymous (no token, no challenge),
// AwaitingFactor (login answered with a second-factor challenge), and
// Authenticated (token present). Token and challenge are never both
// present. Role and identity arrive asynchronously from the who-am-I
// endpoint after the token does; until then the role is unknown and
// role-gated checks fail closed.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lichtbild/fotoadmin/api"
	"github.com/lichtbild/fotoadmin/creds"
	"github.com/lichtbild/fotoadmin/events"
)

// ErrInvalidTransition is returned for transitions the machine does not
// permit, such as issuing a challenge while already authenticated. This
// is a programming error in the caller, not a user-recoverable state.
var ErrInvalidTransition = errors.New("invalid session transition")

// State is the coarse position in the login flow.
type State int

const (
	Anonymous State = iota
	AwaitingFactor
	Authenticated
)

func (s State) String() string {
	switch s {
	case AwaitingFactor:
		return "awaiting second factor"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Snapshot is a point-in-time read of the session. Role is RoleUnknown
// until the who-am-I fetch resolves.
type Snapshot struct {
	State            State
	Authenticated    bool
	Role             api.Role
	Identity         int64
	HasIdentity      bool
	PendingChallenge string
}

// IdentityClient is the slice of the API client the manager needs.
type IdentityClient interface {
	Me(ctx context.Context) (*api.Me, error)
	DisableTwoFactor(ctx context.Context) error
}

const identityFetchTimeout = 15 * time.Second

// Manager is the session state machine. Token and challenge presence live
// in the credential store (so the transport and a restart see the same
// truth); role and identity live here.
type Manager struct {
	mu     sync.Mutex
	store  *creds.Store
	client IdentityClient
	logger *slog.Logger

	role        api.Role
	identity    int64
	hasIdentity bool

	changed *events.Registry
}

// New builds a Manager over the already-rehydrated credential store. If a
// token survived the restart the session is immediately Authenticated and
// the role fetch is kicked off; a surviving challenge resumes
// AwaitingFactor so the verification screen can pick up where it left
// off.
func New(store *creds.Store, client IdentityClient, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:   store,
		client:  client,
		logger:  logger,
		changed: events.NewRegistry(logger),
	}
	if token, ok := store.Token(); ok {
		m.logger.Info("session rehydrated from persisted credential")
		go m.refreshIdentity(token)
	} else if _, ok := store.Challenge(); ok {
		m.logger.Info("session rehydrated mid second-factor verification")
	}
	return m
}

// OnChange registers fn to run after every state transition, including
// role/identity resolution. Returns an unsubscribe function.
func (m *Manager) OnChange(fn func()) (unsubscribe func()) {
	return m.changed.Subscribe(fn)
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		State:       Anonymous,
		Role:        m.role,
		Identity:    m.identity,
		HasIdentity: m.hasIdentity,
	}
	if _, ok := m.store.Token(); ok {
		snap.State = Authenticated
		snap.Authenticated = true
	} else if challenge, ok := m.store.Challenge(); ok {
		snap.State = AwaitingFactor
		snap.PendingChallenge = challenge
	}
	return snap
}

// Login installs a bearer token, obtained either directly from the login
// endpoint or from a successful second-factor verification. Any pending
// challenge is consumed; role and identity are fetched in the background
// and are transiently unknown.
func (m *Manager) Login(token string) {
	m.mu.Lock()
	m.store.SetToken(token)
	m.store.ClearChallenge()
	m.role = api.RoleUnknown
	m.identity = 0
	m.hasIdentity = false
	m.mu.Unlock()

	m.logger.Info("session authenticated")
	m.changed.Publish()
	go m.refreshIdentity(token)
}

// IssueChallenge records a pending second-factor challenge. Only valid
// from Anonymous: a live session has no business starting a login, and a
// second challenge would clobber the first.
func (m *Manager) IssueChallenge(token string) error {
	m.mu.Lock()
	if _, ok := m.store.Token(); ok {
		m.mu.Unlock()
		m.logger.Error("challenge issued while authenticated", "error", ErrInvalidTransition)
		return ErrInvalidTransition
	}
	if _, ok := m.store.Challenge(); ok {
		m.mu.Unlock()
		m.logger.Error("challenge issued while one is pending", "error", ErrInvalidTransition)
		return ErrInvalidTransition
	}
	m.store.SetChallenge(token)
	m.mu.Unlock()

	m.logger.Info("second-factor challenge pending")
	m.changed.Publish()
	return nil
}

// Logout drops the whole session: token, challenge, role, identity. It is
// valid from every state and idempotent; it is also the recovery path
// after the transport sees a 401.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.store.ClearToken()
	m.store.ClearChallenge()
	m.role = api.RoleUnknown
	m.identity = 0
	m.hasIdentity = false
	m.mu.Unlock()

	m.logger.Info("session cleared")
	m.changed.Publish()
}

// DisableSecondFactor asks the server to revoke the second factor. The
// server invalidates the session on success, so a successful call behaves
// exactly like Logout. On failure the session is left untouched and the
// error is returned.
func (m *Manager) DisableSecondFactor(ctx context.Context) error {
	if err := m.client.DisableTwoFactor(ctx); err != nil {
		return err
	}
	m.Logout()
	return nil
}

// refreshIdentity resolves role and identity for the given token. By the
// time the response arrives the session may have moved on (a logout or a
// fresh login may have raced it), so the result is applied only if the
// store still holds the same token.
func (m *Manager) refreshIdentity(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), identityFetchTimeout)
	defer cancel()

	me, err := m.client.Me(ctx)
	if err != nil {
		// A 401 here has already been handled globally by the transport
		// (credential cleared, listeners notified); anything else leaves
		// the role unknown, which fails closed at the guard.
		m.logger.Warn("identity fetch failed, role stays unknown", "error", err)
		return
	}

	m.mu.Lock()
	current, ok := m.store.Token()
	if !ok || current != token {
		m.mu.Unlock()
		m.logger.Info("identity fetch outlived its session, discarding result")
		return
	}
	m.role = me.Role
	m.identity = me.ID
	m.hasIdentity = true
	m.mu.Unlock()

	m.logger.Info("identity resolved", "role", string(me.Role), "id", me.ID)
	m.changed.Publish()
}
