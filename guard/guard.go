// Package guard decides, on every navigation, whether the current session
// may enter the destination.
package guard

import (
	"log/slog"

	"github.com/lichtbild/fotoadmin/api"
	"github.com/lichtbild/fotoadmin/events"
	"github.com/lichtbild/fotoadmin/session"
)

// User-visible notices for denied navigations.
const (
	NoticeLoginRequired = "Please log in"
	NoticeAccessDenied  = "Access denied"
)

// Decision is the outcome of evaluating one navigation.
type Decision struct {
	Allow    bool
	Redirect string
	Notice   string
}

// Evaluate classifies the destination and checks the session against it.
// Order matters: public destinations short-circuit; private ones require
// an authenticated session (a pending second factor does not count); the
// admin-only subset then requires a known ADMIN role. An unknown role
// (the who-am-I fetch still in flight) is insufficient: the check fails
// closed and re-evaluates once the role resolves.
func Evaluate(path string, snap session.Snapshot) Decision {
	if IsPublic(path) {
		return Decision{Allow: true}
	}
	if !snap.Authenticated {
		return Decision{Redirect: LoginPath, Notice: NoticeLoginRequired}
	}
	if IsAdminOnly(path) && snap.Role != api.RoleAdmin {
		return Decision{Redirect: DefaultLanding, Notice: NoticeAccessDenied}
	}
	return Decision{Allow: true}
}

// Navigator moves the shell to another destination without re-running the
// guard (the redirect targets are always admissible).
type Navigator interface {
	Redirect(path string)
}

// Notifier shows a transient, auto-dismissing notice.
type Notifier interface {
	Notify(text string)
}

// Guard binds route evaluation to the application shell.
type Guard struct {
	sessions *session.Manager
	nav      Navigator
	notes    Notifier
	logger   *slog.Logger
}

func New(sessions *session.Manager, nav Navigator, notes Notifier, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{sessions: sessions, nav: nav, notes: notes, logger: logger}
}

// Admit evaluates path against the live session and applies the outcome:
// either the navigation may proceed, or the shell has been redirected and
// notified. The session is read fresh here, not captured earlier; by the
// time a navigation happens the session may have changed again.
func (g *Guard) Admit(path string) bool {
	d := Evaluate(path, g.sessions.Snapshot())
	if d.Allow {
		return true
	}
	g.logger.Info("navigation denied", "path", path, "redirect", d.Redirect)
	if d.Notice != "" {
		g.notes.Notify(d.Notice)
	}
	g.nav.Redirect(d.Redirect)
	return false
}

// Bind subscribes the guard to the forbidden channel for the life of the
// shell: any 403 anywhere surfaces the same access-denied notice,
// independent of navigation. The returned release is idempotent.
func (g *Guard) Bind(bus *events.Bus) (release func()) {
	return bus.Forbidden.Subscribe(func() {
		g.notes.Notify(NoticeAccessDenied)
	})
}
