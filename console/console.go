// Package console is the application shell: a small interactive terminal
// that navigates between the service's screens the way the browser
// console navigates between pages. Every screen transition runs through
// the route guard; every request the screens make runs through the
// credential-injecting transport.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lichtbild/fotoadmin/api"
	"github.com/lichtbild/fotoadmin/events"
	"github.com/lichtbild/fotoadmin/guard"
	"github.com/lichtbild/fotoadmin/session"
)

// Shell owns navigation state, the notice area, and the lifetime of the
// global failure subscriptions.
type Shell struct {
	client   *api.Client
	sessions *session.Manager
	bus      *events.Bus
	guard    *guard.Guard
	notices  *Notices
	logger   *slog.Logger
	out      io.Writer

	pollInterval time.Duration

	mu       sync.Mutex
	current  string
	unmount  func()
	releases []func()
}

// Option configures the Shell.
type Option func(*shellOptions)

type shellOptions struct {
	logger       *slog.Logger
	noticeTTL    time.Duration
	pollInterval time.Duration
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *shellOptions) { o.logger = logger }
}

// WithNoticeTTL overrides how long notices stay visible.
func WithNoticeTTL(ttl time.Duration) Option {
	return func(o *shellOptions) { o.noticeTTL = ttl }
}

// WithPollInterval overrides the export screen's refresh interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *shellOptions) { o.pollInterval = d }
}

// NewShell wires the shell to the session subsystem and subscribes the
// global failure reactions for its lifetime. Close releases them.
func NewShell(client *api.Client, sessions *session.Manager, bus *events.Bus, out io.Writer, opts ...Option) *Shell {
	var o shellOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.pollInterval <= 0 {
		o.pollInterval = defaultExportPollInterval
	}
	s := &Shell{
		client:       client,
		sessions:     sessions,
		bus:          bus,
		notices:      NewNotices(out, o.noticeTTL),
		logger:       o.logger,
		out:          out,
		pollInterval: o.pollInterval,
		current:      guard.LoginPath,
	}
	s.guard = guard.New(sessions, s, s.notices, o.logger)

	// A 401 anywhere forces the session down; the session-change handler
	// below then kicks the shell off whatever private screen it was on.
	s.releases = append(s.releases, bus.Unauthorized.Subscribe(s.onUnauthorized))
	// A 403 anywhere surfaces the access-denied notice (guard.Bind) and
	// backs off to the default landing.
	s.releases = append(s.releases, s.guard.Bind(bus))
	s.releases = append(s.releases, bus.Forbidden.Subscribe(s.onForbidden))
	// Re-check the current destination whenever the session changes; a
	// role resolving or a logout can invalidate the screen under us.
	s.releases = append(s.releases, sessions.OnChange(s.onSessionChange))

	if s.sessions.Snapshot().Authenticated {
		s.current = guard.DefaultLanding
	}
	return s
}

// Close releases subscriptions, stops the mounted screen, and cancels
// notice timers. Safe to call more than once.
func (s *Shell) Close() {
	s.mu.Lock()
	releases := s.releases
	s.releases = nil
	unmount := s.unmount
	s.unmount = nil
	s.mu.Unlock()

	for _, release := range releases {
		release()
	}
	if unmount != nil {
		unmount()
	}
	s.notices.Close()
}

// Current returns the path of the screen the shell is on.
func (s *Shell) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Notices exposes the notice area (tests and the guard use it).
func (s *Shell) Notices() *Notices { return s.notices }

// Navigate runs the route guard against path and, if admitted, mounts the
// destination screen. A denied navigation has already been redirected and
// notified by the guard.
func (s *Shell) Navigate(ctx context.Context, path string) {
	if !s.guard.Admit(path) {
		return
	}
	s.enter(ctx, path)
}

// Redirect moves without re-running the guard; its targets (login, the
// default landing) are always admissible.
func (s *Shell) Redirect(path string) {
	s.enter(context.Background(), path)
}

// enter swaps the mounted screen. The previous screen's resources
// (pollers, subscriptions) are released unconditionally, even when
// mounting the next screen fails.
func (s *Shell) enter(ctx context.Context, path string) {
	s.mu.Lock()
	prevUnmount := s.unmount
	s.unmount = nil
	s.current = path
	s.mu.Unlock()

	if prevUnmount != nil {
		prevUnmount()
	}

	unmount, err := s.render(ctx, path)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		s.logger.Warn("screen render failed", "path", path, "error", err)
	}
	if unmount != nil {
		s.mu.Lock()
		if s.current == path {
			s.unmount = unmount
			s.mu.Unlock()
		} else {
			// Navigation raced us; the screen is already stale.
			s.mu.Unlock()
			unmount()
		}
	}
}

func (s *Shell) onUnauthorized() {
	// Clearing twice is fine; concurrent 401s may all land here.
	s.sessions.Logout()
}

func (s *Shell) onForbidden() {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == guard.DefaultLanding || !s.sessions.Snapshot().Authenticated {
		return
	}
	s.Redirect(guard.DefaultLanding)
}

func (s *Shell) onSessionChange() {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	// Admit re-reads the live session; if the screen under us became
	// inadmissible it redirects and notifies.
	s.guard.Admit(current)
}

// Run reads commands until EOF or quit. This is the interactive loop; the
// one-shot cobra commands drive the same client and session manager
// without it.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(s.out, "fotoadmin console, 'help' for commands")
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		s.dispatch(ctx, line)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return scanner.Err()
}

func (s *Shell) dispatch(ctx context.Context, line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "help":
		fmt.Fprintln(s.out, "commands: go <path> | login <email> <password> | verify <code> | 2fa-disable | logout | whoami | quit")
	case "go":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "usage: go <path>")
			return
		}
		s.Navigate(ctx, args[0])
	case "login":
		if len(args) != 2 {
			fmt.Fprintln(s.out, "usage: login <email> <password>")
			return
		}
		s.login(ctx, args[0], args[1])
	case "verify":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "usage: verify <code>")
			return
		}
		s.verify(ctx, args[0])
	case "2fa-disable":
		if err := s.sessions.DisableSecondFactor(ctx); err != nil {
			fmt.Fprintf(s.out, "disabling second factor failed: %v\n", err)
			return
		}
		fmt.Fprintln(s.out, "second factor disabled; session closed")
		s.Redirect(guard.LoginPath)
	case "logout":
		s.sessions.Logout()
		s.Redirect(guard.LoginPath)
	case "whoami":
		s.whoami()
	default:
		fmt.Fprintf(s.out, "unknown command %q\n", cmd)
	}
}

func (s *Shell) login(ctx context.Context, email, password string) {
	resp, err := s.client.Login(ctx, email, password)
	if err != nil {
		// A 401 here is just a wrong password; the global reaction has
		// already fired but the login screen keeps its own message.
		fmt.Fprintf(s.out, "login failed: %v\n", err)
		return
	}
	switch {
	case resp.Challenge != "":
		if err := s.sessions.IssueChallenge(resp.Challenge); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			return
		}
		s.Redirect("/2fa/verify")
		fmt.Fprintln(s.out, "second factor required: verify <code>")
	case resp.AccessToken != "":
		s.sessions.Login(resp.AccessToken)
		s.Redirect(guard.DefaultLanding)
	default:
		fmt.Fprintln(s.out, "login failed: empty response")
	}
}

func (s *Shell) verify(ctx context.Context, code string) {
	snap := s.sessions.Snapshot()
	if snap.PendingChallenge == "" {
		fmt.Fprintln(s.out, "no verification pending; use login first")
		return
	}
	resp, err := s.client.VerifyTwoFactor(ctx, snap.PendingChallenge, code)
	if err != nil {
		fmt.Fprintf(s.out, "verification failed: %v\n", err)
		return
	}
	s.sessions.Login(resp.AccessToken)
	s.Redirect(guard.DefaultLanding)
}

func (s *Shell) whoami() {
	snap := s.sessions.Snapshot()
	fmt.Fprintf(s.out, "state: %s", snap.State)
	if snap.Authenticated {
		role := string(snap.Role)
		if role == "" {
			role = "(resolving)"
		}
		fmt.Fprintf(s.out, ", role: %s", role)
		if snap.HasIdentity {
			fmt.Fprintf(s.out, ", id: %d", snap.Identity)
		}
	}
	fmt.Fprintln(s.out)
}
