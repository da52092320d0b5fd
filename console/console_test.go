package console

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lichtbild/fotoadmin/api"
	"github.com/lichtbild/fotoadmin/creds"
	"github.com/lichtbild/fotoadmin/events"
	"github.com/lichtbild/fotoadmin/guard"
	"github.com/lichtbild/fotoadmin/session"
	"github.com/lichtbild/fotoadmin/storage/memory"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

type fixture struct {
	store *creds.Store
	bus   *events.Bus
	mgr   *session.Manager
	shell *Shell
	out   *syncBuffer
}

// syncBuffer guards the output buffer; pollers write concurrently.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newFixture(t *testing.T, rt roundTripFunc, opts ...Option) *fixture {
	t.Helper()
	store := creds.Open(memory.NewStore(), nil)
	bus := events.NewBus(nil)
	client, err := api.New("http://api.test", store, bus, api.WithBaseTransport(rt))
	require.NoError(t, err)
	mgr := session.New(store, client, nil)
	out := &syncBuffer{}
	shell := NewShell(client, mgr, bus, out, opts...)
	t.Cleanup(shell.Close)
	return &fixture{store: store, bus: bus, mgr: mgr, shell: shell, out: out}
}

func TestNotices_AutoDismiss(t *testing.T) {
	out := &syncBuffer{}
	n := NewNotices(out, 30*time.Millisecond)
	defer n.Close()

	n.Notify("Access denied")
	assert.Equal(t, []string{"Access denied"}, n.Active())
	assert.Contains(t, out.String(), "! Access denied")

	assert.Eventually(t, func() bool { return len(n.Active()) == 0 },
		time.Second, 5*time.Millisecond, "notice must dismiss itself")
}

func TestNotices_CloseStopsTimersAndDropsNotify(t *testing.T) {
	n := NewNotices(io.Discard, time.Hour)
	n.Notify("one")
	n.Close()
	n.Notify("two")
	assert.Empty(t, n.Active())
}

func TestShell_StartsOnLoginWhenAnonymous(t *testing.T) {
	f := newFixture(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `[]`), nil
	})
	assert.Equal(t, guard.LoginPath, f.shell.Current())
}

func TestShell_DeniedNavigationRedirects(t *testing.T) {
	f := newFixture(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `[]`), nil
	})

	f.shell.Navigate(context.Background(), "/photos")
	assert.Equal(t, "/login", f.shell.Current())
	assert.Contains(t, f.shell.Notices().Active(), guard.NoticeLoginRequired)
}

func TestShell_UnauthorizedResponseForcesLogoutAndRedirect(t *testing.T) {
	f := newFixture(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == "/photos" {
			return jsonResponse(http.StatusOK, `[]`), nil
		}
		return jsonResponse(http.StatusUnauthorized, `{"error":"expired"}`), nil
	})

	f.store.SetToken("tok")
	f.shell.Navigate(context.Background(), "/photos")
	require.Equal(t, "/photos", f.shell.Current())

	// A fetch deep inside the orders screen observes the 401; the shell
	// must end up logged out on the login screen regardless of where the
	// request came from.
	f.shell.Navigate(context.Background(), "/orders")

	assert.Equal(t, "/login", f.shell.Current())
	assert.False(t, f.mgr.Snapshot().Authenticated)
	_, ok := f.store.Token()
	assert.False(t, ok)
	assert.Contains(t, f.shell.Notices().Active(), guard.NoticeLoginRequired)
}

func TestShell_ForbiddenResponseNotifiesAndBacksOff(t *testing.T) {
	f := newFixture(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == "/shares" {
			return jsonResponse(http.StatusForbidden, `{"error":"forbidden"}`), nil
		}
		return jsonResponse(http.StatusOK, `[]`), nil
	})

	f.store.SetToken("tok")
	f.shell.Navigate(context.Background(), "/shares")

	assert.Equal(t, guard.DefaultLanding, f.shell.Current())
	assert.Contains(t, f.shell.Notices().Active(), guard.NoticeAccessDenied)
	// 403 does not kill the session.
	assert.True(t, f.mgr.Snapshot().Authenticated)
}

func TestShell_LoginFlowWithChallenge(t *testing.T) {
	f := newFixture(t, func(r *http.Request) (*http.Response, error) {
		switch r.URL.Path {
		case "/auth/login":
			return jsonResponse(http.StatusOK, `{"challenge":"chal-1"}`), nil
		case "/auth/2fa/verify":
			return jsonResponse(http.StatusOK, `{"access_token":"tok-verified"}`), nil
		case "/auth/me":
			return jsonResponse(http.StatusOK, `{"id":5,"email":"a@b.c","role":"ADMIN"}`), nil
		default:
			return jsonResponse(http.StatusOK, `[]`), nil
		}
	})

	ctx := context.Background()
	f.shell.dispatch(ctx, "login chef@lichtbild.example secret")
	assert.Equal(t, "/2fa/verify", f.shell.Current())
	snap := f.mgr.Snapshot()
	assert.Equal(t, session.AwaitingFactor, snap.State)
	assert.Equal(t, "chal-1", snap.PendingChallenge)

	f.shell.dispatch(ctx, "verify 123456")
	assert.Equal(t, guard.DefaultLanding, f.shell.Current())
	snap = f.mgr.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.Empty(t, snap.PendingChallenge)

	tok, ok := f.store.Token()
	require.True(t, ok)
	assert.Equal(t, "tok-verified", tok)
}

func TestShell_ExportPollerStopsOnNavigation(t *testing.T) {
	var exportCalls atomic.Int64
	f := newFixture(t, func(r *http.Request) (*http.Response, error) {
		switch r.URL.Path {
		case "/auth/me":
			return jsonResponse(http.StatusOK, `{"id":1,"email":"a@b.c","role":"ADMIN"}`), nil
		case "/exports":
			exportCalls.Add(1)
		}
		return jsonResponse(http.StatusOK, `[]`), nil
	}, WithPollInterval(10*time.Millisecond))

	f.mgr.Login("tok")
	waitForRole(t, f.mgr) // let the identity fetch finish before mounting

	f.shell.Navigate(context.Background(), "/exports")
	assert.Eventually(t, func() bool { return exportCalls.Load() >= 3 },
		time.Second, 5*time.Millisecond, "poller should refresh while mounted")

	f.shell.Navigate(context.Background(), "/photos")
	settled := waitForSettled(t, &exportCalls)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, exportCalls.Load(), "unmounted screen must stop polling")
}

// A refresh issued by the mounted export poller can itself be the request
// that observes a 401. The global reaction tears the screen down from
// inside the poller's own call stack: the shell must land on the login
// screen and the poller goroutine must exit instead of waiting on itself.
func TestShell_ExportPollerObserving401ExitsCleanly(t *testing.T) {
	baseline := runtime.NumGoroutine()

	var exportCalls atomic.Int64
	f := newFixture(t, func(r *http.Request) (*http.Response, error) {
		switch r.URL.Path {
		case "/auth/me":
			return jsonResponse(http.StatusOK, `{"id":1,"email":"a@b.c","role":"ADMIN"}`), nil
		case "/exports":
			if exportCalls.Add(1) >= 2 {
				return jsonResponse(http.StatusUnauthorized, `{"error":"expired"}`), nil
			}
		}
		return jsonResponse(http.StatusOK, `[]`), nil
	}, WithPollInterval(10*time.Millisecond))

	f.mgr.Login("tok")
	waitForRole(t, f.mgr)

	f.shell.Navigate(context.Background(), "/exports")

	require.Eventually(t, func() bool { return f.shell.Current() == guard.LoginPath },
		time.Second, 5*time.Millisecond, "401 on a poll must force the shell to login")
	assert.False(t, f.mgr.Snapshot().Authenticated)
	_, ok := f.store.Token()
	assert.False(t, ok)

	// No further polling once the session died with the screen.
	settled := waitForSettled(t, &exportCalls)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, exportCalls.Load())

	// And the poller goroutine itself must be gone, not blocked in its
	// own teardown. Sampled on the test goroutine: testify's Eventually
	// runs its condition on a goroutine of its own, which would keep the
	// observed count above baseline forever.
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > baseline {
		if time.Now().After(deadline) {
			t.Fatalf("poller goroutine must exit: NumGoroutine=%d baseline=%d",
				runtime.NumGoroutine(), baseline)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// waitForSettled samples the counter until two consecutive reads agree.
func waitForSettled(t *testing.T, c *atomic.Int64) int64 {
	t.Helper()
	settled := int64(-1)
	require.Eventually(t, func() bool {
		now := c.Load()
		if now == settled {
			return true
		}
		settled = now
		return false
	}, time.Second, 20*time.Millisecond)
	return settled
}

func waitForRole(t *testing.T, mgr *session.Manager) {
	t.Helper()
	require.Eventually(t, func() bool {
		return mgr.Snapshot().Role != api.RoleUnknown
	}, 2*time.Second, 5*time.Millisecond)
}

func TestShell_RunQuits(t *testing.T) {
	f := newFixture(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `[]`), nil
	})
	err := f.shell.Run(context.Background(), strings.NewReader("help\nquit\n"))
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "commands:")
}
