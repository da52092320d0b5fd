package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/lichtbild/fotoadmin/events"
)

// CredentialSource is the slice of the credential store the transport
// needs: a fresh read per request and the 401 clear. It is read on every
// call, never cached, so a logout that races an in-flight request wins by
// the time the next request goes out.
type CredentialSource interface {
	Token() (string, bool)
	ClearToken()
}

// Transport is the sole chokepoint for outbound requests. It injects the
// bearer token, tags the request for correlation, and turns 401/403
// responses into broadcasts without consuming them: the caller always
// receives the raw response.
type Transport struct {
	// Base performs the actual round trip; nil means http.DefaultTransport.
	Base http.RoundTripper
	// Creds supplies the current bearer token.
	Creds CredentialSource
	// Bus receives the unauthorized/forbidden broadcasts.
	Bus *events.Bus
	// Logger, nil means slog.Default.
	Logger *slog.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not mutate the caller's request.
	out := req.Clone(req.Context())
	if token, ok := t.Creds.Token(); ok && token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	out.Header.Set("X-Request-Id", uuid.NewString())

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(out)
	if err != nil {
		// Transport failure is the caller's problem, not a session event.
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		// The session is dead. Clearing is idempotent, so concurrent 401s
		// may all land here; subscribers own their own dedup.
		t.Creds.ClearToken()
		t.logger().Warn("session rejected by server, credential cleared",
			"method", req.Method, "path", req.URL.Path)
		t.Bus.Unauthorized.Publish()
	case http.StatusForbidden:
		// Authenticated but not allowed; the session stays intact.
		t.logger().Warn("request forbidden",
			"method", req.Method, "path", req.URL.Path)
		t.Bus.Forbidden.Publish()
	}
	return resp, nil
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}
