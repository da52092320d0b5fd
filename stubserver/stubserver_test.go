package stubserver_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lichtbild/fotoadmin/api"
	"github.com/lichtbild/fotoadmin/stubserver"
)

func newServer(t *testing.T, opts ...stubserver.Option) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(stubserver.New(opts...).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_ServesSpecAndDocs(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	spec, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(spec), "openapi: 3.0.3")

	docs, err := http.Get(srv.URL + "/docs")
	require.NoError(t, err)
	defer docs.Body.Close()
	assert.Equal(t, http.StatusOK, docs.StatusCode)
}

func TestServer_MetricsCountRequests(t *testing.T) {
	srv := newServer(t)

	resp := postJSON(t, srv.URL+"/auth/login", `{"email":"viewer@lichtbild.example","password":"viewer"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	metrics, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	body, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "stubserver_requests_total")
}

func TestServer_TokensAreWellFormedJWTs(t *testing.T) {
	srv := newServer(t)

	resp := postJSON(t, srv.URL+"/auth/login", `{"email":"viewer@lichtbild.example","password":"viewer"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login api.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	assert.Len(t, strings.Split(login.AccessToken, "."), 3)
}

func TestServer_AdminGroupRejectsMissingToken(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/users")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
