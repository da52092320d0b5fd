package api_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lichtbild/fotoadmin/api"
	"github.com/lichtbild/fotoadmin/creds"
	"github.com/lichtbild/fotoadmin/events"
	"github.com/lichtbild/fotoadmin/storage/memory"
	"github.com/lichtbild/fotoadmin/stubserver"
)

type clientFixture struct {
	client *api.Client
	creds  *creds.Store
	bus    *events.Bus
	server *httptest.Server
}

func newClientFixture(t *testing.T, opts ...stubserver.Option) *clientFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(stubserver.New(opts...).Router())
	t.Cleanup(srv.Close)

	store := creds.Open(memory.NewStore(), logger)
	bus := events.NewBus(logger)
	client, err := api.New(srv.URL, store, bus, api.WithLogger(logger))
	require.NoError(t, err)

	return &clientFixture{client: client, creds: store, bus: bus, server: srv}
}

func (f *clientFixture) loginAs(t *testing.T, email, password string) {
	t.Helper()
	resp, err := f.client.Login(context.Background(), email, password)
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken, "expected a direct token for %s", email)
	f.creds.SetToken(resp.AccessToken)
}

func TestClient_LoginWithoutSecondFactor(t *testing.T) {
	f := newClientFixture(t)

	resp, err := f.client.Login(context.Background(), "viewer@lichtbild.example", "viewer")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Empty(t, resp.Challenge)
}

func TestClient_LoginBadPassword(t *testing.T) {
	f := newClientFixture(t)

	_, err := f.client.Login(context.Background(), "viewer@lichtbild.example", "wrong")
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
}

func TestClient_TwoFactorFlow(t *testing.T) {
	f := newClientFixture(t)

	resp, err := f.client.Login(context.Background(), "admin@lichtbild.example", "admin")
	require.NoError(t, err)
	require.Empty(t, resp.AccessToken)
	require.NotEmpty(t, resp.Challenge)

	verified, err := f.client.VerifyTwoFactor(context.Background(), resp.Challenge, "123456")
	require.NoError(t, err)
	require.NotEmpty(t, verified.AccessToken)

	f.creds.SetToken(verified.AccessToken)
	me, err := f.client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin@lichtbild.example", me.Email)
	assert.Equal(t, api.RoleAdmin, me.Role)
}

func TestClient_TwoFactorWrongCode(t *testing.T) {
	f := newClientFixture(t)

	resp, err := f.client.Login(context.Background(), "admin@lichtbild.example", "admin")
	require.NoError(t, err)

	_, err = f.client.VerifyTwoFactor(context.Background(), resp.Challenge, "000000")
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
}

func TestClient_ChallengeIsSingleUse(t *testing.T) {
	f := newClientFixture(t)

	resp, err := f.client.Login(context.Background(), "admin@lichtbild.example", "admin")
	require.NoError(t, err)

	_, err = f.client.VerifyTwoFactor(context.Background(), resp.Challenge, "123456")
	require.NoError(t, err)

	_, err = f.client.VerifyTwoFactor(context.Background(), resp.Challenge, "123456")
	assert.True(t, api.IsUnauthorized(err))
}

func TestClient_MeWithoutToken(t *testing.T) {
	f := newClientFixture(t)

	_, err := f.client.Me(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
}

func TestClient_BusinessListings(t *testing.T) {
	f := newClientFixture(t)
	f.loginAs(t, "viewer@lichtbild.example", "viewer")

	photos, err := f.client.ListPhotos(context.Background())
	require.NoError(t, err)
	assert.Len(t, photos, 2)

	orders, err := f.client.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	shares, err := f.client.ListShares(context.Background())
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, "abc123", shares[0].Token)

	locations, err := f.client.ListLocations(context.Background())
	require.NoError(t, err)
	assert.Len(t, locations, 2)

	// Export jobs are visible to any authenticated user; only user
	// administration is role-gated.
	jobs, err := f.client.ListExports(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, jobs)

	require.NoError(t, f.client.RevokeShare(context.Background(), shares[0].ID))
}

func TestClient_AdminEndpointsForbiddenForViewer(t *testing.T) {
	f := newClientFixture(t)
	f.loginAs(t, "viewer@lichtbild.example", "viewer")

	var forbidden atomic.Int32
	f.bus.Forbidden.Subscribe(func() { forbidden.Add(1) })

	_, err := f.client.ListUsers(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsForbidden(err))
	assert.Equal(t, int32(1), forbidden.Load())

	// A 403 is a privilege problem, not a session problem.
	_, ok := f.creds.Token()
	assert.True(t, ok, "token must survive a 403")
}

func TestClient_AdminEndpoints(t *testing.T) {
	f := newClientFixture(t, stubserver.WithAccount(stubserver.Account{
		ID: 7, Email: "chef@lichtbild.example", Password: "chef", Role: api.RoleAdmin,
	}), stubserver.WithAccount(stubserver.Account{
		ID: 8, Email: "aushilfe@lichtbild.example", Password: "aushilfe", Role: api.RoleUser,
	}))
	f.loginAs(t, "chef@lichtbild.example", "chef")

	users, err := f.client.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2)

	customers, err := f.client.ListCustomers(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, customers)

	role := api.RoleAdmin
	updated, err := f.client.UpdateUser(context.Background(), 8, api.UserUpdate{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, api.RoleAdmin, updated.Role)

	require.NoError(t, f.client.DeleteUser(context.Background(), 8))

	users, err = f.client.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestClient_Exports(t *testing.T) {
	f := newClientFixture(t, stubserver.WithAccount(stubserver.Account{
		ID: 7, Email: "chef@lichtbild.example", Password: "chef", Role: api.RoleAdmin,
	}))
	f.loginAs(t, "chef@lichtbild.example", "chef")

	job, err := f.client.CreateExport(context.Background(), api.ExportRequest{PhotoIDs: []int64{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, "queued", job.Status)

	jobs, err := f.client.ListExports(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, jobs)
}

func TestClient_PublicShareNeedsNoToken(t *testing.T) {
	f := newClientFixture(t)

	share, err := f.client.PublicShare(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", share.Token)
	assert.NotEmpty(t, share.Photos)
}

func TestClient_ExpiredTokenClearsCredentialsOnce(t *testing.T) {
	f := newClientFixture(t)
	f.creds.SetToken("stale-token")

	var unauthorized atomic.Int32
	f.bus.Unauthorized.Subscribe(func() { unauthorized.Add(1) })

	_, err := f.client.Me(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
	assert.Equal(t, int32(1), unauthorized.Load())

	_, ok := f.creds.Token()
	assert.False(t, ok)
}

func TestClient_DisableTwoFactorInvalidatesToken(t *testing.T) {
	f := newClientFixture(t)
	f.loginAs(t, "viewer@lichtbild.example", "viewer")

	setup, err := f.client.SetupTwoFactor(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.OTPAuthURL, "otpauth://")

	require.NoError(t, f.client.DisableTwoFactor(context.Background()))

	// The server revoked every token for the account.
	_, err = f.client.Me(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
}
