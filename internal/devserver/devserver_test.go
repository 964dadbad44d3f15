package devserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/credbroker/internal/api"
	"github.com/dmitrijs2005/credbroker/internal/common"
	"github.com/dmitrijs2005/credbroker/internal/config"
	"github.com/dmitrijs2005/credbroker/internal/cryptox"
	"github.com/dmitrijs2005/credbroker/internal/logging"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cipher, err := cryptox.NewCipher(testKey)
	require.NoError(t, err)
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	s := New(cipher, []byte("dev-jwt-secret"), time.Hour, log)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func newProtocolClient(t *testing.T, baseURL string) *api.HTTPClient {
	t.Helper()
	cipher, err := cryptox.NewCipher(testKey)
	require.NoError(t, err)

	cfg := &config.Config{
		APIBaseURL:     baseURL,
		FactoryAPIURL:  baseURL + "/subscription",
		RequestTimeout: 5 * time.Second,
		ConnectTimeout: 2 * time.Second,
		RetryAttempts:  1,
		RetryDelay:     time.Millisecond,
	}
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return api.NewHTTPClient(cfg, cipher, log)
}

func TestContract_FullRoundTrip(t *testing.T) {
	s, ts := newTestServer(t)
	require.NoError(t, s.ProvisionCode("CODE-A", false, 100))
	s.SetTokens([]TokenRecord{
		{ID: "tok-1", Email: "a@example.com", AccessToken: "acc-plain", RefreshToken: "ref-plain", UpdatedAt: 1700000000, Valid: true},
	})

	client := newProtocolClient(t, ts.URL)
	ctx := context.Background()

	// Activation issues a session bound to this device.
	result, err := client.Activate(ctx, "CODE-A", "device-1")
	require.NoError(t, err)
	require.NotEmpty(t, result.SessionToken)
	require.False(t, result.AutoSwitch)
	require.Equal(t, int64(100), *result.Quota)

	session := result.SessionToken

	// The token catalog arrives encrypted and decrypts to the provisioned set.
	tokens, err := client.TokenList(ctx, session, "device-1")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, "tok-1", tokens[0].ID)
	require.True(t, tokens[0].IsValid)

	// Token activation returns the decrypted pair.
	pair, err := client.ActivateToken(ctx, session, "tok-1", "device-1")
	require.NoError(t, err)
	require.Equal(t, "acc-plain", pair.AccessToken)
	require.Equal(t, "ref-plain", pair.RefreshToken)

	// Version check reflects the catalog's stamp.
	updatedAt, err := client.CheckTokenVersion(ctx, session, "tok-1", "device-1")
	require.NoError(t, err)
	require.Equal(t, int64(1700000000), updatedAt)

	// Heartbeat confirms the binding and renews the expiry.
	hb, err := client.Heartbeat(ctx, session, "device-1")
	require.NoError(t, err)
	require.True(t, hb.Valid)
	require.NotNil(t, hb.ExpiresAt)

	// Unbinding releases the code; a later heartbeat goes invalid.
	require.NoError(t, client.Unbind(ctx, "CODE-A", "device-1"))
	hb, err = client.Heartbeat(ctx, session, "device-1")
	require.NoError(t, err)
	require.False(t, hb.Valid)
}

func TestLookupCode_VerifiesAgainstHash(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.ProvisionCode("CODE-A", false, 0))

	// Only the bcrypt hash is stored; a near-miss must not resolve.
	require.Nil(t, s.lookupCode("CODE-B"))
	require.Nil(t, s.lookupCode("CODE-A "))
	require.Nil(t, s.lookupCode(""))

	state := s.lookupCode("CODE-A")
	require.NotNil(t, state)
	require.NotEqual(t, []byte("CODE-A"), state.hash)
}

func TestActivate_UnknownCodeRejected(t *testing.T) {
	_, ts := newTestServer(t)
	client := newProtocolClient(t, ts.URL)

	_, err := client.Activate(context.Background(), "NOPE", "device-1")
	require.ErrorIs(t, err, common.ErrRequestRejected)
}

func TestActivate_SecondDeviceRejected(t *testing.T) {
	s, ts := newTestServer(t)
	require.NoError(t, s.ProvisionCode("CODE-A", false, 0))
	client := newProtocolClient(t, ts.URL)
	ctx := context.Background()

	_, err := client.Activate(ctx, "CODE-A", "device-1")
	require.NoError(t, err)

	_, err = client.Activate(ctx, "CODE-A", "device-2")
	require.ErrorIs(t, err, common.ErrRequestRejected)
	require.Contains(t, err.Error(), "already bound")

	// The same device can re-activate.
	_, err = client.Activate(ctx, "CODE-A", "device-1")
	require.NoError(t, err)
}

func TestSignedRoutes_RejectBadCredentials(t *testing.T) {
	s, ts := newTestServer(t)
	require.NoError(t, s.ProvisionCode("CODE-A", false, 0))

	client := newProtocolClient(t, ts.URL)
	result, err := client.Activate(context.Background(), "CODE-A", "device-1")
	require.NoError(t, err)

	// Forged bearer.
	_, err = client.TokenList(context.Background(), "forged-token", "device-1")
	require.ErrorIs(t, err, common.ErrSessionExpired)

	// Wrong device id breaks both the claim match and the signature.
	_, err = client.TokenList(context.Background(), result.SessionToken, "device-2")
	require.ErrorIs(t, err, common.ErrSessionExpired)
}

func TestSignedRoutes_RejectStaleTimestamp(t *testing.T) {
	s, ts := newTestServer(t)
	require.NoError(t, s.ProvisionCode("CODE-A", false, 0))

	client := newProtocolClient(t, ts.URL)
	result, err := client.Activate(context.Background(), "CODE-A", "device-1")
	require.NoError(t, err)

	cipher, err := cryptox.NewCipher(testKey)
	require.NoError(t, err)

	// Hand-build a request with a correctly signed but ancient timestamp.
	stale := time.Now().Add(-10 * time.Minute).Unix()
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/tokens", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+result.SessionToken)
	req.Header.Set(common.HeaderDeviceID, "device-1")
	req.Header.Set(common.HeaderTimestamp, strconv.FormatInt(stale, 10))
	req.Header.Set(common.HeaderSignature, cipher.Sign(result.SessionToken, stale, "device-1"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVersionEndpoint(t *testing.T) {
	s, ts := newTestServer(t)
	client := newProtocolClient(t, ts.URL)

	// No build configured: nothing to offer.
	info, err := client.CheckUpdate(context.Background())
	require.NoError(t, err)
	require.False(t, info.HasUpdate)

	s.SetVersion(Version{Current: "3.0.0", DownloadURL: "/client/download/3.0.0", Size: 1024})
	info, err = client.CheckUpdate(context.Background())
	require.NoError(t, err)
	require.True(t, info.HasUpdate)
	require.Equal(t, "3.0.0", info.Version)
	require.Equal(t, "/client/download/3.0.0", info.DownloadURL)
}
