// Package api implements the client side of the authorization service's
// wire protocol: signed HTTP/JSON requests, encrypted payload decryption and
// a bounded retry policy for transport failures.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-resty/resty/v2"

	"github.com/dmitrijs2005/credbroker/internal/common"
	"github.com/dmitrijs2005/credbroker/internal/config"
	"github.com/dmitrijs2005/credbroker/internal/cryptox"
	"github.com/dmitrijs2005/credbroker/internal/logging"
)

// ProgressFunc receives cumulative download progress. total is 0 when the
// server does not announce a content length.
type ProgressFunc func(downloaded, total int64)

// Client is the broker's view of the authorization service plus the external
// consumer's subscription endpoint.
type Client interface {
	Activate(ctx context.Context, code, deviceID string) (*ActivateResult, error)
	TokenList(ctx context.Context, sessionToken, deviceID string) ([]TokenInfo, error)
	ActivateToken(ctx context.Context, sessionToken, tokenID, deviceID string) (*TokenPair, error)
	CheckTokenVersion(ctx context.Context, sessionToken, tokenID, deviceID string) (int64, error)
	Heartbeat(ctx context.Context, sessionToken, deviceID string) (*HeartbeatResult, error)
	Unbind(ctx context.Context, code, deviceID string) error
	CheckUpdate(ctx context.Context) (*UpdateInfo, error)
	Subscription(ctx context.Context, accessToken string) (map[string]any, error)
	Download(ctx context.Context, url, dest string, progress ProgressFunc) error
}

// HTTPClient is the resty-backed Client implementation.
type HTTPClient struct {
	rc         *resty.Client
	factoryURL string
	cipher     *cryptox.Cipher
	log        logging.Logger

	attempts       uint
	delay          time.Duration
	connectTimeout time.Duration

	now func() time.Time
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client over cfg's endpoints and timeouts. cipher
// signs every authenticated request and decrypts encrypted payloads.
func NewHTTPClient(cfg *config.Config, cipher *cryptox.Cipher, log logging.Logger) *HTTPClient {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIBaseURL, "/")).
		SetTimeout(cfg.RequestTimeout).
		SetTransport(newTransport(cfg.ConnectTimeout))

	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &HTTPClient{
		rc:             rc,
		factoryURL:     cfg.FactoryAPIURL,
		cipher:         cipher,
		log:            log,
		attempts:       uint(attempts),
		delay:          cfg.RetryDelay,
		connectTimeout: cfg.ConnectTimeout,
		now:            time.Now,
	}
}

func newTransport(connectTimeout time.Duration) *http.Transport {
	return &http.Transport{
		DialContext:         (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout: connectTimeout,
		MaxIdleConnsPerHost: 5,
	}
}

// withRetry runs fn up to the configured attempt count with a fixed delay.
// Only transport failures (marked ErrNetworkUnavailable) are retried; HTTP
// status and body errors are final on first sight.
func (c *HTTPClient) withRetry(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, common.ErrNetworkUnavailable)
		}),
	)
}

// signed attaches the session bearer plus the device/timestamp/signature
// header triple. data is what gets signed, which is not always the bearer.
func (c *HTTPClient) signed(r *resty.Request, sessionToken, data, deviceID string) *resty.Request {
	ts := c.now().Unix()
	return r.
		SetAuthToken(sessionToken).
		SetHeader(common.HeaderDeviceID, deviceID).
		SetHeader(common.HeaderTimestamp, strconv.FormatInt(ts, 10)).
		SetHeader(common.HeaderSignature, c.cipher.Sign(data, ts, deviceID))
}

func transportErr(err error) error {
	return fmt.Errorf("%w: %v", common.ErrNetworkUnavailable, err)
}

// statusErr maps a non-2xx response: 401 means the session is gone, anything
// else is surfaced with its code.
func statusErr(status int) error {
	if status == http.StatusUnauthorized {
		return common.ErrSessionExpired
	}
	return &common.ServerError{Status: status}
}

func rejectedErr(msg string) error {
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Errorf("%w: %s", common.ErrRequestRejected, msg)
}

func parseBody(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", common.ErrBadResponseData, err)
	}
	return nil
}

// Activate exchanges an activation code for a session token. The signature
// covers the code itself and travels in the body, not in headers.
func (c *HTTPClient) Activate(ctx context.Context, code, deviceID string) (*ActivateResult, error) {
	var result *ActivateResult

	err := c.withRetry(ctx, func() error {
		ts := c.now().Unix()
		req := activateRequest{
			Code:      code,
			DeviceID:  deviceID,
			Timestamp: ts,
			Signature: c.cipher.Sign(code, ts, deviceID),
		}

		resp, err := c.rc.R().SetContext(ctx).SetBody(&req).Post("/auth/activate")
		if err != nil {
			return transportErr(err)
		}
		if !resp.IsSuccess() {
			return statusErr(resp.StatusCode())
		}

		var body activateResponse
		if err := parseBody(resp.Body(), &body); err != nil {
			return err
		}
		if !body.Success {
			return rejectedErr(body.Error)
		}
		result = &ActivateResult{
			SessionToken: body.SessionToken,
			ExpiresAt:    body.ExpiresAt,
			Quota:        body.Quota,
			AutoSwitch:   body.AutoSwitch,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TokenList fetches and decrypts the token catalog for one session.
func (c *HTTPClient) TokenList(ctx context.Context, sessionToken, deviceID string) ([]TokenInfo, error) {
	var tokens []TokenInfo

	err := c.withRetry(ctx, func() error {
		resp, err := c.signed(c.rc.R().SetContext(ctx), sessionToken, sessionToken, deviceID).Get("/tokens")
		if err != nil {
			return transportErr(err)
		}
		if !resp.IsSuccess() {
			return statusErr(resp.StatusCode())
		}

		var body encryptedListResponse
		if err := parseBody(resp.Body(), &body); err != nil {
			return err
		}
		if !body.Success {
			return rejectedErr(body.Error)
		}
		if body.Data == "" || body.IV == "" || body.Tag == "" {
			return fmt.Errorf("%w: missing encrypted payload fields", common.ErrBadResponseData)
		}

		plaintext, err := c.cipher.DecryptPayload(body.Data, body.IV, body.Tag)
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrBadResponseData, err)
		}
		if err := json.Unmarshal([]byte(plaintext), &tokens); err != nil {
			return fmt.Errorf("%w: %v", common.ErrBadResponseData, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// ActivateToken exchanges a token id for its decrypted access/refresh pair.
func (c *HTTPClient) ActivateToken(ctx context.Context, sessionToken, tokenID, deviceID string) (*TokenPair, error) {
	var pair *TokenPair

	err := c.withRetry(ctx, func() error {
		resp, err := c.signed(c.rc.R().SetContext(ctx), sessionToken, sessionToken, deviceID).
			SetBody(&tokenActivateRequest{TokenID: tokenID}).
			Post("/tokens/activate")
		if err != nil {
			return transportErr(err)
		}
		if !resp.IsSuccess() {
			return statusErr(resp.StatusCode())
		}

		var body tokenActivateResponse
		if err := parseBody(resp.Body(), &body); err != nil {
			return err
		}
		if !body.Success {
			return rejectedErr(body.Error)
		}

		access, err := c.decryptField(body.AccessToken, body.AccessIV, body.AccessTag, "access_token")
		if err != nil {
			return err
		}
		refresh, err := c.decryptField(body.RefreshToken, body.RefreshIV, body.RefreshTag, "refresh_token")
		if err != nil {
			return err
		}
		pair = &TokenPair{AccessToken: access, RefreshToken: refresh, Email: body.Email}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (c *HTTPClient) decryptField(ct, iv, tag, name string) (string, error) {
	if ct == "" || iv == "" || tag == "" {
		return "", fmt.Errorf("%w: missing %s fields", common.ErrBadResponseData, name)
	}
	plaintext, err := c.cipher.DecryptPayload(ct, iv, tag)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", common.ErrBadResponseData, name, err)
	}
	return plaintext, nil
}

// CheckTokenVersion returns the server-side updated-at stamp for tokenID,
// used to gate refreshes.
func (c *HTTPClient) CheckTokenVersion(ctx context.Context, sessionToken, tokenID, deviceID string) (int64, error) {
	var updatedAt int64

	err := c.withRetry(ctx, func() error {
		resp, err := c.signed(c.rc.R().SetContext(ctx), sessionToken, sessionToken, deviceID).
			Get("/tokens/check/" + tokenID)
		if err != nil {
			return transportErr(err)
		}
		if !resp.IsSuccess() {
			return statusErr(resp.StatusCode())
		}

		var body versionCheckResponse
		if err := parseBody(resp.Body(), &body); err != nil {
			return err
		}
		if !body.Success {
			return rejectedErr(body.Error)
		}
		updatedAt = body.UpdatedAt
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updatedAt, nil
}

// Heartbeat probes one session. A non-2xx response is not an error: it means
// the session is invalid, and the caller decides about eviction. The
// signature covers the fixed probe word, not the bearer.
func (c *HTTPClient) Heartbeat(ctx context.Context, sessionToken, deviceID string) (*HeartbeatResult, error) {
	var result *HeartbeatResult

	err := c.withRetry(ctx, func() error {
		resp, err := c.signed(c.rc.R().SetContext(ctx), sessionToken, "heartbeat", deviceID).
			Post("/auth/heartbeat")
		if err != nil {
			return transportErr(err)
		}
		if !resp.IsSuccess() {
			result = &HeartbeatResult{Valid: false}
			return nil
		}

		var body HeartbeatResult
		if err := parseBody(resp.Body(), &body); err != nil {
			return err
		}
		result = &body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Unbind releases the device binding of one activation code.
func (c *HTTPClient) Unbind(ctx context.Context, code, deviceID string) error {
	return c.withRetry(ctx, func() error {
		ts := c.now().Unix()
		req := activateRequest{
			Code:      code,
			DeviceID:  deviceID,
			Timestamp: ts,
			Signature: c.cipher.Sign(code, ts, deviceID),
		}

		resp, err := c.rc.R().SetContext(ctx).SetBody(&req).Post("/auth/unbind")
		if err != nil {
			return transportErr(err)
		}
		if !resp.IsSuccess() {
			return statusErr(resp.StatusCode())
		}

		var body unbindResponse
		if err := parseBody(resp.Body(), &body); err != nil {
			return err
		}
		if !body.Success {
			return rejectedErr(body.Error)
		}
		return nil
	})
}

// CheckUpdate fetches the client-update descriptor. Unauthenticated.
func (c *HTTPClient) CheckUpdate(ctx context.Context) (*UpdateInfo, error) {
	var info *UpdateInfo

	err := c.withRetry(ctx, func() error {
		resp, err := c.rc.R().SetContext(ctx).Get("/client/version")
		if err != nil {
			return transportErr(err)
		}
		if !resp.IsSuccess() {
			return statusErr(resp.StatusCode())
		}

		var body UpdateInfo
		if err := parseBody(resp.Body(), &body); err != nil {
			return err
		}
		info = &body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Subscription queries the external consumer's subscription endpoint with a
// decrypted access token. The response shape is owned by that service, so it
// is passed through as-is.
func (c *HTTPClient) Subscription(ctx context.Context, accessToken string) (map[string]any, error) {
	var result map[string]any

	err := c.withRetry(ctx, func() error {
		resp, err := c.rc.R().SetContext(ctx).
			SetAuthToken(accessToken).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "*/*").
			SetHeader("x-factory-client", "web-app").
			SetBody("{}").
			Post(c.factoryURL)
		if err != nil {
			return transportErr(err)
		}
		if !resp.IsSuccess() {
			return statusErr(resp.StatusCode())
		}
		return parseBody(resp.Body(), &result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
