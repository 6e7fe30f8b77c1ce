package airos

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/airosctl/internal/logging"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// DefaultUsername is the factory login on airOS devices
	DefaultUsername = "ubnt"

	// maxResponseBytes bounds how much of a device response is read.
	// Status payloads top out well under this even on busy PtMP APs.
	maxResponseBytes = 4 << 20
)

// sessionState tracks the authentication state machine:
// Unauthenticated -> Authenticating -> Authenticated -> Expired ->
// Authenticating (retry).
type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateAuthenticating
	stateAuthenticated
	stateExpired
)

// Client is an authenticated session with one airOS device. It owns the
// session cookie/CSRF token, the probed firmware dialect, and the
// per-session warning cache.
//
// A Client issues one outstanding HTTP request at a time: the embedded
// web servers on these devices tolerate very limited parallelism, and must
// never see parallel login attempts. Concurrent callers are safe; they
// serialize on the client.
type Client struct {
	// BaseURL is the device base URL (e.g. "https://192.168.1.20")
	BaseURL string

	// Username for device login (factory default "ubnt")
	Username string

	// Password for device login
	Password string

	// HTTPClient is the underlying HTTP client. It carries the session
	// cookie jar; replacing it discards the session.
	HTTPClient *http.Client

	host string // hostname part of BaseURL, for error context

	// reqMu serializes HTTP exchanges against the device
	reqMu sync.Mutex

	// mu guards the session fields below
	mu        sync.Mutex
	state     sessionState
	dialect   *Dialect
	csrfID    string
	loginDone chan struct{} // closed when the in-flight login finishes
	loginErr  error         // outcome shared by all waiters of that login

	warnings *WarningCache
}

// NewClient creates a client for the device at host. The host may be a bare
// hostname/IP or a URL; without a scheme, HTTPS is assumed (airOS ships
// with HTTPS enabled and a self-signed certificate, so verification is
// skipped).
func NewClient(host, username, password string) *Client {
	scheme := "https"
	hostname := host
	if parsed, err := url.Parse(host); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		scheme = parsed.Scheme
		hostname = parsed.Host
	}

	jar, _ := cookiejar.New(nil)
	c := &Client{
		BaseURL:  fmt.Sprintf("%s://%s", scheme, hostname),
		Username: username,
		Password: password,
		host:     hostname,
		warnings: NewWarningCache(),
	}
	c.HTTPClient = &http.Client{
		Timeout: DefaultTimeout,
		Jar:     jar,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		// v6 answers login.cgi with a 302 and an empty body; the redirect
		// must not be followed or the Set-Cookie response is lost.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if strings.HasSuffix(via[0].URL.Path, pathLoginCGI) {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return c
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetDialect seeds a previously probed dialect (e.g. from the device
// registry), so the first login skips the probe.
func (c *Client) SetDialect(d Dialect) {
	if d.LoginPath == "" {
		if d.Generation == GenV6 {
			d.LoginPath = pathLoginCGI
		} else {
			d.LoginPath = pathAuth
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialect = &d
}

// Dialect returns the probed firmware dialect, or nil before any probe
func (c *Client) Dialect() *Dialect {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dialect == nil {
		return nil
	}
	d := *c.dialect
	return &d
}

// Generation returns the probed firmware generation tag
func (c *Client) Generation() Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dialect == nil {
		return GenUnknown
	}
	return c.dialect.Generation
}

// Warnings returns the per-session warning cache
func (c *Client) Warnings() *WarningCache {
	return c.warnings
}

// Login authenticates against the device, probing the firmware dialect on
// first use. At most one login attempt is in flight per client; concurrent
// callers needing authentication wait for and share that attempt's outcome.
//
// A 401/403 from the device surfaces as KindAuthDenied. It is never
// swallowed or converted to a silent false.
func (c *Client) Login(ctx context.Context) error {
	for {
		c.mu.Lock()
		switch c.state {
		case stateAuthenticated:
			c.mu.Unlock()
			return nil

		case stateAuthenticating:
			done := c.loginDone
			c.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return ClassifyTransportError(ctx.Err(), c.host)
			}
			c.mu.Lock()
			err := c.loginErr
			c.mu.Unlock()
			return err

		default: // Unauthenticated or Expired
			c.state = stateAuthenticating
			c.loginDone = make(chan struct{})
			c.mu.Unlock()

			err := c.doLogin(ctx)

			c.mu.Lock()
			c.loginErr = err
			if err == nil {
				c.state = stateAuthenticated
			} else {
				c.state = stateUnauthenticated
			}
			close(c.loginDone)
			c.mu.Unlock()

			if err == nil {
				// Fresh session: stale warning suppression would hide
				// issues that may have changed across the re-login.
				c.warnings.Reset()
			}
			return err
		}
	}
}

// doLogin dispatches to the dialect-specific login, probing first when the
// dialect is not yet known.
func (c *Client) doLogin(ctx context.Context) error {
	c.mu.Lock()
	dialect := c.dialect
	c.mu.Unlock()

	if dialect == nil {
		// The probe fixes the dialect on the client and logs in as a side
		// effect of recognizing it.
		return c.probe(ctx)
	}

	var err error
	switch dialect.Generation {
	case GenV6:
		err = c.loginV6(ctx, dialect.LoginPath)
	default:
		err = c.loginV8(ctx)
	}
	if errors.Is(err, errNotRecognized) {
		// The device stopped answering the dialect it spoke before,
		// likely a firmware change. Surface it the same way as a failed
		// probe rather than guessing.
		return newDialectUnknownError(c.host)
	}
	return err
}

// ensureSession is called before every authenticated request. An expired or
// torn-down session triggers exactly one login; an authenticated one is
// used as-is.
func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if st == stateAuthenticated {
		return nil
	}
	return c.Login(ctx)
}

// markExpired flags the session for re-login on next use. Called on 401
// responses and on request timeouts, since a timed-out exchange gives no
// evidence the device-side session survived.
func (c *Client) markExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateAuthenticated {
		c.state = stateExpired
	}
}

// Logout tears down the session. Best-effort: a transport failure during
// logout is logged, not escalated, and the client-side session is discarded
// regardless.
func (c *Client) Logout(ctx context.Context) {
	c.mu.Lock()
	authenticated := c.state == stateAuthenticated
	c.mu.Unlock()

	if authenticated {
		if _, _, err := c.roundTrip(ctx, http.MethodGet, pathLogout, nil, "", false); err != nil {
			logging.Debug("logout request failed, tearing down session anyway",
				zap.String("host", c.host), zap.Error(err))
		}
	}

	jar, _ := cookiejar.New(nil)
	// The jar swap takes reqMu so it cannot race an in-flight exchange
	// reading HTTPClient.Jar inside roundTrip.
	c.reqMu.Lock()
	c.HTTPClient.Jar = jar
	c.reqMu.Unlock()

	c.mu.Lock()
	c.state = stateUnauthenticated
	c.csrfID = ""
	c.mu.Unlock()
}

// roundTrip performs one HTTP exchange against the device and returns the
// status code and response body. Transport faults are classified; timeouts
// additionally mark the session expired.
func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte, contentType string, xhr bool) (int, []byte, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return 0, nil, &Error{Kind: KindTransport, Message: "failed to build request", Err: err, Host: c.host}
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if xhr {
		req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	c.mu.Lock()
	if c.csrfID != "" {
		req.Header.Set("X-CSRF-ID", c.csrfID)
	}
	c.mu.Unlock()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		classified := ClassifyTransportError(err, c.host)
		if classified.Timeout() {
			c.markExpired()
		}
		return 0, nil, classified
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, ClassifyTransportError(err, c.host)
	}

	// Login responses carry the CSRF token for all subsequent requests
	if token := resp.Header.Get("X-CSRF-ID"); token != "" {
		c.mu.Lock()
		c.csrfID = token
		c.mu.Unlock()
	}

	logging.LogHTTPStatus(c.host, method, path, resp.StatusCode)
	return resp.StatusCode, data, nil
}

// authedRequest runs an authenticated exchange, logging in first when
// needed. A 401/403 mid-session marks the session expired and performs
// exactly one re-login before retrying the request once; a second rejection
// surfaces as KindAuthDenied. There is no retry loop beyond that.
func (c *Client) authedRequest(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	status, data, err := c.roundTrip(ctx, method, path, body, contentType, true)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.markExpired()
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
		status, data, err = c.roundTrip(ctx, method, path, body, contentType, true)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, newAuthDeniedError(c.host, status)
		}
	}

	if status != http.StatusOK {
		return nil, &Error{
			Kind:       KindTransport,
			Message:    fmt.Sprintf("unexpected status code %d from %s", status, path),
			StatusCode: status,
			Host:       c.host,
			Retryable:  true,
		}
	}
	return data, nil
}

// jsonBody marshals a request payload
func jsonBody(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

// parseJSONObject decodes a device response expected to be a JSON object
func (c *Client) parseJSONObject(data []byte, path string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &Error{
			Kind:    KindTransport,
			Message: fmt.Sprintf("device returned invalid JSON from %s", path),
			Err:     err,
			Host:    c.host,
		}
	}
	return out, nil
}

// Status polls the device status snapshot and normalizes it into a typed
// DeviceStatus for the probed firmware generation.
func (c *Client) Status(ctx context.Context) (*DeviceStatus, error) {
	path := pathStatusCGI
	if c.Generation() == GenV6 {
		// Cache-buster the v6 web UI sends; some XM builds serve a stale
		// snapshot without it.
		path = fmt.Sprintf("%s?_=%d", pathStatusCGI, time.Now().UnixMilli())
	}

	data, err := c.authedRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	return Parse(data, c.Generation(), c.warnings)
}

// Stakick forces the station with the given MAC address to reconnect
func (c *Client) Stakick(ctx context.Context, mac string) error {
	if mac == "" {
		return fmt.Errorf("stakick: station mac address required")
	}
	form := url.Values{
		"staif": {"ath0"},
		"staid": {strings.ToUpper(mac)},
	}
	_, err := c.authedRequest(ctx, http.MethodPost, pathStakick,
		[]byte(form.Encode()), "application/x-www-form-urlencoded; charset=UTF-8")
	return err
}

// Provmode enables or disables provisioning mode
func (c *Client) Provmode(ctx context.Context, active bool) error {
	action := "stop"
	if active {
		action = "start"
	}
	form := url.Values{"action": {action}}
	_, err := c.authedRequest(ctx, http.MethodPost, pathProvMode,
		[]byte(form.Encode()), "application/x-www-form-urlencoded; charset=UTF-8")
	return err
}

// DeviceWarnings fetches the device's own warning list (v8 firmware)
func (c *Client) DeviceWarnings(ctx context.Context) (map[string]any, error) {
	data, err := c.authedRequest(ctx, http.MethodGet, pathWarnings, nil, "")
	if err != nil {
		return nil, err
	}
	return c.parseJSONObject(data, pathWarnings)
}

// UpdateCheck asks the device to check for a firmware update. With force,
// the device re-queries the update server instead of using its cached
// answer.
func (c *Client) UpdateCheck(ctx context.Context, force bool) (map[string]any, error) {
	var body []byte
	contentType := "application/json"
	if force {
		body = []byte(url.Values{"force": {"yes"}}.Encode())
		contentType = "application/x-www-form-urlencoded; charset=UTF-8"
	} else {
		body = jsonBody(map[string]any{})
	}
	data, err := c.authedRequest(ctx, http.MethodPost, pathUpdateCheck, body, contentType)
	if err != nil {
		return nil, err
	}
	return c.parseJSONObject(data, pathUpdateCheck)
}

// Download starts a firmware download on the device
func (c *Client) Download(ctx context.Context) (map[string]any, error) {
	data, err := c.authedRequest(ctx, http.MethodPost, pathDownload,
		jsonBody(map[string]any{}), "application/json")
	if err != nil {
		return nil, err
	}
	return c.parseJSONObject(data, pathDownload)
}

// Progress reports firmware download progress
func (c *Client) Progress(ctx context.Context) (map[string]any, error) {
	data, err := c.authedRequest(ctx, http.MethodPost, pathDownloadProgress,
		jsonBody(map[string]any{}), "application/json")
	if err != nil {
		return nil, err
	}
	return c.parseJSONObject(data, pathDownloadProgress)
}

// Install flashes the previously downloaded firmware
func (c *Client) Install(ctx context.Context) (map[string]any, error) {
	data, err := c.authedRequest(ctx, http.MethodPost, pathInstall,
		jsonBody(map[string]any{"do_update": 1}), "application/json")
	if err != nil {
		return nil, err
	}
	return c.parseJSONObject(data, pathInstall)
}

// multipartForm encodes fields the way the v6 login page submits them
func multipartForm(fields map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
