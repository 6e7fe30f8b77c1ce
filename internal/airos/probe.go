package airos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/muurk/airosctl/internal/logging"
)

// errNotRecognized marks a login endpoint that answered with something no
// airOS build of that dialect would send: the probe moves on to the next
// candidate. Distinct from AuthDenied, which means the dialect matched but
// the credentials did not.
var errNotRecognized = errors.New("endpoint did not produce a recognizable response")

// probe determines the firmware dialect by attempting the known login
// endpoints in order: the v8 /api/auth endpoint, the v6 login.cgi form
// endpoint, and the legacy v6 index.cgi form post. The first recognizable
// response fixes the dialect on the client, so session renewal never
// re-probes. A rejected credential still fixes the dialect (the device was
// recognized); only a full sweep of non-matching responses yields
// KindDialectUnknown.
func (c *Client) probe(ctx context.Context) error {
	attempts := []struct {
		dialect Dialect
		login   func(context.Context) error
	}{
		{
			dialect: Dialect{Generation: GenV8, LoginPath: pathAuth},
			login:   c.loginV8,
		},
		{
			dialect: Dialect{Generation: GenV6, LoginPath: pathLoginCGI, FormLogin: true},
			login:   func(ctx context.Context) error { return c.loginV6(ctx, pathLoginCGI) },
		},
		{
			dialect: Dialect{Generation: GenV6, LoginPath: pathIndexCGI, FormLogin: true},
			login:   func(ctx context.Context) error { return c.loginV6(ctx, pathIndexCGI) },
		},
	}

	for _, attempt := range attempts {
		err := attempt.login(ctx)
		if errors.Is(err, errNotRecognized) {
			logging.Debug("login endpoint not recognized, trying next dialect",
				zap.String("host", c.host),
				zap.String("endpoint", attempt.dialect.LoginPath))
			continue
		}

		if err == nil || IsKind(err, KindAuthDenied) {
			d := attempt.dialect
			c.mu.Lock()
			c.dialect = &d
			c.mu.Unlock()
			logging.Info("firmware dialect determined",
				zap.String("host", c.host),
				zap.String("generation", d.Generation.String()),
				zap.String("endpoint", d.LoginPath))
			return err
		}

		// Transport-level fault: the device is unreachable, not
		// unrecognized. Probing further endpoints would only repeat it.
		return err
	}

	return newDialectUnknownError(c.host)
}

// loginV8 performs the airOS 8 login: a JSON credential post to /api/auth.
// Success sets the AIROS_* session cookie (handled by the jar) and the
// X-CSRF-ID token (captured in roundTrip).
func (c *Client) loginV8(ctx context.Context) error {
	// The v8 UI seeds an "ok" cookie before the login post; some builds
	// refuse the login without it.
	if base, err := url.Parse(c.BaseURL); err == nil && c.HTTPClient.Jar != nil {
		c.HTTPClient.Jar.SetCookies(base, []*http.Cookie{{Name: "ok", Value: "1"}})
	}

	body := jsonBody(map[string]string{
		"username": c.Username,
		"password": c.Password,
	})
	status, data, err := c.roundTrip(ctx, http.MethodPost, pathAuth, body, "application/json", true)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK:
		// A v8 auth response is a JSON object (the board info). Anything
		// else means this is not the endpoint we think it is.
		var check map[string]any
		if json.Unmarshal(data, &check) != nil {
			return fmt.Errorf("%s returned a non-JSON body: %w", pathAuth, errNotRecognized)
		}
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return newAuthDeniedError(c.host, status)
	default:
		return fmt.Errorf("%s returned status %d: %w", pathAuth, status, errNotRecognized)
	}
}

// loginV6 performs the airOS 6 login: a multipart form post the way the
// login page submits it. loginPath is login.cgi on current v6 builds and
// index.cgi on the legacy ones.
func (c *Client) loginV6(ctx context.Context, loginPath string) error {
	// Fetching the entry page first seeds the session cookie some XM
	// builds require before they accept the login post. Best-effort.
	if _, _, err := c.roundTrip(ctx, http.MethodGet, pathIndexCGI, nil, "", false); err != nil {
		logging.Debug("v6 cookie bootstrap failed", zap.String("host", c.host), zap.Error(err))
	}

	body, contentType, err := multipartForm(map[string]string{
		"uri":      pathIndexCGI,
		"username": c.Username,
		"password": c.Password,
	})
	if err != nil {
		return fmt.Errorf("encoding v6 login form: %w", err)
	}

	status, _, err := c.roundTrip(ctx, http.MethodPost, loginPath, body, contentType, false)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK, http.StatusFound:
		// v6 answers the login post with a 302 (or the page itself) and a
		// session cookie. No cookie means this was not a v6 login page.
		if !c.hasSessionCookie() {
			return fmt.Errorf("%s set no session cookie: %w", loginPath, errNotRecognized)
		}
		// Finalize the session the way the browser does. Best-effort.
		if _, _, err := c.roundTrip(ctx, http.MethodGet, pathIndexCGI, nil, "", false); err != nil {
			logging.Debug("v6 session finalize failed", zap.String("host", c.host), zap.Error(err))
		}
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return newAuthDeniedError(c.host, status)
	default:
		return fmt.Errorf("%s returned status %d: %w", loginPath, status, errNotRecognized)
	}
}

// hasSessionCookie reports whether the jar holds any cookie for the device
func (c *Client) hasSessionCookie() bool {
	if c.HTTPClient.Jar == nil {
		return false
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return false
	}
	return len(c.HTTPClient.Jar.Cookies(base)) > 0
}
