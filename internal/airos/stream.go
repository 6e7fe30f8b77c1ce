package airos

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/airosctl/internal/logging"
)

// subscribeMessage asks the v8 firmware to push status frames over the
// WebSocket. The interval is in seconds.
const subscribeMessage = `{"SUBSCRIBE":[{"name":"status","interval":1}]}`

// Stream subscribes to the live status feed v8 firmware exposes on /ws and
// invokes handler for every status frame, normalized through the same path
// as polled snapshots. Stream blocks until ctx is cancelled or the
// connection fails; cancellation returns nil.
//
// Frames that fail normalization (partial frames around a link flap are
// common) are logged once and skipped, they do not end the stream.
func (c *Client) Stream(ctx context.Context, handler func(*DeviceStatus)) error {
	if err := c.ensureSession(ctx); err != nil {
		return err
	}
	if gen := c.Generation(); gen != GenV8 {
		return fmt.Errorf("live status stream requires v8 firmware, device speaks %s", gen)
	}

	wsURL := strings.Replace(c.BaseURL, "http", "ws", 1) + pathStream
	dialer := websocket.Dialer{
		Jar:             c.HTTPClient.Jar,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	header := http.Header{}
	c.mu.Lock()
	if c.csrfID != "" {
		header.Set("X-CSRF-ID", c.csrfID)
	}
	c.mu.Unlock()

	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			c.markExpired()
			return newAuthDeniedError(c.host, resp.StatusCode)
		}
		return ClassifyTransportError(err, c.host)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(subscribeMessage)); err != nil {
		return ClassifyTransportError(err, c.host)
	}

	// Closing the connection is the only way to unblock ReadMessage on
	// cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return ClassifyTransportError(err, c.host)
		}

		status, err := Parse(data, GenV8, c.warnings)
		if err != nil {
			if IsKind(err, KindMalformedStatus) {
				logging.Debug("skipping unparseable stream frame", zap.String("host", c.host))
				continue
			}
			return err
		}
		handler(status)
	}
}
