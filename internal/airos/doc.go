// Package airos implements the HTTP client for Ubiquiti airOS wireless
// devices: firmware dialect probing, the authenticated session, status
// normalization, and the device management operations.
//
// # Firmware dialects
//
// airOS firmware families speak different login protocols:
//   - v8 (WA/XC boards): JSON credential post to /api/auth, answered with
//     an AIROS_* session cookie and an X-CSRF-ID token
//   - v6 (XM/XW boards): multipart form post to /login.cgi (or, on legacy
//     builds, index.cgi), answered with a session cookie and a redirect
//
// The probe tries the endpoints in that order and fixes the dialect on the
// client, so renewals never re-probe. A device matching none of the
// dialects fails with KindDialectUnknown; wrong credentials on a
// recognized device fail with KindAuthDenied.
//
// # Session lifecycle
//
// The session is a small state machine (Unauthenticated, Authenticating,
// Authenticated, Expired). Every authenticated operation goes through
// ensureSession; a 401 mid-session or a request timeout marks the session
// expired, and the next use performs exactly one re-login. Login is
// single-flight: concurrent callers share one attempt and its outcome,
// because the embedded web servers on these devices must never see
// parallel authentication.
//
// # Status normalization
//
// Parse converts the firmware's status.cgi payload into a typed
// DeviceStatus using a per-generation field mapping table. The normalizer
// is tolerant: optional fields that are absent or unparseable
// become nil, unknown enum tokens coerce to an Unknown sentinel carrying
// the raw value, and each such quirk is logged at most once per session
// via the WarningCache. Only the mandatory identity fields (device model,
// firmware version, a non-empty interface list) abort the parse, and the
// payload attached to that error is redacted first.
//
// # Errors
//
// All faults surface as *Error with a Kind (transport, auth denied,
// dialect unknown, malformed status, discovery timeout), a retryability
// flag, and - where payload context is attached - redacted content only.
package airos
