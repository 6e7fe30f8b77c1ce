// Package redact strips sensitive fields from device payloads before they
// are attached to log lines or error messages.
//
// airOS status payloads carry location (GPS lat/lon), addressing (IPv4,
// MAC) and network identity (SSID, hostname) of real installations. None
// of that may ever leave the process unredacted, so every payload destined
// for a log or an error value passes through this package first.
//
// # Rules
//
//   - Latitude/longitude become a fixed placeholder coordinate. They are
//     replaced, not removed, so the payload keeps its shape.
//   - IPv4 addresses keep their last octet; the network prefix is zeroed.
//   - SSIDs and hostnames become generic placeholders.
//   - MAC addresses are rewritten to a fixed placeholder prefix with a
//     per-call suffix: the same input address always maps to the same
//     substitute within one call, distinct addresses stay distinct.
//
// Redaction is idempotent: redacting an already-redacted payload is a
// no-op. This matters because payloads can cross multiple log boundaries.
package redact
