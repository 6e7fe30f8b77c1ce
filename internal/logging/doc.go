// Package logging provides structured logging for the airosctl library.
//
// Logging is built on zap and is silent by default: unless the
// AIROS_LOG_LEVEL environment variable (or an explicit Initialize call)
// selects a level, all log output is discarded. This keeps library and CLI
// output clean while still allowing deep protocol debugging on demand.
//
// Payloads destined for log lines must be redacted before they reach this
// package; see the redact package. The datagram helpers here only ever dump
// wire bytes at debug level.
package logging
