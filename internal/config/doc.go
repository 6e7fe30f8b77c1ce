// Package config manages the persistent device registry for airosctl.
//
// The registry is a YAML file listing devices the tool has talked to,
// keyed by MAC address: their last known address, login username, probed
// firmware dialect, and model. Remembering the dialect lets the next
// session skip the login probe; remembering the address lets discovery
// results and explicit hosts converge on one inventory.
//
// Passwords are never written to the registry. They are prompted (or taken
// from the environment) on every run.
//
// # File Location
//
// The registry lives in the OS-appropriate configuration directory:
//
//   - Linux:   $XDG_CONFIG_HOME/airosctl/devices.yaml (or ~/.config/airosctl)
//   - macOS:   ~/.config/airosctl/devices.yaml
//   - Windows: %LOCALAPPDATA%\airosctl\devices.yaml
//
// Writes are atomic (temp file + rename) so a crash mid-save cannot leave
// a corrupt registry behind.
package config
