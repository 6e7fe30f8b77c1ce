package config

import "time"

// Registry is the on-disk inventory of known airOS devices. It stores
// client-side metadata only: the device's own configuration lives on the
// device. Passwords are never stored; they are prompted when needed.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by device MAC address
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device is the stored metadata for one airOS device, keyed by MAC address
// in the Registry.
type Device struct {
	Nickname string    `yaml:"nickname,omitempty"` // User-friendly name
	Host     string    `yaml:"host,omitempty"`     // Last known address or URL
	Username string    `yaml:"username,omitempty"` // Login username (default "ubnt")
	Dialect  string    `yaml:"dialect,omitempty"`  // Probed firmware generation ("v6"/"v8")
	Model    string    `yaml:"model,omitempty"`    // Model name from discovery
	LastSeen time.Time `yaml:"last_seen,omitempty"`
}

// Preferences are application-wide settings for the CLI
type Preferences struct {
	DiscoverWindow  int    `yaml:"discover_window,omitempty"`  // Discovery listening window in seconds
	DefaultUsername string `yaml:"default_username,omitempty"` // Username used when a device has none stored
}
