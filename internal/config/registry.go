package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "airosctl"
	configFile = "devices.yaml"

	registryVersion = 1
)

// fileMutex serializes file operations on the registry path
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/airosctl or $HOME/.config/airosctl
//   - macOS: $HOME/.config/airosctl (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\airosctl
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			return filepath.Join(userProfile, "AppData", "Local", appName), nil
		}
		return filepath.Join(localAppData, appName), nil

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the full path to the registry file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		Version: registryVersion,
		Devices: make(map[string]*Device),
		Preferences: &Preferences{
			DiscoverWindow:  3,
			DefaultUsername: "ubnt",
		},
	}
}

// Load reads the registry from the default path. A missing file yields a
// fresh empty registry, not an error.
func Load() (*Registry, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the registry from an explicit path
func LoadFrom(path string) (*Registry, error) {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read device registry: %w", err)
	}

	var registry Registry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse device registry: %w", err)
	}
	if registry.Version != registryVersion {
		return nil, fmt.Errorf("unsupported registry version: %d (expected %d)", registry.Version, registryVersion)
	}
	if registry.Devices == nil {
		registry.Devices = make(map[string]*Device)
	}
	if registry.Preferences == nil {
		registry.Preferences = NewRegistry().Preferences
	}
	return &registry, nil
}

// Save writes the registry to the default path
func (r *Registry) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return r.SaveTo(path)
}

// SaveTo writes the registry to an explicit path. The write is atomic
// (temp file + rename) to prevent corruption on crash.
func (r *Registry) SaveTo(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal device registry: %w", err)
	}

	header := []byte(`# airosctl device registry
# Stores client-side metadata for known airOS devices.
#
# Security note: device passwords are NEVER stored in this file.
# They are always prompted when needed.

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary registry file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save device registry: %w", err)
	}
	return nil
}

// Lookup returns the stored device entry for a MAC address, or nil
func (r *Registry) Lookup(mac string) *Device {
	return r.Devices[normalizeMAC(mac)]
}

// Remember records (or updates) a device entry under its MAC address and
// stamps the last-seen time.
func (r *Registry) Remember(mac string, update func(*Device)) {
	key := normalizeMAC(mac)
	if key == "" {
		return
	}
	device := r.Devices[key]
	if device == nil {
		device = &Device{}
		r.Devices[key] = device
	}
	update(device)
	device.LastSeen = time.Now()
}

// normalizeMAC canonicalizes a MAC address for use as a registry key
func normalizeMAC(mac string) string {
	return strings.ToUpper(strings.TrimSpace(mac))
}
