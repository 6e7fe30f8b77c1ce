package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFrom_MissingFile(t *testing.T) {
	registry, err := LoadFrom(filepath.Join(t.TempDir(), "devices.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v, missing file should yield a fresh registry", err)
	}
	if registry.Version != registryVersion {
		t.Errorf("Version = %d, want %d", registry.Version, registryVersion)
	}
	if len(registry.Devices) != 0 {
		t.Errorf("fresh registry has %d devices", len(registry.Devices))
	}
	if registry.Preferences == nil || registry.Preferences.DefaultUsername != "ubnt" {
		t.Errorf("Preferences = %+v, want ubnt default", registry.Preferences)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")

	registry := NewRegistry()
	registry.Remember("01:23:45:67:89:AB", func(d *Device) {
		d.Nickname = "rooftop"
		d.Host = "192.168.1.20"
		d.Username = "ubnt"
		d.Dialect = "v8"
		d.Model = "NanoStation 5AC loco"
	})

	if err := registry.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	device := loaded.Lookup("01:23:45:67:89:AB")
	if device == nil {
		t.Fatal("Lookup() = nil after round-trip")
	}
	if device.Nickname != "rooftop" || device.Host != "192.168.1.20" || device.Dialect != "v8" {
		t.Errorf("device = %+v", device)
	}
	if device.LastSeen.IsZero() {
		t.Error("LastSeen not stamped")
	}
}

func TestLookup_MACNormalization(t *testing.T) {
	registry := NewRegistry()
	registry.Remember("01:23:45:67:89:ab", func(d *Device) {
		d.Host = "192.168.1.20"
	})

	if registry.Lookup("01:23:45:67:89:AB") == nil {
		t.Error("Lookup should be case-insensitive")
	}
	if registry.Lookup(" 01:23:45:67:89:ab ") == nil {
		t.Error("Lookup should trim whitespace")
	}
	if registry.Lookup("ff:ff:ff:ff:ff:ff") != nil {
		t.Error("Lookup for an unknown MAC should return nil")
	}
}

func TestRemember_UpdatesExistingEntry(t *testing.T) {
	registry := NewRegistry()
	registry.Remember("01:23:45:67:89:AB", func(d *Device) {
		d.Host = "192.168.1.20"
		d.Dialect = "v6"
	})
	registry.Remember("01:23:45:67:89:AB", func(d *Device) {
		d.Dialect = "v8" // firmware upgraded
	})

	if len(registry.Devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(registry.Devices))
	}
	device := registry.Lookup("01:23:45:67:89:AB")
	if device.Dialect != "v8" {
		t.Errorf("Dialect = %q, want v8", device.Dialect)
	}
	if device.Host != "192.168.1.20" {
		t.Errorf("Host = %q, fields not touched by the update must survive", device.Host)
	}
}

func TestRemember_EmptyMACIgnored(t *testing.T) {
	registry := NewRegistry()
	registry.Remember("", func(d *Device) { d.Host = "192.168.1.20" })
	registry.Remember("   ", func(d *Device) { d.Host = "192.168.1.20" })
	if len(registry.Devices) != 0 {
		t.Errorf("got %d devices, empty MACs must not create entries", len(registry.Devices))
	}
}

func TestLoadFrom_UnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	if err := os.WriteFile(path, []byte("version: 99\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(path)
	if err == nil {
		t.Fatal("LoadFrom() should reject an unsupported version")
	}
	if !strings.Contains(err.Error(), "version") {
		t.Errorf("error = %v, want a version complaint", err)
	}
}

func TestSaveTo_NoPasswordsInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")

	registry := NewRegistry()
	registry.Remember("01:23:45:67:89:AB", func(d *Device) {
		d.Host = "192.168.1.20"
		d.Username = "ubnt"
	})
	if err := registry.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "passwords are NEVER stored") {
		t.Error("saved file should carry the security note header")
	}
	if strings.Contains(strings.ToLower(string(data)), "password:") {
		t.Error("no password field may appear in the registry file")
	}
}
