package redact

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Placeholder values substituted for sensitive fields. Placeholders keep the
// original field type and shape so downstream consumers of a redacted
// payload never see a field change type or disappear.
const (
	// PlaceholderLatitude replaces any latitude value
	PlaceholderLatitude = 52.0

	// PlaceholderLongitude replaces any longitude value
	PlaceholderLongitude = 5.0

	// PlaceholderSSID replaces SSID values
	PlaceholderSSID = "hidden-ssid"

	// PlaceholderHostname replaces hostname values
	PlaceholderHostname = "hidden-hostname"

	// macPrefix is the OUI-like prefix of substituted MAC addresses.
	// Addresses already carrying this prefix are left untouched, which is
	// what makes redaction idempotent. The three remaining octets encode
	// a per-call counter, so up to 2^24 distinct input MACs keep distinct
	// substitutes within one call.
	macPrefix = "01:23:45:"
)

var (
	macPattern  = regexp.MustCompile(`\b[0-9A-Fa-f]{2}(?::[0-9A-Fa-f]{2}){5}\b`)
	ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}(\d{1,3})\b`)
)

// Keys whose values are replaced wholesale rather than pattern-scrubbed.
var (
	latitudeKeys  = map[string]bool{"lat": true, "latitude": true}
	longitudeKeys = map[string]bool{"lon": true, "lng": true, "longitude": true}
	ssidKeys      = map[string]bool{"essid": true, "ssid": true, "apssid": true}
	hostnameKeys  = map[string]bool{"hostname": true, "netbiosname": true}
)

// scrubber holds per-call MAC substitution state. The same input MAC maps
// to the same substitute within one call, and distinct inputs stay distinct.
type scrubber struct {
	macs map[string]string
	next int
}

func newScrubber() *scrubber {
	return &scrubber{macs: make(map[string]string)}
}

func (s *scrubber) mac(raw string) string {
	normalized := strings.ToUpper(raw)
	if strings.HasPrefix(normalized, macPrefix) {
		return normalized
	}
	if sub, ok := s.macs[normalized]; ok {
		return sub
	}
	n := s.next & 0xFFFFFF
	sub := fmt.Sprintf("%s%02X:%02X:%02X", macPrefix, n>>16, (n>>8)&0xFF, n&0xFF)
	s.next++
	s.macs[normalized] = sub
	return sub
}

func (s *scrubber) scrubString(v string) string {
	v = macPattern.ReplaceAllStringFunc(v, s.mac)
	v = ipv4Pattern.ReplaceAllString(v, "0.0.0.$1")
	return v
}

// Payload redacts a raw device payload for inclusion in a log line or an
// error message. The input is parsed as JSON when possible so key-based
// rules (lat/lon, SSID, hostname) apply; otherwise the text is scrubbed
// pattern-wise for MAC and IPv4 values.
func Payload(raw []byte) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return newScrubber().scrubString(string(raw))
	}
	redacted := Value(v)
	out, err := json.Marshal(redacted)
	if err != nil {
		// Marshal of plain maps/slices/scalars cannot fail; keep a safe fallback anyway.
		return newScrubber().scrubString(string(raw))
	}
	return string(out)
}

// Map redacts a decoded JSON object in place-shape (the input is not
// modified; a redacted copy is returned).
func Map(m map[string]any) map[string]any {
	s := newScrubber()
	out, _ := s.value(m).(map[string]any)
	return out
}

// Value redacts any decoded JSON value.
func Value(v any) any {
	return newScrubber().value(v)
}

func (s *scrubber) value(v any) any {
	switch t := v.(type) {
	case map[string]any:
		// Sorted key order keeps MAC substitute assignment deterministic
		// for a given input, independent of map iteration order.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]any, len(t))
		for _, k := range keys {
			out[k] = s.field(k, t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = s.value(item)
		}
		return out
	case string:
		return s.scrubString(t)
	default:
		return v
	}
}

func (s *scrubber) field(key string, v any) any {
	k := strings.ToLower(strings.ReplaceAll(key, "_", ""))
	switch {
	case latitudeKeys[k]:
		return placeholderCoordinate(v, PlaceholderLatitude)
	case longitudeKeys[k]:
		return placeholderCoordinate(v, PlaceholderLongitude)
	case ssidKeys[k]:
		if _, ok := v.(string); ok {
			return PlaceholderSSID
		}
	case hostnameKeys[k]:
		if _, ok := v.(string); ok {
			return PlaceholderHostname
		}
	}
	return s.value(v)
}

// placeholderCoordinate keeps the source type: string coordinates stay
// strings (several firmware builds report GPS as strings).
func placeholderCoordinate(v any, placeholder float64) any {
	if _, ok := v.(string); ok {
		return fmt.Sprintf("%.6f", placeholder)
	}
	return placeholder
}
