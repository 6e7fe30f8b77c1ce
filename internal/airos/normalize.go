package airos

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/muurk/airosctl/internal/redact"
)

// fieldMap is the generation-specific mapping table the normalizer works
// from. One table per firmware family keeps every per-generation quirk in
// one place instead of scattered through the parse code.
type fieldMap struct {
	// wirelessModeKeys are tried in order to find the link mode token
	// (v6 reports it under "opmode", v8 under "mode")
	wirelessModeKeys []string
	// textFrequency means frequency may arrive as a string with an "MHz"
	// suffix that needs numeric extraction
	textFrequency bool
	// directThroughput means the firmware reports throughput counters;
	// when false, capacity is derived from the tx/rx rate fields
	directThroughput bool
	// directAntennaGain means antenna gain is reported numerically; when
	// false it is derived from the free-text antenna model string
	directAntennaGain bool
	// smoothCPULoad applies the v6 load normalization (see smoothCPULoad)
	smoothCPULoad bool
}

var fieldMaps = map[Generation]fieldMap{
	GenV6: {
		wirelessModeKeys: []string{"opmode", "mode"},
		textFrequency:    true,
		smoothCPULoad:    true,
	},
	GenV8: {
		wirelessModeKeys:  []string{"mode"},
		directThroughput:  true,
		directAntennaGain: true,
	},
}

// Parse normalizes a raw status payload into a DeviceStatus.
//
// The normalizer is tolerant: any optional field that is
// absent or unparseable becomes nil, and unrecognized enum tokens coerce to
// their Unknown sentinel with a warning cached once per session. Only the
// mandatory identity fields (device model, firmware version, a non-empty
// interface list) produce a hard error, carrying the redacted payload for
// diagnosis.
func Parse(raw []byte, gen Generation, warnings *WarningCache) (*DeviceStatus, error) {
	fm, ok := fieldMaps[gen]
	if !ok {
		fm = fieldMaps[GenV8]
	}

	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, NewMalformedStatusError("status payload is not a JSON object", redact.Payload(raw))
	}

	host := childMap(root, "host")
	model := stringField(host, "devmodel")
	firmware := stringField(host, "fwversion")
	if model == "" {
		return nil, NewMalformedStatusError("device model missing from status payload", redact.Payload(raw))
	}
	if firmware == "" {
		return nil, NewMalformedStatusError("firmware version missing from status payload", redact.Payload(raw))
	}

	interfaces := parseInterfaces(root)
	if len(interfaces) == 0 {
		// No interfaces means no MAC identity, which makes the snapshot
		// unusable for a consumer keyed on device address.
		return nil, NewMalformedStatusError("no interfaces in status payload", redact.Payload(raw))
	}

	status := &DeviceStatus{
		Host: Host{
			Hostname:        stringField(host, "hostname"),
			DeviceModel:     model,
			FirmwareVersion: firmware,
			UptimeSeconds:   int64Field(host, "uptime"),
			FreeRAM:         int64Field(host, "freeram"),
			TotalRAM:        int64Field(host, "totalram"),
		},
		Interfaces: interfaces,
	}

	if netrole := stringField(host, "netrole"); netrole != "" {
		status.Host.NetRole = parseOperatingMode(netrole)
		if status.Host.NetRole.Kind == OperatingModeUnknown {
			warnings.warnOnce("host.netrole", netrole, "unrecognized network role, coerced to unknown")
		}
	}

	if load, ok := numberField(host, "cpuload"); ok {
		normalized := load
		if fm.smoothCPULoad {
			normalized = smoothCPULoad(load)
		}
		normalized = math.Round(math.Min(math.Max(normalized, 0), 100)*10) / 10
		status.Host.CPULoad = &normalized
	}

	status.Wireless = parseWireless(root, fm, warnings)
	status.GPS = parseGPS(root)
	status.Derived = deriveData(status, warnings)

	return status, nil
}

// smoothCPULoad normalizes the v6 raw load figure. Idle XM/XW boards report
// load values that saturate near (or beyond) 100, so a straight clamp would
// park the gauge at 100%. The mapping 100*raw/(raw+25) is monotonic and
// asymptotic below 100, calibrated against fixture captures so raw values
// around 95-100 land in the low 80s.
func smoothCPULoad(raw float64) float64 {
	if raw <= 0 {
		return 0
	}
	return 100 * raw / (raw + 25)
}

func parseWireless(root map[string]any, fm fieldMap, warnings *WarningCache) Wireless {
	w := childMap(root, "wireless")
	out := Wireless{
		SSID:  stringField(w, "essid"),
		APMAC: stringField(w, "apmac"),
	}

	for _, key := range fm.wirelessModeKeys {
		if raw := stringField(w, key); raw != "" {
			out.Mode = parseWirelessMode(raw)
			if out.Mode.Kind == WirelessModeUnknown {
				warnings.warnOnce("wireless."+key, raw, "unrecognized wireless mode, coerced to unknown")
			}
			break
		}
	}

	if raw := stringField(w, "ieeemode"); raw != "" {
		out.IEEEMode = parseIEEEMode(raw)
		if out.IEEEMode.Kind == IEEEModeUnknown {
			warnings.warnOnce("wireless.ieeemode", raw, "unrecognized ieee mode, coerced to unknown")
		}
	}

	out.FrequencyMHz = intField(w, "frequency")
	out.ChannelWidthMHz = firstIntField(w, "chanbw", "chwidth")
	out.SignalDBm = intField(w, "signal")
	out.NoiseFloorDBm = firstIntField(w, "noisef", "noise")
	out.TxPowerDBm = intField(w, "txpower")
	out.DistanceMeters = intField(w, "distance")

	if fm.directAntennaGain {
		out.AntennaGainDBi = intField(w, "antenna_gain")
	} else if antenna := stringField(w, "antenna"); antenna != "" {
		if gain, ok := antennaGainFromName(antenna); ok {
			out.AntennaGainDBi = &gain
		} else {
			warnings.warnOnce("wireless.antenna", antenna, "cannot derive antenna gain from antenna name")
		}
	}

	if fm.directThroughput {
		tp := childMap(w, "throughput")
		out.ThroughputTxKbps = int64Field(tp, "tx")
		out.ThroughputRxKbps = int64Field(tp, "rx")
	} else {
		// v6 has no throughput counters; the negotiated tx/rx rates (Mbps)
		// stand in as link capacity.
		if rate, ok := numberField(w, "txrate"); ok {
			kbps := int64(rate * 1000)
			out.ThroughputTxKbps = &kbps
		}
		if rate, ok := numberField(w, "rxrate"); ok {
			kbps := int64(rate * 1000)
			out.ThroughputRxKbps = &kbps
		}
	}

	if stations, ok := w["sta"].([]any); ok {
		for _, entry := range stations {
			sta, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			out.Stations = append(out.Stations, parseStation(sta))
		}
	}

	return out
}

func parseStation(sta map[string]any) Station {
	remote := childMap(sta, "remote")
	s := Station{
		MAC:            stringField(sta, "mac"),
		IP:             stringField(sta, "lastip"),
		Hostname:       stringField(remote, "hostname"),
		SignalDBm:      intField(sta, "signal"),
		NoiseFloorDBm:  intField(sta, "noisefloor"),
		DistanceMeters: intField(sta, "distance"),
		TxRateKbps:     int64Field(sta, "txrate"),
		RxRateKbps:     int64Field(sta, "rxrate"),
	}
	if s.DistanceMeters == nil {
		s.DistanceMeters = intField(remote, "distance")
	}
	// Disconnected remotes report no signal; absence is data, not an error.
	s.Connected = s.SignalDBm != nil
	return s
}

func parseInterfaces(root map[string]any) []Interface {
	raw, ok := root["interfaces"].([]any)
	if !ok {
		return nil
	}
	var out []Interface
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		iface := Interface{
			Name:    stringField(m, "ifname"),
			MAC:     stringField(m, "hwaddr"),
			Enabled: boolField(m, "enabled"),
			MTU:     intField(m, "mtu"),
		}
		if st := childMap(m, "status"); st != nil {
			iface.IP = stringField(st, "ipaddr")
			iface.SpeedMbps = intField(st, "speed")
			switch v := st["plugged"].(type) {
			case bool:
				iface.Plugged = &v
			case float64:
				b := v != 0
				iface.Plugged = &b
			}
		}
		if iface.Name == "" && iface.MAC == "" {
			continue
		}
		out = append(out, iface)
	}
	return out
}

func parseGPS(root map[string]any) *GPS {
	g := childMap(root, "gps")
	if g == nil {
		return nil
	}
	lat, okLat := numberField(g, "lat")
	lon, okLon := numberField(g, "lon")
	if !okLat || !okLon {
		return nil
	}
	gps := &GPS{Latitude: lat, Longitude: lon}
	gps.Fix = intField(g, "fix")
	return gps
}

// deriveData computes values the firmware does not report directly: link
// role flags, the primary MAC and its interface, and the product SKU.
func deriveData(status *DeviceStatus, warnings *WarningCache) Derived {
	d := Derived{
		AccessPoint: status.Wireless.Mode.AccessPoint(),
		Station:     status.Wireless.Mode.Station(),
	}
	if status.Wireless.Mode.Kind != WirelessModeUnknown {
		d.PtMP = status.Wireless.Mode.PointToMultipoint()
		d.PtP = !d.PtMP
	}

	// Primary MAC: prefer enabled br0, then eth0, then ath0; fall back to
	// the first listed interface.
	enabled := make(map[string]string)
	for _, iface := range status.Interfaces {
		if iface.Enabled {
			enabled[iface.Name] = iface.MAC
		}
	}
	d.MAC = status.Interfaces[0].MAC
	d.MACInterface = status.Interfaces[0].Name
	for _, name := range []string{"br0", "eth0", "ath0"} {
		if mac, ok := enabled[name]; ok {
			d.MAC = mac
			d.MACInterface = name
			break
		}
	}

	sku, ok := skuByModel[status.Host.DeviceModel]
	if !ok {
		warnings.warnOnce("host.devmodel", status.Host.DeviceModel, "unknown product SKU for device model")
		sku = "UNKNOWN"
	}
	d.SKU = sku

	return d
}

// skuByModel maps the devmodel string to the UISP product code
var skuByModel = map[string]string{
	"NanoStation 5AC loco": "LOCO5AC",
	"NanoStation 5AC":      "NS-5AC",
	"NanoBeam 5AC 19":      "NBE-5AC-19",
	"NanoBeam 5AC Gen2":    "NBE-5AC-GEN2",
	"PowerBeam 5AC 500":    "PBE-5AC-500",
	"PowerBeam 5AC Gen2":   "PBE-5AC-GEN2",
	"LiteBeam 5AC Gen2":    "LBE-5AC-GEN2",
	"LiteAP AC":            "LAP-120",
	"Rocket 5AC Lite":      "R5AC-LITE",
	"Rocket M5":            "RM5",
	"NanoStation M5":       "NSM5",
	"NanoStation Loco M5":  "LOCOM5",
	"NanoStation M2":       "NSM2",
	"NanoStation Loco M2":  "LOCOM2",
	"PowerBeam M5 400":     "PBE-M5-400",
	"PowerBeam M5 300":     "PBE-M5-300",
	"LiteBeam M5":          "LBE-M5-23",
	"AirGrid M5 HP":        "AG-HP-5G23",
}

// antennaGainDBi maps known v6 antenna description strings to their gain.
// Free-text strings not in the table fall through to the "N dBi" heuristic.
var antennaGainDBi = map[string]int{
	"Feed only":            3,
	"Integrated":           16,
	"NanoStation M5":       16,
	"NanoStation Loco M5":  13,
	"AirGrid 23 dBi":       23,
	"PowerBeam 400 25 dBi": 25,
}

var dbiPattern = regexp.MustCompile(`(\d+)\s*dBi`)

// antennaGainFromName derives antenna gain from the free-text antenna model
// string v6 firmware reports.
func antennaGainFromName(name string) (int, bool) {
	if gain, ok := antennaGainDBi[strings.TrimSpace(name)]; ok {
		return gain, true
	}
	if m := dbiPattern.FindStringSubmatch(name); m != nil {
		if gain, err := strconv.Atoi(m[1]); err == nil {
			return gain, true
		}
	}
	return 0, false
}

// --- tolerant field accessors ---
//
// Status payloads vary between firmware builds in both presence and type:
// numbers arrive as JSON numbers, numeric strings, or strings with a unit
// suffix. These helpers coerce where they can and report absence otherwise.

func childMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	child, _ := m[key].(map[string]any)
	return child
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func boolField(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	switch v := m[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	default:
		return false
	}
}

// numberField extracts a numeric value, accepting JSON numbers, numeric
// strings, and strings with a trailing unit (e.g. "5785MHz" -> 5785).
func numberField(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case string:
		return leadingNumber(v)
	default:
		return 0, false
	}
}

func leadingNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] == '-' && end == 0 || s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func intField(m map[string]any, key string) *int {
	if n, ok := numberField(m, key); ok {
		v := int(n)
		return &v
	}
	return nil
}

func firstIntField(m map[string]any, keys ...string) *int {
	for _, key := range keys {
		if v := intField(m, key); v != nil {
			return v
		}
	}
	return nil
}

func int64Field(m map[string]any, key string) *int64 {
	if n, ok := numberField(m, key); ok {
		v := int64(n)
		return &v
	}
	return nil
}
