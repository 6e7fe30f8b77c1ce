package airos

import (
	"fmt"
	"strings"
)

// WirelessModeKind enumerates the closed set of link modes airOS reports:
// access point or station, each point-to-point or point-to-multipoint.
type WirelessModeKind int

const (
	// WirelessModeUnknown is the coercion sentinel for unrecognized raw
	// values; the raw token is preserved on the WirelessMode for diagnostics
	WirelessModeUnknown WirelessModeKind = iota
	WirelessModeAPPtP
	WirelessModeAPPtMP
	WirelessModeStationPtP
	WirelessModeStationPtMP
)

// WirelessMode is a closed sum over the known link modes. Kind is safe to
// switch on exhaustively; Raw keeps the source token so unknown values stay
// diagnosable without failing the parse.
type WirelessMode struct {
	Kind WirelessModeKind
	Raw  string
}

// String returns the canonical wire token for the mode
func (m WirelessMode) String() string {
	switch m.Kind {
	case WirelessModeAPPtP:
		return "ap-ptp"
	case WirelessModeAPPtMP:
		return "ap-ptmp"
	case WirelessModeStationPtP:
		return "sta-ptp"
	case WirelessModeStationPtMP:
		return "sta-ptmp"
	default:
		return fmt.Sprintf("unknown(%s)", m.Raw)
	}
}

// AccessPoint reports whether the device runs the AP side of the link
func (m WirelessMode) AccessPoint() bool {
	return m.Kind == WirelessModeAPPtP || m.Kind == WirelessModeAPPtMP
}

// Station reports whether the device runs the station side of the link
func (m WirelessMode) Station() bool {
	return m.Kind == WirelessModeStationPtP || m.Kind == WirelessModeStationPtMP
}

// PointToMultipoint reports whether the link topology is PtMP
func (m WirelessMode) PointToMultipoint() bool {
	return m.Kind == WirelessModeAPPtMP || m.Kind == WirelessModeStationPtMP
}

// parseWirelessMode coerces a raw mode token into the closed set. v6
// firmware reports bare "ap"/"sta" with no topology suffix; those imply
// point-to-point.
func parseWirelessMode(raw string) WirelessMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ap", "ap-ptp":
		return WirelessMode{Kind: WirelessModeAPPtP, Raw: raw}
	case "ap-ptmp":
		return WirelessMode{Kind: WirelessModeAPPtMP, Raw: raw}
	case "sta", "sta-ptp":
		return WirelessMode{Kind: WirelessModeStationPtP, Raw: raw}
	case "sta-ptmp":
		return WirelessMode{Kind: WirelessModeStationPtMP, Raw: raw}
	default:
		return WirelessMode{Kind: WirelessModeUnknown, Raw: raw}
	}
}

// IEEEModeKind enumerates the 802.11 PHY families airOS reports
type IEEEModeKind int

const (
	IEEEModeUnknown IEEEModeKind = iota
	IEEEMode11A
	IEEEMode11B
	IEEEMode11G
	IEEEMode11NA
	IEEEMode11NG
	IEEEMode11N
	IEEEMode11AC
)

// IEEEMode is a closed sum over the known PHY families. ChannelWidth holds
// the MHz suffix when the raw token carries one (e.g. "11acvht80" -> 80).
type IEEEMode struct {
	Kind         IEEEModeKind
	Raw          string
	ChannelWidth int
}

// String returns the PHY family name, or the unknown sentinel form
func (m IEEEMode) String() string {
	switch m.Kind {
	case IEEEMode11A:
		return "11a"
	case IEEEMode11B:
		return "11b"
	case IEEEMode11G:
		return "11g"
	case IEEEMode11NA:
		return "11na"
	case IEEEMode11NG:
		return "11ng"
	case IEEEMode11N:
		return "11n"
	case IEEEMode11AC:
		return "11ac"
	default:
		return fmt.Sprintf("unknown(%s)", m.Raw)
	}
}

// parseIEEEMode coerces raw tokens like "11acvht80" or "11naht40" into the
// closed set, extracting the channel width suffix when present.
func parseIEEEMode(raw string) IEEEMode {
	token := strings.ToLower(strings.TrimSpace(raw))
	mode := IEEEMode{Kind: IEEEModeUnknown, Raw: raw}

	base := token
	for _, sep := range []string{"vht", "ht"} {
		if idx := strings.Index(token, sep); idx > 0 {
			base = token[:idx]
			width := 0
			if _, err := fmt.Sscanf(token[idx+len(sep):], "%d", &width); err == nil {
				mode.ChannelWidth = width
			}
			break
		}
	}

	switch base {
	case "11a":
		mode.Kind = IEEEMode11A
	case "11b":
		mode.Kind = IEEEMode11B
	case "11g":
		mode.Kind = IEEEMode11G
	case "11na":
		mode.Kind = IEEEMode11NA
	case "11ng":
		mode.Kind = IEEEMode11NG
	case "11n":
		mode.Kind = IEEEMode11N
	case "11ac":
		mode.Kind = IEEEMode11AC
	}
	return mode
}

// OperatingModeKind enumerates the network roles a device can run in
type OperatingModeKind int

const (
	OperatingModeUnknown OperatingModeKind = iota
	OperatingModeBridge
	OperatingModeRouter
	OperatingModeSOHORouter
)

// OperatingMode is a closed sum over the device network roles
type OperatingMode struct {
	Kind OperatingModeKind
	Raw  string
}

// String returns the role name, or the unknown sentinel form
func (m OperatingMode) String() string {
	switch m.Kind {
	case OperatingModeBridge:
		return "bridge"
	case OperatingModeRouter:
		return "router"
	case OperatingModeSOHORouter:
		return "soho"
	default:
		return fmt.Sprintf("unknown(%s)", m.Raw)
	}
}

func parseOperatingMode(raw string) OperatingMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "bridge":
		return OperatingMode{Kind: OperatingModeBridge, Raw: raw}
	case "router":
		return OperatingMode{Kind: OperatingModeRouter, Raw: raw}
	case "soho", "soho-router":
		return OperatingMode{Kind: OperatingModeSOHORouter, Raw: raw}
	default:
		return OperatingMode{Kind: OperatingModeUnknown, Raw: raw}
	}
}

// DeviceStatus is the normalized snapshot of a single status poll. Optional
// fields are pointers: a field absent or unparseable in the source payload
// is nil here, never an error. Only the identity fields on Host are
// mandatory.
type DeviceStatus struct {
	Host       Host
	Wireless   Wireless
	Interfaces []Interface
	GPS        *GPS
	Derived    Derived
}

// Host carries device identity and system health. DeviceModel and
// FirmwareVersion are the mandatory identity fields; everything else is
// optional across firmware builds.
type Host struct {
	Hostname        string
	DeviceModel     string
	FirmwareVersion string
	NetRole         OperatingMode
	UptimeSeconds   *int64
	// CPULoad is a normalized 0-100 percentage (see the v6 smoothing note
	// on Parse)
	CPULoad  *float64
	FreeRAM  *int64
	TotalRAM *int64
}

// Wireless carries the radio link state. Signal metrics are absent on
// disconnected stations; throughput on v6 is derived from tx/rx rates.
type Wireless struct {
	Mode     WirelessMode
	IEEEMode IEEEMode
	SSID     string
	APMAC    string
	// FrequencyMHz is numeric even when the firmware reports a string with
	// an "MHz" suffix
	FrequencyMHz    *int
	ChannelWidthMHz *int
	SignalDBm       *int
	NoiseFloorDBm   *int
	TxPowerDBm      *int
	// AntennaGainDBi is reported directly on v8 and derived from the
	// antenna model string on v6
	AntennaGainDBi *int
	// ThroughputTxKbps/ThroughputRxKbps come from throughput counters on v8
	// and from the tx/rx rate fields on v6
	ThroughputTxKbps *int64
	ThroughputRxKbps *int64
	DistanceMeters   *int
	Stations         []Station
}

// Station is one peer on the wireless link (an AP's connected station, or
// the station's view of its AP).
type Station struct {
	MAC            string
	Hostname       string
	IP             string
	SignalDBm      *int
	NoiseFloorDBm  *int
	DistanceMeters *int
	TxRateKbps     *int64
	RxRateKbps     *int64
	Connected      bool
}

// Interface is one network interface of the device
type Interface struct {
	Name      string
	MAC       string
	Enabled   bool
	MTU       *int
	IP        string
	Plugged   *bool
	SpeedMbps *int
}

// GPS is the device location fix, present only on GPS-equipped models
type GPS struct {
	Latitude  float64
	Longitude float64
	Fix       *int
}

// Derived carries values computed from the raw payload rather than reported
// by the firmware: link role flags, the primary MAC, and the product SKU.
type Derived struct {
	AccessPoint bool
	Station     bool
	PtP         bool
	PtMP        bool
	// MAC is the primary device MAC, selected from the interface list in
	// br0, eth0, ath0 preference order (enabled interfaces first)
	MAC          string
	MACInterface string
	// SKU is the UISP product code for the reported device model, or
	// "UNKNOWN" when the model is not in the lookup table
	SKU string
}
