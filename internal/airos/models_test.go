package airos

import "testing"

func TestParseWirelessMode(t *testing.T) {
	tests := []struct {
		raw  string
		kind WirelessModeKind
	}{
		{"ap-ptp", WirelessModeAPPtP},
		{"ap-ptmp", WirelessModeAPPtMP},
		{"sta-ptp", WirelessModeStationPtP},
		{"sta-ptmp", WirelessModeStationPtMP},
		{"ap", WirelessModeAPPtP},   // v6 bare token implies PtP
		{"sta", WirelessModeStationPtP},
		{"AP-PTMP", WirelessModeAPPtMP}, // case-insensitive
		{" sta ", WirelessModeStationPtP},
		{"mesh", WirelessModeUnknown},
		{"", WirelessModeUnknown},
	}
	for _, tt := range tests {
		got := parseWirelessMode(tt.raw)
		if got.Kind != tt.kind {
			t.Errorf("parseWirelessMode(%q).Kind = %v, want %v", tt.raw, got.Kind, tt.kind)
		}
		if got.Raw != tt.raw {
			t.Errorf("parseWirelessMode(%q).Raw = %q, raw token must be preserved", tt.raw, got.Raw)
		}
	}
}

func TestWirelessMode_RoleFlags(t *testing.T) {
	ap := parseWirelessMode("ap-ptmp")
	if !ap.AccessPoint() || ap.Station() || !ap.PointToMultipoint() {
		t.Errorf("ap-ptmp flags wrong: %+v", ap)
	}

	sta := parseWirelessMode("sta")
	if sta.AccessPoint() || !sta.Station() || sta.PointToMultipoint() {
		t.Errorf("sta flags wrong: %+v", sta)
	}

	unknown := parseWirelessMode("mesh")
	if unknown.AccessPoint() || unknown.Station() {
		t.Error("unknown mode must not claim a role")
	}
}

func TestParseIEEEMode(t *testing.T) {
	tests := []struct {
		raw   string
		kind  IEEEModeKind
		width int
	}{
		{"11acvht80", IEEEMode11AC, 80},
		{"11acvht40", IEEEMode11AC, 40},
		{"11naht40", IEEEMode11NA, 40},
		{"11naht20", IEEEMode11NA, 20},
		{"11nght20", IEEEMode11NG, 20},
		{"11a", IEEEMode11A, 0},
		{"11g", IEEEMode11G, 0},
		{"11ac-bogus", IEEEModeUnknown, 0},
		{"wifi7", IEEEModeUnknown, 0},
	}
	for _, tt := range tests {
		got := parseIEEEMode(tt.raw)
		if got.Kind != tt.kind || got.ChannelWidth != tt.width {
			t.Errorf("parseIEEEMode(%q) = (%v, %d), want (%v, %d)",
				tt.raw, got.Kind, got.ChannelWidth, tt.kind, tt.width)
		}
	}
}

func TestParseOperatingMode(t *testing.T) {
	tests := []struct {
		raw  string
		kind OperatingModeKind
	}{
		{"bridge", OperatingModeBridge},
		{"Bridge", OperatingModeBridge},
		{"router", OperatingModeRouter},
		{"soho", OperatingModeSOHORouter},
		{"soho-router", OperatingModeSOHORouter},
		{"repeater", OperatingModeUnknown},
	}
	for _, tt := range tests {
		if got := parseOperatingMode(tt.raw); got.Kind != tt.kind {
			t.Errorf("parseOperatingMode(%q).Kind = %v, want %v", tt.raw, got.Kind, tt.kind)
		}
	}
}

func TestModeStrings(t *testing.T) {
	if s := parseWirelessMode("ap-ptmp").String(); s != "ap-ptmp" {
		t.Errorf("String() = %q", s)
	}
	if s := parseWirelessMode("mesh").String(); s != "unknown(mesh)" {
		t.Errorf("unknown String() = %q", s)
	}
	if s := parseIEEEMode("11acvht80").String(); s != "11ac" {
		t.Errorf("String() = %q", s)
	}
}

func TestParseGeneration(t *testing.T) {
	if g := ParseGeneration("v6"); g != GenV6 {
		t.Errorf("ParseGeneration(v6) = %v", g)
	}
	if g := ParseGeneration("v8"); g != GenV8 {
		t.Errorf("ParseGeneration(v8) = %v", g)
	}
	if g := ParseGeneration("v99"); g != GenUnknown {
		t.Errorf("ParseGeneration(v99) = %v", g)
	}
}
