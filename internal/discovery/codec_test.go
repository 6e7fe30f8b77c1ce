package discovery

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"
	"time"
)

// replyBuilder assembles discovery reply datagrams the way the firmware
// emits them, for fixture construction in tests.
type replyBuilder struct {
	buf bytes.Buffer
}

func newReplyBuilder() *replyBuilder {
	b := &replyBuilder{}
	b.buf.Write([]byte{versionByte, opcodeDiscover, 0x00, 0x00, 0x00, 0x00})
	return b
}

func (b *replyBuilder) tlv(t byte, value []byte) *replyBuilder {
	b.buf.WriteByte(t)
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(value)))
	b.buf.Write(length[:])
	b.buf.Write(value)
	return b
}

func (b *replyBuilder) bareMAC(mac net.HardwareAddr) *replyBuilder {
	b.buf.WriteByte(tlvMAC)
	b.buf.Write(mac)
	return b
}

func (b *replyBuilder) bytes() []byte {
	return b.buf.Bytes()
}

var (
	fixtureMAC = net.HardwareAddr{0x01, 0x23, 0x45, 0x67, 0x89, 0xCD}
	fixtureIP  = net.IP{192, 168, 1, 3}
	fixtureSrc = &net.UDPAddr{IP: net.IP{192, 168, 1, 3}, Port: Port}
)

// fixtureReply mirrors a capture from a NanoStation 5AC loco on 8.7.17
func fixtureReply() []byte {
	uptime := make([]byte, 4)
	binary.BigEndian.PutUint32(uptime, 265375)

	return newReplyBuilder().
		bareMAC(fixtureMAC).
		tlv(tlvAddress, append(append([]byte{}, fixtureMAC...), fixtureIP...)).
		tlv(tlvHostname, []byte("shed-link")).
		tlv(tlvModel, []byte("NanoStation 5AC loco")).
		tlv(tlvSSID, []byte("DemoSSID")).
		tlv(tlvFirmware, []byte("WA.V8.7.17")).
		tlv(tlvUptime, uptime).
		bytes()
}

func TestBuildProbe(t *testing.T) {
	probe := BuildProbe()
	want := []byte{0x01, 0x06, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(probe, want) {
		t.Errorf("BuildProbe() = %x, want %x", probe, want)
	}
}

func TestParseReply(t *testing.T) {
	record := ParseReply(fixtureReply(), fixtureSrc)
	if record == nil {
		t.Fatal("ParseReply() = nil for a valid reply")
	}

	if !bytes.Equal(record.MAC, fixtureMAC) {
		t.Errorf("MAC = %s, want %s", record.MAC, fixtureMAC)
	}
	if !record.IP.Equal(fixtureIP) {
		t.Errorf("IP = %s, want %s", record.IP, fixtureIP)
	}
	if !record.Addr.Equal(fixtureSrc.IP) {
		t.Errorf("Addr = %s, want %s", record.Addr, fixtureSrc.IP)
	}
	if record.Hostname != "shed-link" {
		t.Errorf("Hostname = %q", record.Hostname)
	}
	if record.Model != "NanoStation 5AC loco" {
		t.Errorf("Model = %q", record.Model)
	}
	if record.SSID != "DemoSSID" {
		t.Errorf("SSID = %q", record.SSID)
	}
	if record.Firmware != "WA.V8.7.17" {
		t.Errorf("Firmware = %q", record.Firmware)
	}
	if record.Uptime != 265375*time.Second {
		t.Errorf("Uptime = %v, want %v", record.Uptime, 265375*time.Second)
	}
	if record.DiscoveredAt.IsZero() {
		t.Error("DiscoveredAt not set")
	}
}

func TestParseReply_Malformed(t *testing.T) {
	valid := fixtureReply()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", []byte{0x01, 0x06, 0x00}},
		{"wrong version", append([]byte{0x7f}, valid[1:]...)},
		{"wrong opcode", append([]byte{0x01, 0x7f}, valid[2:]...)},
		{"truncated tlv", valid[:len(valid)-3]},
		{"length overrun", append(newReplyBuilder().bytes(), tlvHostname, 0xff, 0xff, 'x')},
		{"no mac", newReplyBuilder().tlv(tlvHostname, []byte("shed-link")).bytes()},
		{"bare mac cut short", append(newReplyBuilder().bytes(), tlvMAC, 0x01, 0x23)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if record := ParseReply(tt.data, fixtureSrc); record != nil {
				t.Errorf("ParseReply() = %+v, want nil", record)
			}
		})
	}
}

func TestParseReply_UnknownTLVSkipped(t *testing.T) {
	reply := newReplyBuilder().
		bareMAC(fixtureMAC).
		tlv(0x42, []byte{0xde, 0xad}). // unknown type
		tlv(tlvHostname, []byte("shed-link")).
		bytes()

	record := ParseReply(reply, fixtureSrc)
	if record == nil {
		t.Fatal("unknown TLV type should be skipped, not rejected")
	}
	if record.Hostname != "shed-link" {
		t.Errorf("Hostname = %q, TLVs after the unknown one must still parse", record.Hostname)
	}
}

func TestRecord_BaseURL(t *testing.T) {
	record := ParseReply(fixtureReply(), fixtureSrc)
	if got := record.BaseURL(); got != "https://192.168.1.3" {
		t.Errorf("BaseURL() = %q", got)
	}
}
