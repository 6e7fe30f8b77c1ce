package discovery

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// airOS discovery wire format constants. Replies are a fixed 6-byte header
// followed by a TLV sequence.
const (
	// Port is the UDP port airOS devices listen on for discovery probes
	Port = 10001

	// versionByte is the protocol version in the packet header
	versionByte = 0x01

	// opcodeDiscover is the discovery opcode in the packet header
	opcodeDiscover = 0x06

	// headerLen is the header length: version, opcode, four reserved bytes
	headerLen = 6

	// probeLen is the probe packet length: the header bytes, zero-padded
	probeLen = headerLen
)

// TLV types observed in discovery replies. Except for tlvMAC, every TLV is
// type byte + 2-byte big-endian length + value.
const (
	// tlvAddress carries 6 bytes MAC followed by 4 bytes IPv4
	tlvAddress = 0x02
	// tlvFirmware is the firmware version string
	tlvFirmware = 0x03
	// tlvMAC is a bare MAC address: fixed 6-byte value, no length field
	tlvMAC = 0x06
	// tlvUptime is the uptime in seconds, unsigned 32-bit big-endian
	tlvUptime = 0x0a
	// tlvHostname is the device hostname string
	tlvHostname = 0x0b
	// tlvModel is the short model name string
	tlvModel = 0x0c
	// tlvSSID is the wireless network name string
	tlvSSID = 0x0d
	// tlvFullModel is the full model name string
	tlvFullModel = 0x14
)

// Record is one device's discovery reply. Records are ephemeral: built
// fresh per discovery round, never persisted.
type Record struct {
	// Addr is the source address the reply arrived from
	Addr net.IP

	// IP is the address the device reports for itself (from the reply
	// body; may differ from Addr on multi-homed devices)
	IP net.IP

	// MAC is the device MAC address
	MAC net.HardwareAddr

	// Hostname is the device hostname
	Hostname string

	// Model is the short model name (e.g. "NanoStation 5AC loco")
	Model string

	// FullModel is the full model name, when the firmware reports one
	FullModel string

	// SSID is the wireless network name
	SSID string

	// Firmware is the firmware version string (e.g. "WA.V8.7.17")
	Firmware string

	// Uptime is the device uptime at reply time
	Uptime time.Duration

	// DiscoveredAt is when the reply was received
	DiscoveredAt time.Time
}

// String returns a human-readable one-liner for the device
func (r *Record) String() string {
	return fmt.Sprintf("%s (%s) at %s [%s]", r.Hostname, r.Model, r.Addr, r.Firmware)
}

// BaseURL returns the HTTPS base URL for the device
func (r *Record) BaseURL() string {
	return fmt.Sprintf("https://%s", r.Addr)
}

// BuildProbe constructs the discovery probe datagram: version byte,
// discovery opcode, zero-padded to the header length. Devices answer it
// with a unicast TLV reply.
func BuildProbe() []byte {
	probe := make([]byte, probeLen)
	probe[0] = versionByte
	probe[1] = opcodeDiscover
	return probe
}

// ParseReply decodes a discovery reply datagram. It returns nil - not an
// error - for anything that is not a well-formed reply: short packets,
// wrong version/opcode, or a TLV length overrunning the packet. A
// broadcast segment is noisy and discovery must shrug that noise off.
func ParseReply(b []byte, src net.Addr) *Record {
	if len(b) < headerLen {
		return nil
	}
	if b[0] != versionByte || b[1] != opcodeDiscover {
		return nil
	}

	record := &Record{DiscoveredAt: time.Now()}
	if udpAddr, ok := src.(*net.UDPAddr); ok {
		record.Addr = udpAddr.IP
	}

	i := headerLen
	for i < len(b) {
		tlvType := b[i]
		i++

		// Bare MAC: fixed six bytes, no length field
		if tlvType == tlvMAC {
			if i+6 > len(b) {
				return nil
			}
			record.MAC = net.HardwareAddr(append([]byte(nil), b[i:i+6]...))
			i += 6
			continue
		}

		if i+2 > len(b) {
			return nil
		}
		length := int(binary.BigEndian.Uint16(b[i : i+2]))
		i += 2
		if i+length > len(b) {
			return nil
		}
		value := b[i : i+length]
		i += length

		switch tlvType {
		case tlvAddress:
			if length == 10 {
				record.MAC = net.HardwareAddr(append([]byte(nil), value[:6]...))
				record.IP = net.IP(append([]byte(nil), value[6:10]...))
			}
		case tlvFirmware:
			record.Firmware = string(value)
		case tlvUptime:
			if length == 4 {
				record.Uptime = time.Duration(binary.BigEndian.Uint32(value)) * time.Second
			}
		case tlvHostname:
			record.Hostname = string(value)
		case tlvModel:
			record.Model = string(value)
		case tlvSSID:
			record.SSID = string(value)
		case tlvFullModel:
			record.FullModel = string(value)
		default:
			// Unknown TLV types are skipped, not rejected; firmware adds
			// fields without bumping the protocol version.
		}
	}

	if record.MAC == nil {
		return nil
	}
	return record
}
