// Package discovery enumerates airOS devices on the local network segment.
//
// The primary path is the vendor's UDP discovery protocol: a small probe
// datagram broadcast to port 10001, answered by each device with a unicast
// TLV reply carrying its MAC, address, hostname, model, firmware version
// and uptime.
//
// # Wire format
//
// Replies start with a 6-byte header (version 0x01, opcode 0x06, four
// reserved bytes) followed by TLVs. TLV type 0x06 is a bare 6-byte MAC
// with no length field; every other TLV is type byte, 2-byte big-endian
// length, value. Unknown TLV types are skipped.
//
// # Resilience
//
// Discovery is a best-effort scatter/gather. The probe is re-broadcast a
// couple of times across a bounded listening window, replies are collected
// until the window closes, and duplicates from the same source address are
// deduplicated. Malformed or foreign datagrams - broadcast segments are
// noisy - parse to nil and are dropped without ending the round. Zero
// results from a Scan is a valid outcome; only Locate, which probes for
// one specific device, treats an empty window as an error.
//
// # mDNS sweep
//
// MDNSSweep is a secondary best-effort path for segments that filter UDP
// broadcast: it browses mDNS HTTP services and keeps entries whose
// hostnames look like airOS factory names. It yields address and hostname
// only; the UDP protocol remains the authoritative source of device
// identity.
package discovery
