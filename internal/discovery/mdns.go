package discovery

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/airosctl/internal/logging"
	"github.com/muurk/airosctl/internal/redact"
)

const (
	// mdnsServiceType is the mDNS service airOS web UIs show up under on
	// networks where the devices advertise at all
	mdnsServiceType = "_http._tcp"

	// mdnsServiceDomain is the mDNS domain
	mdnsServiceDomain = "local."
)

// hostnamePrefixes match the factory hostnames airOS devices ship with.
// Renamed devices won't match; the mDNS sweep is best-effort by nature.
var hostnamePrefixes = []string{
	"nanostation",
	"nanobeam",
	"powerbeam",
	"litebeam",
	"liteap",
	"rocket",
	"airgrid",
	"ubnt",
}

// Replaced in tests to run the sweep without multicast sockets.
var (
	newResolver = func() (*zeroconf.Resolver, error) {
		return zeroconf.NewResolver(nil)
	}
	browse = func(ctx context.Context, resolver *zeroconf.Resolver, entries chan *zeroconf.ServiceEntry) error {
		return resolver.Browse(ctx, mdnsServiceType, mdnsServiceDomain, entries)
	}
)

// MDNSSweep browses mDNS for airOS-looking HTTP services. It is a
// secondary discovery path for segments where the UDP broadcast probe is
// filtered (guest VLANs, some managed switches); records found this way
// carry only hostname and address, no firmware identity.
func MDNSSweep(ctx context.Context, window time.Duration) ([]*Record, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	resolver, err := newResolver()
	if err != nil {
		return nil, err
	}

	entries := make(chan *zeroconf.ServiceEntry)

	// Browse before starting the collector: zeroconf only closes the
	// entries channel when the browse itself was started, so a collector
	// ranging over it after a Browse error would never finish.
	if err := browse(ctx, resolver, entries); err != nil {
		return nil, err
	}

	var records []*Record
	seen := make(map[string]bool)

	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		for entry := range entries {
			record := recordFromServiceEntry(entry)
			if record == nil || seen[record.Addr.String()] {
				continue
			}
			seen[record.Addr.String()] = true
			records = append(records, record)
			logging.Debug("mdns device found",
				zap.Any("addr", redact.Value(record.Addr.String())))
		}
	}()

	<-ctx.Done()
	<-collectDone
	return records, nil
}

// recordFromServiceEntry converts an mDNS entry into a Record when it looks
// like an airOS device, nil otherwise.
func recordFromServiceEntry(entry *zeroconf.ServiceEntry) *Record {
	name := strings.ToLower(entry.Instance)
	matched := false
	for _, prefix := range hostnamePrefixes {
		if strings.HasPrefix(name, prefix) {
			matched = true
			break
		}
	}
	if !matched || len(entry.AddrIPv4) == 0 {
		return nil
	}

	return &Record{
		Addr:         entry.AddrIPv4[0],
		IP:           entry.AddrIPv4[0],
		MAC:          net.HardwareAddr{},
		Hostname:     strings.TrimSuffix(entry.HostName, "."),
		DiscoveredAt: time.Now(),
	}
}
