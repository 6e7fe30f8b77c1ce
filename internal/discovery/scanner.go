package discovery

import (
	"context"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/airosctl/internal/airos"
	"github.com/muurk/airosctl/internal/logging"
	"github.com/muurk/airosctl/internal/redact"
)

const (
	// DefaultWindow is the default listening window for a discovery round
	DefaultWindow = 3 * time.Second

	// DefaultRetries is how many times the probe is re-broadcast within
	// the window. Broadcast is lossy; a couple of extra probes cost
	// nothing and catch devices that missed the first one.
	DefaultRetries = 2

	// DefaultBroadcastAddr is the probe destination
	DefaultBroadcastAddr = "255.255.255.255"
)

// Scanner performs UDP broadcast discovery of airOS devices
type Scanner struct {
	// Port is the discovery port (default 10001)
	Port int

	// Window is the listening window per discovery round
	Window time.Duration

	// Retries is the number of additional probe broadcasts in the window
	Retries int

	// BroadcastAddr is the probe destination address
	BroadcastAddr string
}

// NewScanner creates a scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Port:          Port,
		Window:        DefaultWindow,
		Retries:       DefaultRetries,
		BroadcastAddr: DefaultBroadcastAddr,
	}
}

// collector gathers valid replies and deduplicates them by source address.
// N replies from one device within a window produce exactly one record.
type collector struct {
	seen  map[string]*Record
	order []string
}

func newCollector() *collector {
	return &collector{seen: make(map[string]*Record)}
}

// add parses one datagram and records it. The returned record is non-nil
// only for the first valid reply from a given source address.
func (c *collector) add(b []byte, src net.Addr) *Record {
	record := ParseReply(b, src)
	if record == nil {
		return nil
	}
	key := record.Addr.String()
	if _, ok := c.seen[key]; ok {
		return nil
	}
	c.seen[key] = record
	c.order = append(c.order, key)
	return record
}

// records returns the collected records in arrival order
func (c *collector) records() []*Record {
	out := make([]*Record, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.seen[key])
	}
	return out
}

// Scan broadcasts the discovery probe and collects replies for the
// listening window. The result is the set of distinct responding devices;
// an empty result is not an error. Malformed datagrams on the segment are
// dropped silently and do not end the round.
func (s *Scanner) Scan(ctx context.Context) ([]*Record, error) {
	return s.scan(ctx, nil)
}

// Locate probes for one specific device, identified by IP address or
// (case-insensitive) MAC address, and returns as soon as it replies. Unlike
// Scan, getting no valid reply within the window is an error here:
// KindDiscoveryTimeout.
func (s *Scanner) Locate(ctx context.Context, target string) (*Record, error) {
	match := func(r *Record) bool {
		if r.Addr != nil && r.Addr.String() == target {
			return true
		}
		return strings.EqualFold(r.MAC.String(), target)
	}

	var found *Record
	_, err := s.scan(ctx, func(r *Record) bool {
		if match(r) {
			found = r
			return true
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, airos.NewDiscoveryTimeoutError(target)
	}
	return found, nil
}

// scan runs one discovery round. If stop is non-nil it is called for every
// newly collected record and ends the round early when it returns true.
func (s *Scanner) scan(ctx context.Context, stop func(*Record) bool) ([]*Record, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, airos.ClassifyTransportError(err, s.BroadcastAddr)
	}
	defer func() { _ = conn.Close() }()

	dest := &net.UDPAddr{IP: net.ParseIP(s.BroadcastAddr), Port: s.Port}
	probe := BuildProbe()

	window := s.Window
	if window <= 0 {
		window = DefaultWindow
	}
	deadline := time.Now().Add(window)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	if _, err := conn.WriteTo(probe, dest); err != nil {
		return nil, airos.ClassifyTransportError(err, s.BroadcastAddr)
	}
	logging.LogDatagram("discovery probe sent", dest.String(), probe)

	// Re-broadcast the probe spread across the window
	retries := s.Retries
	if retries > 0 {
		interval := window / time.Duration(retries+1)
		go func() {
			for i := 0; i < retries; i++ {
				select {
				case <-time.After(interval):
					_, _ = conn.WriteTo(probe, dest)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Unblock the read loop on cancellation
	stopCancel := make(chan struct{})
	defer close(stopCancel)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-stopCancel:
		}
	}()

	found := newCollector()
	buf := make([]byte, 2048)
	// The window deadline is armed once; re-arming per iteration would
	// overwrite the immediate deadline the cancellation watcher sets.
	// A failed arm falls through to ReadFrom, which then errors and ends
	// the round.
	_ = conn.SetReadDeadline(deadline)
	for {
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			// Window elapsed (or ctx cancelled); the round is over
			break
		}
		// Reply contents are not dumped: the datagram carries the device's
		// MAC, SSID and hostname in the clear.
		logging.Debug("discovery reply received", zap.Int("length", n))

		record := found.add(append([]byte(nil), buf[:n]...), src)
		if record == nil {
			continue
		}
		logging.Info("device discovered",
			zap.Any("addr", redact.Value(record.Addr.String())),
			zap.String("model", record.Model),
			zap.String("firmware", record.Firmware))
		if stop != nil && stop(record) {
			break
		}
	}

	if ctx.Err() != nil && len(found.records()) == 0 {
		return nil, airos.ClassifyTransportError(ctx.Err(), s.BroadcastAddr)
	}
	return found.records(), nil
}
