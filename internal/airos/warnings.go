package airos

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/airosctl/internal/logging"
)

// WarningCache tracks which normalization warnings have already been logged
// for one session, so a quirk in a payload polled every few seconds does not
// flood the log. The cache lives on the client instance, never in package
// state: two clients talking to two devices must not suppress each other's
// warnings. A new login clears it.
type WarningCache struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewWarningCache creates an empty warning cache
func NewWarningCache() *WarningCache {
	return &WarningCache{seen: make(map[string]struct{})}
}

// Reset clears the cache. Called when a new session is established.
func (w *WarningCache) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen = make(map[string]struct{})
}

// Len returns the number of distinct warnings recorded
func (w *WarningCache) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

// once records the key and reports whether it was seen for the first time
func (w *WarningCache) once(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[key]; ok {
		return false
	}
	w.seen[key] = struct{}{}
	return true
}

// warnOnce logs a warning keyed by (field, raw value), at most once per
// session. The raw value must not contain sensitive data; enum tokens and
// model names are fine, addresses are not.
func (w *WarningCache) warnOnce(field, raw, msg string) {
	if w == nil {
		return
	}
	if w.once(fmt.Sprintf("%s:%s", field, raw)) {
		logging.Warn(msg,
			zap.String("field", field),
			zap.String("value", raw),
		)
	}
}
