// Package metadata tracks the health of best-effort metadata features.
//
// The vault's integrity hashes, recovery record, and lockout state are
// optional: if one of their files becomes unwritable (read-only filesystem,
// permission loss), the corresponding feature is disabled for the rest of
// the process instead of failing the primary vault operation. A fresh
// process re-evaluates from scratch on its next write attempt.
package metadata

import (
	"fmt"
	"os"
	"sync"
)

// Feature names tracked by the health registry.
const (
	FeatureIntegrity = "integrity"
	FeatureRecovery  = "recovery"
	FeatureSecurity  = "security"
	FeatureAudit     = "audit"
)

// Health is a per-feature enable/disable registry. Construct one per process
// with NewHealth and pass it explicitly to the components that write
// optional metadata; there is no package-level singleton.
type Health struct {
	mu       sync.Mutex
	disabled map[string]string // feature -> reason
	warnings []string
}

// NewHealth returns a registry with all features enabled.
func NewHealth() *Health {
	return &Health{disabled: make(map[string]string)}
}

// IsEnabled reports whether a feature is still active. Unknown features are
// treated as enabled.
func (h *Health) IsEnabled(feature string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, off := h.disabled[feature]
	return !off
}

// Disable turns a feature off for the remainder of the process. The first
// call records the reason and emits exactly one warning to stderr; repeat
// calls for the same feature are no-ops. Features never silently re-enable.
func (h *Health) Disable(feature, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, off := h.disabled[feature]; off {
		return
	}
	if reason == "" {
		reason = fmt.Sprintf("metadata feature %q disabled due to write failure", feature)
	}
	h.disabled[feature] = reason
	h.warnings = append(h.warnings, reason)
	fmt.Fprintf(os.Stderr, "warning: %s\n", reason)
}

// Warnings returns a copy of the one-time warnings recorded so far.
func (h *Health) Warnings() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.warnings))
	copy(out, h.warnings)
	return out
}
