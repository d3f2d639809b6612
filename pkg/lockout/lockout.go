// Package lockout implements the brute-force guard for vault unlocks.
//
// The guard is a small state machine over {failed_attempts, lockout_until}:
// five consecutive failures lock the vault for thirty minutes, a success
// resets everything, and expiry is evaluated lazily on every gate check
// rather than by a background timer.
//
// Persistence is deliberately forgiving. If the primary state file becomes
// unwritable the guard falls back to a per-identity alternate file, and if
// that fails too it keeps operating in memory for the current process. An
// I/O error must never lock the user out of their own vault.
package lockout

import (
	"encoding/json"
	"fmt"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	"github.com/netguy001/lockbox/pkg/metadata"
	"github.com/netguy001/lockbox/pkg/store"
)

const (
	// Threshold is the number of failed attempts that triggers a lockout.
	Threshold = 5

	// Duration is how long a lockout lasts.
	Duration = 30 * time.Minute

	// StateFileName is the primary lockout state file.
	StateFileName = "security.json"
)

// State is the persisted lockout record.
type State struct {
	FailedAttempts int        `json:"failed_attempts"`
	LockoutUntil   *time.Time `json:"lockout_until"`
}

// LockedOutError reports an active lockout to the caller.
type LockedOutError struct {
	Until time.Time
}

// Minutes returns the remaining lockout time rounded up to whole minutes.
func (e *LockedOutError) Minutes() int {
	remaining := time.Until(e.Until)
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Minute - 1) / time.Minute)
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("lockout: too many failed attempts, try again in %d minutes", e.Minutes())
}

// Guard gates unlock attempts for one vault directory.
type Guard struct {
	path     string
	fallback string
	health   *metadata.Health

	mu  sync.Mutex
	mem *State // authoritative once persistence has degraded

	now func() time.Time
}

// NewGuard returns a guard storing state under dir. The health registry
// controls whether persistence is still attempted after a write failure.
func NewGuard(dir string, health *metadata.Health) *Guard {
	return &Guard{
		path:     filepath.Join(dir, StateFileName),
		fallback: filepath.Join(dir, fmt.Sprintf("security-%s.json", identity())),
		health:   health,
		now:      time.Now,
	}
}

// identity names the current user for the fallback file, preferring the
// stable numeric uid over the username.
func identity() string {
	if u, err := user.Current(); err == nil {
		if u.Uid != "" {
			return u.Uid
		}
		if u.Username != "" {
			return u.Username
		}
	}
	return "local"
}

// Check gates an unlock attempt. It returns a *LockedOutError while a
// lockout is active; an expired lockout is cleared on the spot and the
// attempt proceeds.
func (g *Guard) Check() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	state := g.load()
	if state.LockoutUntil == nil {
		return nil
	}
	if g.now().Before(*state.LockoutUntil) {
		return &LockedOutError{Until: *state.LockoutUntil}
	}

	// Lockout expired: back to Open with counters cleared.
	g.save(&State{})
	return nil
}

// RecordFailure counts a failed unlock and returns the attempts remaining
// before lockout. Reaching the threshold starts the lockout clock; further
// failures while locked do not extend it.
func (g *Guard) RecordFailure() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	state := g.load()
	if state.LockoutUntil != nil && g.now().Before(*state.LockoutUntil) {
		return 0
	}

	state.FailedAttempts++
	if state.FailedAttempts >= Threshold && state.LockoutUntil == nil {
		until := g.now().Add(Duration)
		state.LockoutUntil = &until
	}
	g.save(state)

	remaining := Threshold - state.FailedAttempts
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// RecordSuccess resets the guard to the Open state.
func (g *Guard) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.save(&State{})
}

// Snapshot returns the current state for display purposes.
func (g *Guard) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return *g.load()
}

// load returns the current state. Once persistence has degraded the
// in-memory copy is authoritative; otherwise the primary file is read with
// the fallback file as a second chance. A corrupt file resets the state
// rather than wedging the guard.
func (g *Guard) load() *State {
	if g.mem != nil {
		return g.mem
	}
	for _, path := range []string{g.path, g.fallback} {
		data, err := store.Read(path)
		if err != nil {
			continue
		}
		var state State
		if err := json.Unmarshal(data, &state); err != nil {
			continue
		}
		return &state
	}
	return &State{}
}

// save persists state, degrading from the primary file to the fallback file
// to memory-only. The first full failure disables the security feature and
// emits its one-time warning through the health registry.
func (g *Guard) save(state *State) {
	if g.mem != nil || !g.health.IsEnabled(metadata.FeatureSecurity) {
		g.mem = state
		return
	}

	data, err := json.Marshal(state)
	if err != nil {
		g.mem = state
		g.health.Disable(metadata.FeatureSecurity, fmt.Sprintf("could not encode lockout state: %v", err))
		return
	}

	if err := store.Write(g.path, data); err == nil {
		return
	}
	if err := store.Write(g.fallback, data); err == nil {
		return
	}

	g.mem = state
	g.health.Disable(metadata.FeatureSecurity,
		"could not write lockout state, tracking attempts in memory for this session")
}
