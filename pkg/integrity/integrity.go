// Package integrity provides advisory tamper detection for vault files.
//
// After every successful save a SHA-256 snapshot of the tracked files is
// persisted; on the next load the snapshot is compared against the current
// file contents to flag out-of-band modification. Findings are surfaced as
// warnings only: unlock proceeds regardless, and a missing snapshot (first
// run) is not tampering.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/netguy001/lockbox/pkg/metadata"
	"github.com/netguy001/lockbox/pkg/store"
)

// SnapshotFileName is the integrity snapshot sidecar.
const SnapshotFileName = ".integrity"

// Result reports the outcome of a tamper check.
type Result struct {
	Tampered bool
	Changed  []string // tracked names whose hashes differ
}

// Verifier persists and checks hash snapshots of a fixed set of tracked
// files.
type Verifier struct {
	path   string
	health *metadata.Health
}

// NewVerifier returns a verifier persisting its snapshot at path.
func NewVerifier(path string, health *metadata.Health) *Verifier {
	return &Verifier{path: path, health: health}
}

// Refresh recomputes hashes over the tracked files (name -> path) and
// atomically persists the snapshot. Missing tracked files hash to the empty
// string. Skipped entirely when the integrity feature is disabled; a write
// failure disables it instead of propagating.
func (v *Verifier) Refresh(tracked map[string]string) {
	if !v.health.IsEnabled(metadata.FeatureIntegrity) {
		return
	}

	snapshot := make(map[string]string, len(tracked))
	for name, path := range tracked {
		hash, err := hashFile(path)
		if err != nil {
			v.health.Disable(metadata.FeatureIntegrity,
				fmt.Sprintf("could not hash %s for integrity snapshot: %v", name, err))
			return
		}
		snapshot[name+"_hash"] = hash
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		v.health.Disable(metadata.FeatureIntegrity,
			fmt.Sprintf("could not encode integrity snapshot: %v", err))
		return
	}
	if err := store.Write(v.path, data); err != nil {
		v.health.Disable(metadata.FeatureIntegrity,
			fmt.Sprintf("could not write integrity snapshot: %v", err))
	}
}

// Check recomputes hashes and compares them with the last snapshot. A hash
// recorded as empty (the file did not exist at snapshot time) is never
// flagged, nor is a missing or unreadable snapshot.
func (v *Verifier) Check(tracked map[string]string) Result {
	data, err := store.Read(v.path)
	if err != nil {
		return Result{}
	}
	var snapshot map[string]string
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Result{}
	}

	var changed []string
	for name, path := range tracked {
		stored, ok := snapshot[name+"_hash"]
		if !ok || stored == "" {
			continue
		}
		current, err := hashFile(path)
		if err != nil || current != stored {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return Result{Tampered: len(changed) > 0, Changed: changed}
}

// hashFile returns the hex SHA-256 of a file, or "" if it does not exist.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
