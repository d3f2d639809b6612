package integrity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/netguy001/lockbox/pkg/metadata"
	"github.com/netguy001/lockbox/pkg/store"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := store.Write(path, []byte(contents)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

// TestRefreshAndCheck covers the clean and tampered paths
func TestRefreshAndCheck(t *testing.T) {
	dir := t.TempDir()
	vaultPath := filepath.Join(dir, "lockbox.vault")
	recoveryPath := filepath.Join(dir, ".recovery")
	writeFile(t, vaultPath, "vault contents")
	writeFile(t, recoveryPath, "recovery contents")

	tracked := map[string]string{
		"vault":    vaultPath,
		"recovery": recoveryPath,
		"security": filepath.Join(dir, "security.json"), // does not exist
	}

	v := NewVerifier(filepath.Join(dir, SnapshotFileName), metadata.NewHealth())
	v.Refresh(tracked)

	if res := v.Check(tracked); res.Tampered {
		t.Errorf("Check() on untouched files = %+v, want clean", res)
	}

	// Out-of-band modification is flagged by name.
	writeFile(t, vaultPath, "tampered contents")
	res := v.Check(tracked)
	if !res.Tampered {
		t.Fatal("Check() after modification: Tampered = false")
	}
	if len(res.Changed) != 1 || res.Changed[0] != "vault" {
		t.Errorf("Changed = %v, want [vault]", res.Changed)
	}

	// A file that did not exist at snapshot time is never flagged.
	writeFile(t, tracked["security"], "new file")
	res = v.Check(tracked)
	for _, name := range res.Changed {
		if name == "security" {
			t.Error("file absent at snapshot time was flagged as changed")
		}
	}
}

// TestCheckWithoutSnapshot verifies first run is not tampering
func TestCheckWithoutSnapshot(t *testing.T) {
	dir := t.TempDir()
	v := NewVerifier(filepath.Join(dir, SnapshotFileName), metadata.NewHealth())
	if res := v.Check(map[string]string{"vault": filepath.Join(dir, "x")}); res.Tampered {
		t.Errorf("Check() without snapshot = %+v, want clean", res)
	}
}

// TestCorruptSnapshotIsAdvisory verifies a corrupt snapshot does not flag
func TestCorruptSnapshotIsAdvisory(t *testing.T) {
	dir := t.TempDir()
	snapPath := filepath.Join(dir, SnapshotFileName)
	writeFile(t, snapPath, "{corrupt")

	v := NewVerifier(snapPath, metadata.NewHealth())
	if res := v.Check(map[string]string{"vault": filepath.Join(dir, "x")}); res.Tampered {
		t.Errorf("Check() with corrupt snapshot = %+v, want clean", res)
	}
}

// TestRefreshDisablesOnWriteFailure verifies the degrade path: first failure
// disables the feature with one warning, later refreshes are skipped.
func TestRefreshDisablesOnWriteFailure(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	dir := t.TempDir()
	vaultPath := filepath.Join(dir, "lockbox.vault")
	writeFile(t, vaultPath, "vault contents")

	snapDir := filepath.Join(dir, "meta")
	if err := os.MkdirAll(snapDir, 0700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.Chmod(snapDir, 0500); err != nil {
		t.Fatalf("Chmod() error = %v", err)
	}
	defer os.Chmod(snapDir, 0700)

	health := metadata.NewHealth()
	v := NewVerifier(filepath.Join(snapDir, SnapshotFileName), health)
	tracked := map[string]string{"vault": vaultPath}

	v.Refresh(tracked)
	v.Refresh(tracked)

	if health.IsEnabled(metadata.FeatureIntegrity) {
		t.Error("integrity feature still enabled after write failure")
	}
	if warnings := health.Warnings(); len(warnings) != 1 {
		t.Errorf("warnings = %v, want exactly one", warnings)
	}
}
