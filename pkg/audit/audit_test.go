package audit

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/netguy001/lockbox/pkg/metadata"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	dir := t.TempDir()
	l := NewLogger(dir, metadata.NewHealth())
	if err := l.SetKey(bytes.Repeat([]byte{0x42}, 32)); err != nil {
		t.Fatalf("SetKey() error = %v", err)
	}
	return l, dir
}

func TestRecordAndVerify(t *testing.T) {
	l, _ := newTestLogger(t)

	l.Success(OpVaultUnlock, "", "")
	l.Success(OpEntryAdd, "passwords", "a1b2c3d4e5f60718")
	l.Failure(OpVaultUnlockFailed, "invalid credentials")
	l.Success(OpVaultLock, "", "")

	result, err := l.Verify()
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !result.Valid {
		t.Fatalf("chain invalid: %v", result.Errors)
	}
	if result.Records != 4 {
		t.Errorf("Records = %d, want 4", result.Records)
	}

	events, err := l.Events(0)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[0].Chain.PrevHash != "genesis" {
		t.Errorf("first event prev = %q, want genesis", events[0].Chain.PrevHash)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Chain.PrevHash != events[i-1].Chain.HMAC {
			t.Errorf("event %d not chained to predecessor", i)
		}
		if events[i].Chain.Sequence != events[i-1].Chain.Sequence+1 {
			t.Errorf("event %d sequence not contiguous", i)
		}
	}
}

func TestEntryIDNeverStoredPlain(t *testing.T) {
	l, dir := newTestLogger(t)
	const entryID = "deadbeefcafe0123"
	l.Success(OpEntryAdd, "passwords", entryID)

	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one log file, got %v (err %v)", files, err)
	}
	raw, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), entryID) {
		t.Error("plaintext entry ID found in audit log")
	}

	events, err := l.Events(0)
	if err != nil {
		t.Fatal(err)
	}
	if events[0].EntryHMAC == "" {
		t.Error("entry HMAC missing from event")
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	l, dir := newTestLogger(t)
	l.Success(OpVaultUnlock, "", "")
	l.Success(OpVaultSave, "", "")

	files, _ := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	raw, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	tampered := bytes.Replace(raw, []byte(OpVaultSave), []byte(OpEntryDelete), 1)
	if bytes.Equal(raw, tampered) {
		t.Fatal("tampering substitution did not apply")
	}
	if err := os.WriteFile(files[0], tampered, 0o600); err != nil {
		t.Fatal(err)
	}

	result, err := l.Verify()
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Valid {
		t.Error("Verify() reported a tampered log as valid")
	}
}

func TestVerifyDetectsDeletedRecord(t *testing.T) {
	l, dir := newTestLogger(t)
	l.Success(OpVaultUnlock, "", "")
	l.Success(OpEntryAdd, "notes", "0011223344556677")
	l.Success(OpVaultLock, "", "")

	files, _ := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	raw, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	lines := bytes.SplitAfter(raw, []byte("\n"))
	// Drop the middle record.
	trimmed := append(append([]byte{}, lines[0]...), lines[2]...)
	if err := os.WriteFile(files[0], trimmed, 0o600); err != nil {
		t.Fatal(err)
	}

	result, err := l.Verify()
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Valid {
		t.Error("Verify() did not notice a deleted record")
	}
}

func TestChainSurvivesRestart(t *testing.T) {
	l1, dir := newTestLogger(t)
	l1.Success(OpVaultUnlock, "", "")
	l1.Success(OpVaultLock, "", "")

	l2 := NewLogger(dir, metadata.NewHealth())
	if err := l2.SetKey(bytes.Repeat([]byte{0x42}, 32)); err != nil {
		t.Fatal(err)
	}
	l2.Success(OpVaultUnlock, "", "")

	result, err := l2.Verify()
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !result.Valid {
		t.Fatalf("chain broken across restart: %v", result.Errors)
	}
	if result.Records != 3 {
		t.Errorf("Records = %d, want 3", result.Records)
	}
}

func TestRecordWithoutKeyIsNoop(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir, metadata.NewHealth())
	l.Success(OpVaultUnlock, "", "")

	files, _ := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if len(files) != 0 {
		t.Error("logger without a key wrote to disk")
	}
}

func TestRecordDisablesOnWriteFailure(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root, cannot provoke permission errors")
	}
	dir := t.TempDir()
	sub := filepath.Join(dir, "audit")
	health := metadata.NewHealth()
	l := NewLogger(sub, health)
	if err := l.SetKey(bytes.Repeat([]byte{7}, 32)); err != nil {
		t.Fatal(err)
	}

	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0o700)

	l.Success(OpVaultUnlock, "", "")
	if health.IsEnabled(metadata.FeatureAudit) {
		t.Error("audit feature still enabled after write failure")
	}
}
