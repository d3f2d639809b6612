// Package audit provides an append-only event log with an HMAC chain for
// tamper detection.
//
// The chain key is derived from the vault key with HKDF-SHA256, so the log
// can only be written and verified while the vault is unlocked. Events are
// JSON lines in monthly files; each record carries the HMAC of its
// predecessor, making deletion or reordering detectable.
package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/netguy001/lockbox/pkg/metadata"
)

// Operation types.
const (
	OpVaultCreate       = "vault.create"
	OpVaultUnlock       = "vault.unlock"
	OpVaultUnlockFailed = "vault.unlock_failed"
	OpVaultLock         = "vault.lock"
	OpVaultSave         = "vault.save"

	OpEntryAdd    = "entry.add"
	OpEntryUpdate = "entry.update"
	OpEntryDelete = "entry.delete"

	OpPasswordChange  = "password.change"
	OpRecoveryUnlock  = "recovery.unlock"
	OpBackupCreate    = "backup.create"
	OpBackupRestore   = "backup.restore"
	OpLockoutTripped  = "lockout.tripped"
	OpIntegrityTamper = "integrity.tamper"
)

// Result values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultDenied  = "denied"
)

const (
	// genesisHash seeds the chain before any event is written.
	genesisHash = "genesis"

	// stateFileName persists the chain tail between processes.
	stateFileName = "audit.meta"
)

// Event is one audit record.
type Event struct {
	Version   int    `json:"v"`
	ID        string `json:"id"`
	Timestamp string `json:"ts"`
	Operation string `json:"op"`
	Category  string `json:"category,omitempty"`
	EntryHMAC string `json:"entry_hmac,omitempty"`
	SessionID string `json:"session"`
	Result    string `json:"result"`
	Detail    string `json:"detail,omitempty"`
	Chain     Chain  `json:"chain"`
}

// Chain links an event to its predecessor.
type Chain struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
	HMAC     string `json:"hmac"`
}

// chainState is the persisted chain tail.
type chainState struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
}

// VerifyResult reports the outcome of a full-chain verification.
type VerifyResult struct {
	Valid   bool
	Records int
	Errors  []string
}

// Logger writes HMAC-chained audit events. All methods are best-effort:
// failures disable the audit feature for the process rather than blocking
// the vault operation that triggered the event.
type Logger struct {
	dir       string
	health    *metadata.Health
	sessionID string

	mu       sync.Mutex
	key      []byte
	sequence int64
	prevHash string
}

// NewLogger returns a logger writing to dir. It records nothing until
// SetKey is called with the vault key.
func NewLogger(dir string, health *metadata.Health) *Logger {
	return &Logger{
		dir:       dir,
		health:    health,
		sessionID: uuid.NewString(),
		prevHash:  genesisHash,
	}
}

// SetKey derives the chain HMAC key from the vault key and loads the
// persisted chain tail. Call it on unlock; Clear on lock.
func (l *Logger) SetKey(vaultKey []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := hkdf.New(sha256.New, vaultKey, nil, []byte("lockbox-audit-v1"))
	l.key = make([]byte, 32)
	if _, err := r.Read(l.key); err != nil {
		l.key = nil
		return fmt.Errorf("audit: failed to derive chain key: %w", err)
	}

	if err := l.loadState(); err != nil {
		// First run or missing state file; start a fresh chain.
		l.sequence = 0
		l.prevHash = genesisHash
	}
	return nil
}

// Clear forgets the chain key. Subsequent Record calls are silent no-ops.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.key {
		l.key[i] = 0
	}
	l.key = nil
}

// Record appends an event. category and entryID identify the affected
// entry; entryID is HMACed before it touches disk so the log leaks no
// identifiers. Record never returns an error: on failure the audit feature
// is disabled through the health registry.
func (l *Logger) Record(op, result, category, entryID, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.key == nil || !l.health.IsEnabled(metadata.FeatureAudit) {
		return
	}

	event := Event{
		Version:   1,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Operation: op,
		Category:  category,
		SessionID: l.sessionID,
		Result:    result,
		Detail:    detail,
	}
	if entryID != "" {
		mac := hmac.New(sha256.New, l.key)
		mac.Write([]byte(entryID))
		event.EntryHMAC = hex.EncodeToString(mac.Sum(nil))
	}

	l.sequence++
	event.Chain.Sequence = l.sequence
	event.Chain.PrevHash = l.prevHash
	event.Chain.HMAC = l.eventHMAC(&event)
	l.prevHash = event.Chain.HMAC

	if err := l.append(&event); err != nil {
		l.health.Disable(metadata.FeatureAudit,
			fmt.Sprintf("could not write audit log: %v", err))
		return
	}
	if err := l.saveState(); err != nil {
		l.health.Disable(metadata.FeatureAudit,
			fmt.Sprintf("could not persist audit chain state: %v", err))
	}
}

// Success records a successful operation.
func (l *Logger) Success(op, category, entryID string) {
	l.Record(op, ResultSuccess, category, entryID, "")
}

// Failure records a failed operation with a short reason.
func (l *Logger) Failure(op, detail string) {
	l.Record(op, ResultError, "", "", detail)
}

// Verify walks every log file in order and checks sequence continuity,
// chain linkage, and per-record HMACs.
func (l *Logger) Verify() (*VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.key == nil {
		return nil, fmt.Errorf("audit: chain key not set")
	}

	result := &VerifyResult{Valid: true}
	files, err := l.logFiles()
	if err != nil {
		return nil, err
	}

	expectedPrev := genesisHash
	var expectedSeq int64 = 1
	for _, file := range files {
		events, err := readLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to read %s: %w", file, err)
		}
		for i := range events {
			event := &events[i]
			result.Records++

			if event.Chain.Sequence != expectedSeq {
				result.Valid = false
				result.Errors = append(result.Errors, fmt.Sprintf(
					"sequence gap at %s: expected %d, got %d",
					event.ID, expectedSeq, event.Chain.Sequence))
			}
			if event.Chain.PrevHash != expectedPrev {
				result.Valid = false
				result.Errors = append(result.Errors, fmt.Sprintf(
					"chain broken at %s", event.ID))
			}
			if event.Chain.HMAC != l.eventHMAC(event) {
				result.Valid = false
				result.Errors = append(result.Errors, fmt.Sprintf(
					"HMAC mismatch at %s: possible tampering", event.ID))
			}

			expectedPrev = event.Chain.HMAC
			expectedSeq++
		}
	}
	return result, nil
}

// Events returns up to limit most recent events, oldest first. limit <= 0
// returns everything.
func (l *Logger) Events(limit int) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := l.logFiles()
	if err != nil {
		return nil, err
	}
	var all []Event
	for _, file := range files {
		events, err := readLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to read %s: %w", file, err)
		}
		all = append(all, events...)
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (l *Logger) eventHMAC(event *Event) string {
	data := fmt.Sprintf("%d|%s|%s|%s|%s|%s|%s|%s|%d|%s",
		event.Version,
		event.ID,
		event.Timestamp,
		event.Operation,
		event.Category,
		event.EntryHMAC,
		event.SessionID,
		event.Result,
		event.Chain.Sequence,
		event.Chain.PrevHash,
	)
	mac := hmac.New(sha256.New, l.key)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func (l *Logger) append(event *Event) error {
	if err := os.MkdirAll(l.dir, 0o700); err != nil {
		return err
	}
	name := time.Now().UTC().Format("2006-01") + ".jsonl"
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

func (l *Logger) logFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(l.dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("audit: failed to list log files: %w", err)
	}
	// YYYY-MM names sort chronologically.
	sort.Strings(files)
	return files, nil
}

func (l *Logger) loadState() error {
	data, err := os.ReadFile(filepath.Join(l.dir, stateFileName))
	if err != nil {
		return err
	}
	var state chainState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	l.sequence = state.Sequence
	l.prevHash = state.PrevHash
	return nil
}

func (l *Logger) saveState() error {
	data, err := json.Marshal(chainState{Sequence: l.sequence, PrevHash: l.prevHash})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(l.dir, stateFileName), data, 0o600)
}

func readLogFile(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var events []Event
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			if i > start {
				var event Event
				if err := json.Unmarshal(data[start:i], &event); err != nil {
					return nil, fmt.Errorf("failed to parse record: %w", err)
				}
				events = append(events, event)
			}
			start = i + 1
		}
	}
	return events, nil
}
