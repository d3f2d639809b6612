// Package vault implements the encrypted vault: an AES-256-GCM blob keyed
// from the master password with Argon2id, unlockable alternatively through
// a 24-word recovery phrase, guarded by a brute-force lockout and tracked
// by advisory integrity hashes.
//
// On-disk layout of the vault file: salt(16) || nonce(12) || ciphertext ||
// tag(16). The salt is fixed at creation and only changes on master
// password rotation, which re-encrypts under a fresh salt and key.
package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/netguy001/lockbox/pkg/audit"
	"github.com/netguy001/lockbox/pkg/crypto"
	"github.com/netguy001/lockbox/pkg/integrity"
	"github.com/netguy001/lockbox/pkg/lockout"
	"github.com/netguy001/lockbox/pkg/metadata"
	"github.com/netguy001/lockbox/pkg/recovery"
	"github.com/netguy001/lockbox/pkg/store"
)

const (
	// VaultFileName is the encrypted vault file inside the data directory.
	VaultFileName = "lockbox.vault"

	// lockFileName is the sidecar flock target enforcing single ownership.
	lockFileName = ".lockbox.lock"

	// AutoBackupPrefix names the rotating backups written on every save.
	AutoBackupPrefix = "auto_backup"

	// ManualBackupPrefix names user-requested backups, which are never
	// pruned automatically.
	ManualBackupPrefix = "lockbox_backup"

	// preRestorePrefix names the safety snapshot taken before a restore.
	preRestorePrefix = "pre_restore"

	// DefaultBackupRetention is how many automatic backups are kept.
	DefaultBackupRetention = 5

	// minVaultSize is salt + nonce + tag; anything shorter cannot be a
	// valid vault file.
	minVaultSize = crypto.SaltLength + crypto.NonceLength + crypto.TagLength
)

// Sentinel errors.
var (
	ErrVaultLocked      = errors.New("vault: vault is locked")
	ErrVaultUnlocked    = errors.New("vault: vault is already unlocked")
	ErrVaultNotFound    = errors.New("vault: vault file not found")
	ErrCorruptVault     = errors.New("vault: vault file is corrupted")
	ErrInvalidPassword  = errors.New("vault: current password is incorrect")
	ErrInvalidPhrase    = errors.New("vault: recovery phrase does not match this vault")
	ErrNoRecoveryRecord = errors.New("vault: no recovery phrase set for this vault")
	ErrEntryNotFound    = errors.New("vault: entry not found")
)

// InvalidCredentialsError reports a failed password unlock together with
// the attempts remaining before lockout.
type InvalidCredentialsError struct {
	AttemptsRemaining int
}

func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("vault: invalid credentials (%d attempts remaining)", e.AttemptsRemaining)
}

// Options configures a Controller.
type Options struct {
	// Dir is the data directory holding the vault file and its metadata.
	Dir string
	// BackupDir overrides the default Dir/backups location.
	BackupDir string
	// BackupRetention overrides DefaultBackupRetention for automatic
	// backups.
	BackupRetention int
}

// UnlockResult reports the outcome of a successful unlock.
type UnlockResult struct {
	// Created is true when the unlock performed first-run vault creation.
	Created bool
	// RecoveryPhrase holds the freshly generated 24-word phrase on
	// creation; empty otherwise. The caller must show it exactly once.
	RecoveryPhrase string
	// TamperedFiles lists tracked files whose hashes changed out-of-band
	// since the last save. Advisory only; the unlock proceeded.
	TamperedFiles []string
}

// Controller orchestrates unlock, lock, save, and entry operations on one
// vault. All methods are safe for concurrent use; writes to the vault file
// are serialized by the controller's mutex.
type Controller struct {
	mu sync.Mutex

	dir       string
	vaultPath string
	backupDir string
	retention int

	health   *metadata.Health
	guard    *lockout.Guard
	recovery *recovery.System
	verifier *integrity.Verifier
	auditLog *audit.Logger

	flock    *store.FileLock
	key      *memguard.Enclave
	salt     []byte
	doc      *Document
	unlocked bool

	// phrase holds the normalized recovery phrase for sessions where it
	// passed through our hands (creation, recovery unlock), so a password
	// rotation can re-wrap the new vault key under the same phrase.
	phrase *memguard.Enclave

	// restoredFrom remembers a completed restore until the next unlock can
	// write it to the audit chain.
	restoredFrom string
}

// New returns a controller for the vault in opts.Dir. Nothing is read or
// created until the first unlock.
func New(opts Options) *Controller {
	backupDir := opts.BackupDir
	if backupDir == "" {
		backupDir = filepath.Join(opts.Dir, "backups")
	}
	retention := opts.BackupRetention
	if retention <= 0 {
		retention = DefaultBackupRetention
	}

	health := metadata.NewHealth()
	return &Controller{
		dir:       opts.Dir,
		vaultPath: filepath.Join(opts.Dir, VaultFileName),
		backupDir: backupDir,
		retention: retention,
		health:    health,
		guard:     lockout.NewGuard(opts.Dir, health),
		recovery:  recovery.NewSystem(opts.Dir, health),
		verifier:  integrity.NewVerifier(filepath.Join(opts.Dir, integrity.SnapshotFileName), health),
		auditLog:  audit.NewLogger(filepath.Join(opts.Dir, "audit"), health),
	}
}

// Path returns the vault file location.
func (c *Controller) Path() string { return c.vaultPath }

// IsUnlocked reports whether the vault is currently open.
func (c *Controller) IsUnlocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unlocked
}

// Warnings returns the one-time degradation warnings collected so far.
func (c *Controller) Warnings() []string {
	return c.health.Warnings()
}

// Unlock opens the vault with the master password. A missing or empty
// vault file triggers first-run creation: a fresh salt and key, an empty
// document, and a generated recovery phrase returned in the result.
//
// Key derivation is deliberately expensive (hundreds of milliseconds);
// interactive callers should run Unlock off their UI thread.
func (c *Controller) Unlock(password string) (*UnlockResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unlocked {
		return nil, ErrVaultUnlocked
	}
	// Snapshot before the gate: Check clears an expired lockout, and the
	// pre-unlock counters feed the audit flush below.
	prior := c.guard.Snapshot()
	if err := c.guard.Check(); err != nil {
		return nil, err
	}

	data, err := store.Read(c.vaultPath)
	switch {
	case errors.Is(err, store.ErrNotFound), err == nil && len(data) == 0:
		return c.createLocked(password)
	case err != nil:
		return nil, err
	}

	result := &UnlockResult{}
	if check := c.verifier.Check(c.trackedFiles()); check.Tampered {
		result.TamperedFiles = check.Changed
		for _, name := range check.Changed {
			fmt.Fprintf(os.Stderr, "warning: %s file changed outside of lockbox\n", name)
		}
	}

	if len(data) < minVaultSize {
		return nil, ErrCorruptVault
	}
	salt := data[:crypto.SaltLength]
	blob := data[crypto.SaltLength:]

	key, err := crypto.DeriveKey([]byte(password), salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := crypto.Decrypt(key, blob)
	if err != nil {
		crypto.SecureWipe(key)
		return nil, c.failedAttemptLocked()
	}
	doc, err := DecodeDocument(plaintext)
	crypto.SecureWipe(plaintext)
	if err != nil {
		crypto.SecureWipe(key)
		return nil, fmt.Errorf("%w: %v", ErrCorruptVault, err)
	}

	if err := c.finishUnlockLocked(key, salt, doc); err != nil {
		return nil, err
	}
	c.flushPendingAuditLocked(prior)
	if len(result.TamperedFiles) > 0 {
		c.auditLog.Failure(audit.OpIntegrityTamper, strings.Join(result.TamperedFiles, ", "))
	}
	c.auditLog.Success(audit.OpVaultUnlock, "", "")
	return result, nil
}

// createLocked performs first-run account creation. Caller holds c.mu.
func (c *Controller) createLocked(password string) (*UnlockResult, error) {
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	key, err := crypto.DeriveKey([]byte(password), salt)
	if err != nil {
		return nil, err
	}
	phrase, err := recovery.GeneratePhrase()
	if err != nil {
		crypto.SecureWipe(key)
		return nil, err
	}

	doc := NewDocument()
	if err := c.writeVaultLocked(key, salt, doc); err != nil {
		crypto.SecureWipe(key)
		return nil, err
	}
	// Bind the phrase to this key so it can unlock independently of the
	// master password.
	c.recovery.SaveRecord(phrase, key)

	if err := c.finishUnlockLocked(key, salt, doc); err != nil {
		return nil, err
	}
	c.phrase = memguard.NewEnclave([]byte(recovery.Normalize(phrase)))
	c.verifier.Refresh(c.trackedFiles())
	c.auditLog.Success(audit.OpVaultCreate, "", "")
	return &UnlockResult{Created: true, RecoveryPhrase: phrase}, nil
}

// UnlockWithRecovery opens the vault with the 24-word recovery phrase.
// Records that carry a wrapped vault key (version 2) unwrap it directly;
// older records fall back to deriving a key from the phrase against the
// vault's own salt. A successful fallback unlock backfills the wrapped key
// so the next recovery does not depend on the salt.
func (c *Controller) UnlockWithRecovery(phrase string) (*UnlockResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unlocked {
		return nil, ErrVaultUnlocked
	}
	if err := recovery.ValidateFormat(phrase); err != nil {
		return nil, err
	}
	if !c.recovery.HasRecord() {
		return nil, ErrNoRecoveryRecord
	}

	data, err := store.Read(c.vaultPath)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVaultNotFound
		}
		return nil, err
	}
	if len(data) < minVaultSize {
		return nil, ErrCorruptVault
	}
	salt := data[:crypto.SaltLength]
	blob := data[crypto.SaltLength:]

	// Preferred path: unwrap the stored vault key. A wrong phrase fails
	// inside the AEAD and surfaces as nil, indistinguishable from a record
	// with no wrapped key.
	key := c.recovery.RetrieveVaultKey(phrase)
	usedWrapped := key != nil

	var plaintext []byte
	if key != nil {
		plaintext, err = crypto.Decrypt(key, blob)
		if err != nil {
			// Stale wrapped key (e.g. from before a password change); try
			// the salt-bound fallback below.
			crypto.SecureWipe(key)
			key = nil
			usedWrapped = false
		}
	}
	if key == nil {
		if !c.recovery.Verify(phrase) {
			return nil, ErrInvalidPhrase
		}
		key, err = c.recovery.PhraseToKey(phrase, salt)
		if err != nil {
			return nil, err
		}
		plaintext, err = crypto.Decrypt(key, blob)
		if err != nil {
			crypto.SecureWipe(key)
			return nil, ErrInvalidPhrase
		}
	}

	doc, err := DecodeDocument(plaintext)
	crypto.SecureWipe(plaintext)
	if err != nil {
		crypto.SecureWipe(key)
		return nil, fmt.Errorf("%w: %v", ErrCorruptVault, err)
	}

	if !usedWrapped {
		// Upgrade to a wrapped key while both the phrase and the vault key
		// are in hand.
		c.recovery.SaveRecord(phrase, key)
	}

	prior := c.guard.Snapshot()
	if err := c.finishUnlockLocked(key, salt, doc); err != nil {
		return nil, err
	}
	c.phrase = memguard.NewEnclave([]byte(recovery.Normalize(phrase)))
	c.flushPendingAuditLocked(prior)
	c.auditLog.Success(audit.OpRecoveryUnlock, "", "")
	return &UnlockResult{}, nil
}

// Lock closes the vault, wiping the key material and releasing the
// advisory lock. Locking an already-locked vault is a no-op.
func (c *Controller) Lock() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.unlocked {
		return nil
	}
	c.auditLog.Success(audit.OpVaultLock, "", "")
	c.auditLog.Clear()

	c.key = nil
	c.salt = nil
	c.doc = nil
	c.phrase = nil
	c.unlocked = false

	err := c.flock.Release()
	c.flock = nil
	return err
}

// Save re-encrypts the document, rotates an automatic backup of the
// previous file, atomically persists the new one, and refreshes the
// integrity snapshot.
func (c *Controller) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.unlocked {
		return ErrVaultLocked
	}
	return c.saveLocked()
}

// ChangeMasterPassword re-verifies the old password by a decrypt attempt
// against the current file, then re-encrypts under a fresh random salt and
// key. The recovery record is re-bound to the new key: when the session
// phrase is known (creation or recovery unlock) the existing phrase is
// kept, otherwise a replacement phrase is generated and returned. A
// non-empty return must be shown to the user exactly once.
func (c *Controller) ChangeMasterPassword(oldPassword, newPassword string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.unlocked {
		return "", ErrVaultLocked
	}

	data, err := store.Read(c.vaultPath)
	if err != nil {
		return "", err
	}
	if len(data) < minVaultSize {
		return "", ErrCorruptVault
	}
	oldKey, err := crypto.DeriveKey([]byte(oldPassword), data[:crypto.SaltLength])
	if err != nil {
		return "", err
	}
	plain, err := crypto.Decrypt(oldKey, data[crypto.SaltLength:])
	crypto.SecureWipe(oldKey)
	if err != nil {
		return "", ErrInvalidPassword
	}
	crypto.SecureWipe(plain)

	newSalt, err := crypto.GenerateSalt()
	if err != nil {
		return "", err
	}
	newKey, err := crypto.DeriveKey([]byte(newPassword), newSalt)
	if err != nil {
		return "", err
	}

	if err := c.auditLog.SetKey(newKey); err != nil {
		c.health.Disable(metadata.FeatureAudit, fmt.Sprintf("could not rekey audit log: %v", err))
	}
	newPhrase := c.rewrapRecoveryLocked(newKey)
	c.salt = newSalt
	c.key = memguard.NewEnclave(newKey)

	if err := c.saveLocked(); err != nil {
		return "", err
	}
	c.auditLog.Success(audit.OpPasswordChange, "", "")
	return newPhrase, nil
}

// ResetMasterPassword re-encrypts under a new password without verifying
// the old one. Only callable while unlocked; the intended path is a
// recovery-phrase unlock followed by choosing a new password, in which
// case the session phrase stays valid because the record is re-wrapped
// under the new key. As with ChangeMasterPassword, a non-empty returned
// phrase replaces the old one and must be shown once.
func (c *Controller) ResetMasterPassword(newPassword string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.unlocked {
		return "", ErrVaultLocked
	}

	newSalt, err := crypto.GenerateSalt()
	if err != nil {
		return "", err
	}
	newKey, err := crypto.DeriveKey([]byte(newPassword), newSalt)
	if err != nil {
		return "", err
	}
	if err := c.auditLog.SetKey(newKey); err != nil {
		c.health.Disable(metadata.FeatureAudit, fmt.Sprintf("could not rekey audit log: %v", err))
	}
	newPhrase := c.rewrapRecoveryLocked(newKey)
	c.salt = newSalt
	c.key = memguard.NewEnclave(newKey)

	if err := c.saveLocked(); err != nil {
		return "", err
	}
	c.auditLog.Success(audit.OpPasswordChange, "", "")
	return newPhrase, nil
}

// BackupNow writes a manual backup of the current vault file and returns
// its path. Manual backups are kept indefinitely.
func (c *Controller) BackupNow() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path, err := store.Backup(c.vaultPath, c.backupDir, ManualBackupPrefix, 0)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrVaultNotFound
		}
		return "", err
	}
	c.auditLog.Success(audit.OpBackupCreate, "", "")
	return path, nil
}

// RestoreBackup replaces the vault file with the contents of backupPath.
// The backup must decrypt with the given password before anything is
// touched, and the current vault file is snapshotted first. The vault must
// be locked.
func (c *Controller) RestoreBackup(backupPath, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unlocked {
		return ErrVaultUnlocked
	}

	data, err := store.Read(backupPath)
	if err != nil {
		return err
	}
	if len(data) < minVaultSize {
		return ErrCorruptVault
	}
	key, err := crypto.DeriveKey([]byte(password), data[:crypto.SaltLength])
	if err != nil {
		return err
	}
	plain, err := crypto.Decrypt(key, data[crypto.SaltLength:])
	crypto.SecureWipe(key)
	if err != nil {
		return crypto.ErrAuthenticationFailed
	}
	_, decErr := DecodeDocument(plain)
	crypto.SecureWipe(plain)
	if decErr != nil {
		return fmt.Errorf("%w: %v", ErrCorruptVault, decErr)
	}

	if _, err := store.Backup(c.vaultPath, c.backupDir, preRestorePrefix, 0); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err := store.Write(c.vaultPath, data); err != nil {
		return err
	}
	// The chain key is unavailable while locked; the next unlock logs it.
	c.restoredFrom = filepath.Base(backupPath)
	return nil
}

// LockoutState exposes the current failed-attempt counters for display.
func (c *Controller) LockoutState() lockout.State {
	return c.guard.Snapshot()
}

// AuditEvents returns up to limit recent audit events. The vault must be
// unlocked, since the log is keyed from the vault key.
func (c *Controller) AuditEvents(limit int) ([]audit.Event, error) {
	c.mu.Lock()
	unlocked := c.unlocked
	c.mu.Unlock()
	if !unlocked {
		return nil, ErrVaultLocked
	}
	return c.auditLog.Events(limit)
}

// VerifyAuditChain checks the audit log for tampering. The vault must be
// unlocked.
func (c *Controller) VerifyAuditChain() (*audit.VerifyResult, error) {
	c.mu.Lock()
	unlocked := c.unlocked
	c.mu.Unlock()
	if !unlocked {
		return nil, ErrVaultLocked
	}
	return c.auditLog.Verify()
}

// rewrapRecoveryLocked re-binds the recovery record to a fresh vault key.
// When the session phrase is in hand the existing phrase is kept; otherwise
// the phrase is rotated and the replacement returned for one-time display.
// Either way the stored wrapped key decrypts the vault as written under
// newKey. Caller holds c.mu; newKey must not be enclaved yet.
func (c *Controller) rewrapRecoveryLocked(newKey []byte) string {
	if c.phrase != nil {
		buf, err := c.phrase.Open()
		if err == nil {
			c.recovery.SaveRecord(buf.String(), newKey)
			buf.Destroy()
			return ""
		}
	}
	phrase, err := recovery.GeneratePhrase()
	if err != nil {
		c.health.Disable(metadata.FeatureRecovery,
			fmt.Sprintf("could not rotate recovery phrase: %v", err))
		return ""
	}
	c.recovery.SaveRecord(phrase, newKey)
	c.phrase = memguard.NewEnclave([]byte(recovery.Normalize(phrase)))
	return phrase
}

// flushPendingAuditLocked writes events for security activity that happened
// while the chain key was unavailable: failed attempts, a tripped lockout,
// a completed restore. Called right after the key is set.
func (c *Controller) flushPendingAuditLocked(prior lockout.State) {
	if c.restoredFrom != "" {
		c.auditLog.Record(audit.OpBackupRestore, audit.ResultSuccess, "", "", c.restoredFrom)
		c.restoredFrom = ""
	}
	if prior.FailedAttempts > 0 {
		c.auditLog.Record(audit.OpVaultUnlockFailed, audit.ResultDenied, "", "",
			fmt.Sprintf("%d failed attempts since last successful unlock", prior.FailedAttempts))
	}
	if prior.LockoutUntil != nil {
		c.auditLog.Record(audit.OpLockoutTripped, audit.ResultDenied, "", "", "")
	}
}

// failedAttemptLocked records an unlock failure and converts it into the
// user-facing error: remaining attempts, or the lockout that just tripped.
func (c *Controller) failedAttemptLocked() error {
	remaining := c.guard.RecordFailure()
	if err := c.guard.Check(); err != nil {
		return err
	}
	return &InvalidCredentialsError{AttemptsRemaining: remaining}
}

// finishUnlockLocked installs the unlocked state: audit chain key, advisory
// lock, key enclave. Consumes key (memguard wipes it). Caller holds c.mu.
func (c *Controller) finishUnlockLocked(key, salt []byte, doc *Document) error {
	flock, err := store.AcquireLock(filepath.Join(c.dir, lockFileName))
	if err != nil {
		crypto.SecureWipe(key)
		return err
	}

	if err := c.auditLog.SetKey(key); err != nil {
		c.health.Disable(metadata.FeatureAudit, fmt.Sprintf("could not key audit log: %v", err))
	}

	c.flock = flock
	c.key = memguard.NewEnclave(key)
	c.salt = append([]byte(nil), salt...)
	c.doc = doc
	c.unlocked = true
	c.guard.RecordSuccess()
	return nil
}

// saveLocked encrypts and persists the document. Caller holds c.mu and has
// verified the vault is unlocked.
func (c *Controller) saveLocked() error {
	buf, err := c.key.Open()
	if err != nil {
		return fmt.Errorf("vault: failed to access vault key: %w", err)
	}
	defer buf.Destroy()

	plaintext, err := EncodeDocument(c.doc)
	if err != nil {
		return err
	}
	blob, err := crypto.Encrypt(buf.Bytes(), plaintext)
	crypto.SecureWipe(plaintext)
	if err != nil {
		return err
	}

	if _, err := store.Backup(c.vaultPath, c.backupDir, AutoBackupPrefix, c.retention); err != nil && !errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "warning: automatic backup failed: %v\n", err)
	}

	data := make([]byte, 0, crypto.SaltLength+len(blob))
	data = append(data, c.salt...)
	data = append(data, blob...)
	if err := store.Write(c.vaultPath, data); err != nil {
		return err
	}

	c.verifier.Refresh(c.trackedFiles())
	c.auditLog.Success(audit.OpVaultSave, "", "")
	return nil
}

// writeVaultLocked encrypts doc under key and persists it, without touching
// controller state. Used during creation before the key is enclaved.
func (c *Controller) writeVaultLocked(key, salt []byte, doc *Document) error {
	plaintext, err := EncodeDocument(doc)
	if err != nil {
		return err
	}
	blob, err := crypto.Encrypt(key, plaintext)
	crypto.SecureWipe(plaintext)
	if err != nil {
		return err
	}
	data := make([]byte, 0, len(salt)+len(blob))
	data = append(data, salt...)
	data = append(data, blob...)
	return store.Write(c.vaultPath, data)
}

// trackedFiles maps integrity snapshot names to the files they cover.
func (c *Controller) trackedFiles() map[string]string {
	return map[string]string{
		"vault":    c.vaultPath,
		"recovery": c.recovery.RecordPath(),
		"security": filepath.Join(c.dir, lockout.StateFileName),
	}
}
