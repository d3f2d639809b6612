// Package recovery implements the recovery-phrase subsystem.
//
// A vault gets a 24-word BIP39 mnemonic at creation time. The phrase can
// unlock the vault independently of the master password: a record next to
// the vault stores the phrase hash plus, since version 2, the vault's AES
// key wrapped under a key derived from the phrase with its own salt.
// Version 1 records only held the hash and relied on deriving a key from
// the phrase against the vault's own salt; that path survives as a
// compatibility shim and is upgraded to version 2 on first use.
//
// All hashing and derivation operates on the normalized phrase (NFKD,
// lower-cased, whitespace collapsed); display and quiz helpers keep the
// original casing.
package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/text/unicode/norm"

	"github.com/netguy001/lockbox/pkg/crypto"
	"github.com/netguy001/lockbox/pkg/metadata"
	"github.com/netguy001/lockbox/pkg/store"
)

const (
	// RecordFileName is the recovery record sidecar, stored next to the
	// vault file.
	RecordFileName = ".recovery_hash"

	// PhraseWords is the phrase length; 24 words encode 256 bits of entropy
	// plus an 8-bit checksum.
	PhraseWords = 24

	// entropyBits drawn from the CSPRNG for a new phrase.
	entropyBits = 256

	// recordVersionWrapped marks records that carry the wrapped vault key.
	recordVersionWrapped = 2
)

// Format validation errors.
var (
	// ErrWordCount indicates the phrase does not have exactly 24 words.
	ErrWordCount = errors.New("recovery: phrase must be exactly 24 words")

	// ErrInvalidPhrase indicates an unknown word or checksum mismatch.
	ErrInvalidPhrase = errors.New("recovery: invalid phrase, contains unknown words or checksum mismatch")
)

// Record is the persisted recovery metadata. Binary fields marshal as
// base64 through encoding/json.
type Record struct {
	Hash         string `json:"hash"`
	LegacyHash   string `json:"legacy_hash"`
	Created      string `json:"created"`
	Version      int    `json:"version,omitempty"`
	RecoverySalt []byte `json:"recovery_salt,omitempty"`
	EncryptedKey []byte `json:"encrypted_key,omitempty"`
}

// System manages the recovery record for one vault.
type System struct {
	path   string
	health *metadata.Health
}

// NewSystem returns a recovery system storing its record in dir.
func NewSystem(dir string, health *metadata.Health) *System {
	return &System{path: filepath.Join(dir, RecordFileName), health: health}
}

// GeneratePhrase draws 256 bits from the CSPRNG and maps them to a 24-word
// checksummed mnemonic.
func GeneratePhrase() (string, error) {
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("recovery: failed to generate entropy: %w", err)
	}
	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("recovery: failed to build mnemonic: %w", err)
	}
	return phrase, nil
}

// Normalize lower-cases the phrase, applies NFKD, and collapses whitespace.
// Every hash and key derivation in this package operates on this form.
func Normalize(phrase string) string {
	folded := strings.ToLower(norm.NFKD.String(phrase))
	return strings.Join(strings.Fields(folded), " ")
}

// ValidateFormat checks that the phrase is exactly 24 words, all from the
// wordlist, with a valid checksum.
func ValidateFormat(phrase string) error {
	normalized := Normalize(phrase)
	if n := len(strings.Fields(normalized)); n != PhraseWords {
		return fmt.Errorf("%w (you entered %d)", ErrWordCount, n)
	}
	if !bip39.IsMnemonicValid(normalized) {
		return ErrInvalidPhrase
	}
	return nil
}

// Words splits the phrase in its original casing, for display and for the
// setup verification quiz.
func Words(phrase string) []string {
	return strings.Fields(phrase)
}

// CheckWord reports whether word matches the phrase word at the given
// zero-based position, ignoring case. Only the setup quiz may use this;
// real recovery never discloses which words were wrong.
func CheckWord(phrase string, position int, word string) bool {
	words := Words(phrase)
	if position < 0 || position >= len(words) {
		return false
	}
	return strings.EqualFold(words[position], strings.TrimSpace(word))
}

// PhraseToKey derives a vault key from the phrase against the given salt.
// This is the pre-v2 compatibility path: it makes the phrase a
// password-equivalent input to the same derivation and is only used when no
// wrapped key is stored.
func (s *System) PhraseToKey(phrase string, salt []byte) ([]byte, error) {
	if err := ValidateFormat(phrase); err != nil {
		return nil, err
	}
	return crypto.DeriveKey([]byte(Normalize(phrase)), salt)
}

// SaveRecord persists the phrase hashes and, when vaultKey is given, wraps
// the vault key under a phrase-derived key with a fresh record-specific
// salt. The write is best-effort optional metadata: failures disable the
// recovery feature instead of propagating.
func (s *System) SaveRecord(phrase string, vaultKey []byte) {
	if !s.health.IsEnabled(metadata.FeatureRecovery) {
		return
	}

	normalized := Normalize(phrase)
	record := &Record{
		Hash:       crypto.HashHex([]byte(normalized)),
		LegacyHash: crypto.HashHex([]byte(phrase)),
		Created:    time.Now().UTC().Format(time.RFC3339),
	}

	if vaultKey != nil {
		recoverySalt, err := crypto.GenerateSalt()
		if err != nil {
			s.health.Disable(metadata.FeatureRecovery,
				fmt.Sprintf("could not generate recovery salt: %v", err))
			return
		}
		phraseKey, err := crypto.DeriveKey([]byte(normalized), recoverySalt)
		if err != nil {
			s.health.Disable(metadata.FeatureRecovery,
				fmt.Sprintf("could not derive phrase key: %v", err))
			return
		}
		defer crypto.SecureWipe(phraseKey)

		encryptedKey, err := crypto.Encrypt(phraseKey, vaultKey)
		if err != nil {
			s.health.Disable(metadata.FeatureRecovery,
				fmt.Sprintf("could not wrap vault key: %v", err))
			return
		}
		record.RecoverySalt = recoverySalt
		record.EncryptedKey = encryptedKey
		record.Version = recordVersionWrapped
	}

	s.writeRecord(record)
}

// Verify hash-compares the phrase against the stored record, accepting
// either the normalized or the raw form for records written before
// normalization existed. A match through the legacy path rewrites the
// record with the normalized hash, silently and best-effort.
func (s *System) Verify(phrase string) bool {
	record := s.loadRecord()
	if record == nil {
		return false
	}

	normalizedHash := crypto.HashHex([]byte(Normalize(phrase)))
	rawHash := crypto.HashHex([]byte(phrase))

	if record.Hash != "" && normalizedHash == record.Hash {
		return true
	}

	// Older records stored the raw hash in the primary field. Accept it and
	// upgrade the record on the fly.
	if record.Hash != "" && rawHash == record.Hash {
		record.Hash = normalizedHash
		record.LegacyHash = rawHash
		s.writeRecord(record)
		return true
	}

	if record.LegacyHash != "" && (normalizedHash == record.LegacyHash || rawHash == record.LegacyHash) {
		return true
	}
	return false
}

// RetrieveVaultKey unwraps the stored vault key using the phrase. It
// returns nil when no wrapped key is stored or when the phrase is wrong;
// the two cases are deliberately indistinguishable to the caller.
func (s *System) RetrieveVaultKey(phrase string) []byte {
	record := s.loadRecord()
	if record == nil || len(record.EncryptedKey) == 0 || len(record.RecoverySalt) == 0 {
		return nil
	}

	phraseKey, err := crypto.DeriveKey([]byte(Normalize(phrase)), record.RecoverySalt)
	if err != nil {
		return nil
	}
	defer crypto.SecureWipe(phraseKey)

	vaultKey, err := crypto.Decrypt(phraseKey, record.EncryptedKey)
	if err != nil {
		return nil
	}
	return vaultKey
}

// HasWrappedKey reports whether the record carries a version 2 wrapped
// vault key.
func (s *System) HasWrappedKey() bool {
	record := s.loadRecord()
	return record != nil && len(record.EncryptedKey) > 0
}

// HasRecord reports whether a recovery record exists for this vault.
func (s *System) HasRecord() bool {
	return s.loadRecord() != nil
}

// RecordPath returns the record file location, for integrity tracking.
func (s *System) RecordPath() string {
	return s.path
}

func (s *System) loadRecord() *Record {
	data, err := store.Read(s.path)
	if err != nil {
		return nil
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil
	}
	return &record
}

func (s *System) writeRecord(record *Record) {
	data, err := json.Marshal(record)
	if err != nil {
		s.health.Disable(metadata.FeatureRecovery,
			fmt.Sprintf("could not encode recovery record: %v", err))
		return
	}
	if err := store.Write(s.path, data); err != nil {
		s.health.Disable(metadata.FeatureRecovery,
			fmt.Sprintf("could not write recovery record: %v", err))
	}
}
