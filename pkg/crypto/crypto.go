// Package crypto provides the cryptographic primitives for lockbox.
//
// This package implements AES-256-GCM authenticated encryption and Argon2id
// key derivation with fixed parameters so that vaults created by any build
// remain mutually compatible.
//
// # Security Features
//
//   - AES-256-GCM authenticated encryption (nonce || ciphertext || tag blobs)
//   - Argon2id key derivation (100 MiB memory, 4 iterations, 4 threads)
//   - Cryptographically secure random nonce generation per call
//   - Secure memory wiping for sensitive data
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"runtime"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. These are deliberately constants, not configuration:
// every vault ever written must derive the same key from the same password
// and salt.
const (
	// Argon2Memory is the memory cost in KiB (100 MiB).
	Argon2Memory = 100 * 1024

	// Argon2Time is the number of iterations.
	Argon2Time = 4

	// Argon2Threads is the degree of parallelism.
	Argon2Threads = 4

	// KeyLength is the length of derived keys in bytes (256 bits).
	KeyLength = 32

	// SaltLength is the length of derivation salts in bytes.
	SaltLength = 16

	// NonceLength is the length of GCM nonces in bytes (96 bits).
	NonceLength = 12

	// TagLength is the length of the GCM authentication tag in bytes.
	TagLength = 16
)

// Sentinel errors returned by crypto functions.
var (
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")

	// ErrInvalidSaltLength indicates the salt is not 16 bytes.
	ErrInvalidSaltLength = errors.New("crypto: invalid salt length, must be 16 bytes")

	// ErrAuthenticationFailed indicates decryption failed: wrong key,
	// corrupted data, or tampering. GCM cannot tell these apart.
	ErrAuthenticationFailed = errors.New("crypto: authentication failed")

	// ErrCiphertextTooShort indicates the blob is shorter than nonce + tag.
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
)

// DeriveKey derives a 256-bit key from a secret using Argon2id.
//
// The same (secret, salt) pair always yields the same key. The derivation
// takes hundreds of milliseconds; callers in interactive code must run it
// off the UI path.
func DeriveKey(secret, salt []byte) ([]byte, error) {
	if len(salt) != SaltLength {
		return nil, ErrInvalidSaltLength
	}
	return argon2.IDKey(secret, salt, Argon2Time, Argon2Memory, Argon2Threads, KeyLength), nil
}

// GenerateSalt returns a fresh random derivation salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate salt: %w", err)
	}
	return salt, nil
}

// Encrypt encrypts plaintext using AES-256-GCM and returns a single blob of
// the form nonce || ciphertext || tag.
//
// The nonce is drawn fresh from crypto/rand on every call; it is never
// derived from content or a counter, which structurally prevents reuse under
// the same key.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}

	nonce := make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}

	// Seal appends ciphertext+tag to the nonce, producing the blob layout.
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts a nonce || ciphertext || tag blob produced by Encrypt.
//
// Tag verification failure, a wrong key, and corrupted data all surface as
// ErrAuthenticationFailed with no partial plaintext.
func Decrypt(key, blob []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	if len(blob) < NonceLength+TagLength {
		return nil, ErrCiphertextTooShort
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}

	nonce := blob[:NonceLength]
	ciphertext := blob[NonceLength:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// HashHex returns the hex-encoded SHA-256 of data. Used for verification
// hashes, never for encryption keys.
func HashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SecureWipe overwrites a byte slice with zeros in a way that prevents
// compiler optimization from removing the operation.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// runtime.KeepAlive ensures the writes are not optimized away since b is
	// still "in use" after the loop.
	runtime.KeepAlive(b)
}

// Character classes for password generation.
const (
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*()-_=+[]{}|;:,.<>?"
)

// GenerateOptions controls GeneratePassword. The zero value is not useful;
// use DefaultGenerateOptions.
type GenerateOptions struct {
	Length  int
	Upper   bool
	Lower   bool
	Digits  bool
	Symbols bool
}

// DefaultGenerateOptions returns the standard generator settings: 16
// characters drawing from all four classes.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{Length: 16, Upper: true, Lower: true, Digits: true, Symbols: true}
}

// GeneratePassword returns a random password. Every enabled character class
// is guaranteed at least one occurrence, and the result is shuffled so class
// positions are not predictable.
func GeneratePassword(opts GenerateOptions) (string, error) {
	var pool string
	var classes []string
	if opts.Lower {
		pool += lowerChars
		classes = append(classes, lowerChars)
	}
	if opts.Upper {
		pool += upperChars
		classes = append(classes, upperChars)
	}
	if opts.Digits {
		pool += digitChars
		classes = append(classes, digitChars)
	}
	if opts.Symbols {
		pool += symbolChars
		classes = append(classes, symbolChars)
	}
	if pool == "" {
		pool = lowerChars
		classes = append(classes, lowerChars)
	}
	if opts.Length < len(classes) {
		opts.Length = len(classes)
	}

	out := make([]byte, 0, opts.Length)
	for _, class := range classes {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < opts.Length {
		c, err := randomChar(pool)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Fisher-Yates with crypto/rand indices.
	for i := len(out) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func randomChar(set string) (byte, error) {
	i, err := randomInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("crypto: failed to read random: %w", err)
	}
	return int(v.Int64()), nil
}
