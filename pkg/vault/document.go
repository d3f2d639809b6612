package vault

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Category names, in canonical document order.
const (
	CategoryPasswords        = "passwords"
	CategoryAPIKeys          = "api_keys"
	CategoryNotes            = "notes"
	CategorySSHKeys          = "ssh_keys"
	CategoryFiles            = "files"
	CategoryEncryptedFolders = "encrypted_folders"
	CategoryPasswordHistory  = "password_history"
	CategoryTOTPCodes        = "totp_codes"
)

// MaxPasswordHistory bounds the retained history records per password entry.
const MaxPasswordHistory = 10

// PasswordEntry is a stored login credential.
type PasswordEntry struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	URL      string   `json:"url"`
	Notes    string   `json:"notes"`
	Tags     []string `json:"tags"`
	Created  string   `json:"created"`
	Modified string   `json:"modified"`
	Favorite bool     `json:"favorite"`
}

// APIKeyEntry is a stored service token.
type APIKeyEntry struct {
	ID          string   `json:"id"`
	Service     string   `json:"service"`
	Key         string   `json:"key"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Created     string   `json:"created"`
	Modified    string   `json:"modified"`
}

// NoteEntry is a free-form secure note.
type NoteEntry struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	Created  string   `json:"created"`
	Modified string   `json:"modified"`
}

// SSHKeyEntry is a stored key pair.
type SSHKeyEntry struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	PrivateKey string   `json:"private_key"`
	PublicKey  string   `json:"public_key"`
	Passphrase string   `json:"passphrase"`
	Tags       []string `json:"tags"`
	Created    string   `json:"created"`
	Modified   string   `json:"modified"`
}

// FileEntry embeds a small file in the vault. Data marshals as base64.
type FileEntry struct {
	ID          string   `json:"id"`
	Filename    string   `json:"filename"`
	Data        []byte   `json:"data"`
	Size        int      `json:"size"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Created     string   `json:"created"`
}

// FolderEntry is a metadata record tracking a folder outside the vault.
type FolderEntry struct {
	ID           string   `json:"id"`
	FolderName   string   `json:"folder_name"`
	OriginalPath string   `json:"original_path"`
	FileList     []string `json:"file_list"`
	Size         int64    `json:"size"`
	FileCount    int      `json:"file_count"`
	Description  string   `json:"description"`
	Created      string   `json:"created"`
}

// HistoryEntry records a superseded password value.
type HistoryEntry struct {
	ID          string `json:"id"`
	PasswordID  string `json:"password_id"`
	Title       string `json:"title"`
	OldPassword string `json:"old_password"`
	ChangedAt   string `json:"changed_at"`
}

// TOTPEntry stores an authenticator seed. Code generation belongs to the
// surrounding application.
type TOTPEntry struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Secret  string   `json:"secret"`
	Issuer  string   `json:"issuer"`
	Tags    []string `json:"tags"`
	Created string   `json:"created"`
}

// Document is the decrypted vault payload: eight fixed categories of
// ordered entries. Field order here fixes the serialized key order.
type Document struct {
	Passwords        []PasswordEntry `json:"passwords"`
	APIKeys          []APIKeyEntry   `json:"api_keys"`
	Notes            []NoteEntry     `json:"notes"`
	SSHKeys          []SSHKeyEntry   `json:"ssh_keys"`
	Files            []FileEntry     `json:"files"`
	EncryptedFolders []FolderEntry   `json:"encrypted_folders"`
	PasswordHistory  []HistoryEntry  `json:"password_history"`
	TOTPCodes        []TOTPEntry     `json:"totp_codes"`
}

// NewDocument returns an empty document with all categories present.
func NewDocument() *Document {
	d := &Document{}
	d.ensureCategories()
	return d
}

// ensureCategories replaces nil category slices with empty ones so every
// category key always serializes, and documents from older vaults that
// predate a category decode cleanly.
func (d *Document) ensureCategories() {
	if d.Passwords == nil {
		d.Passwords = []PasswordEntry{}
	}
	if d.APIKeys == nil {
		d.APIKeys = []APIKeyEntry{}
	}
	if d.Notes == nil {
		d.Notes = []NoteEntry{}
	}
	if d.SSHKeys == nil {
		d.SSHKeys = []SSHKeyEntry{}
	}
	if d.Files == nil {
		d.Files = []FileEntry{}
	}
	if d.EncryptedFolders == nil {
		d.EncryptedFolders = []FolderEntry{}
	}
	if d.PasswordHistory == nil {
		d.PasswordHistory = []HistoryEntry{}
	}
	if d.TOTPCodes == nil {
		d.TOTPCodes = []TOTPEntry{}
	}
}

// EncodeDocument serializes a document with stable key order and
// indentation for human diffability.
func EncodeDocument(d *Document) ([]byte, error) {
	d.ensureCategories()
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("vault: failed to encode document: %w", err)
	}
	return data, nil
}

// DecodeDocument parses a document, auto-populating any missing category.
func DecodeDocument(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("vault: failed to decode document: %w", err)
	}
	d.ensureCategories()
	return &d, nil
}

// NewEntryID returns a 16-character lowercase hex identifier from the
// CSPRNG.
func NewEntryID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("vault: failed to generate entry id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// nowStamp is the timestamp format for entry created/modified fields.
func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// recordPasswordHistory appends the superseded value for a password entry
// and prunes that entry's history beyond MaxPasswordHistory, oldest first.
func (d *Document) recordPasswordHistory(passwordID, title, oldPassword string) error {
	id, err := NewEntryID()
	if err != nil {
		return err
	}
	d.PasswordHistory = append(d.PasswordHistory, HistoryEntry{
		ID:          id,
		PasswordID:  passwordID,
		Title:       title,
		OldPassword: oldPassword,
		ChangedAt:   nowStamp(),
	})

	var mine []HistoryEntry
	for _, h := range d.PasswordHistory {
		if h.PasswordID == passwordID {
			mine = append(mine, h)
		}
	}
	if len(mine) <= MaxPasswordHistory {
		return nil
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].ChangedAt < mine[j].ChangedAt })
	drop := mine[0].ID
	kept := d.PasswordHistory[:0]
	for _, h := range d.PasswordHistory {
		if h.ID != drop {
			kept = append(kept, h)
		}
	}
	d.PasswordHistory = kept
	return nil
}
