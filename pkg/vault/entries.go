package vault

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/netguy001/lockbox/pkg/audit"
	"github.com/netguy001/lockbox/pkg/security"
)

// mutate runs fn against the document and persists on success.
func (c *Controller) mutate(fn func(doc *Document) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.unlocked {
		return ErrVaultLocked
	}
	if err := fn(c.doc); err != nil {
		return err
	}
	return c.saveLocked()
}

// view runs fn against the document without saving.
func (c *Controller) view(fn func(doc *Document) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.unlocked {
		return ErrVaultLocked
	}
	return fn(c.doc)
}

// AddPassword stores a new credential. ID and timestamps in e are ignored
// and populated by the vault. Returns the new entry's id.
func (c *Controller) AddPassword(e PasswordEntry) (string, error) {
	id, err := NewEntryID()
	if err != nil {
		return "", err
	}
	err = c.mutate(func(doc *Document) error {
		e.ID = id
		e.Created = nowStamp()
		e.Modified = e.Created
		if e.Tags == nil {
			e.Tags = []string{}
		}
		doc.Passwords = append(doc.Passwords, e)
		return nil
	})
	if err != nil {
		return "", err
	}
	c.auditLog.Success(audit.OpEntryAdd, CategoryPasswords, id)
	return id, nil
}

// ListPasswords returns a copy of all credentials.
func (c *Controller) ListPasswords() ([]PasswordEntry, error) {
	var out []PasswordEntry
	err := c.view(func(doc *Document) error {
		out = append([]PasswordEntry(nil), doc.Passwords...)
		return nil
	})
	return out, err
}

// GetPassword returns the credential with the given id.
func (c *Controller) GetPassword(id string) (*PasswordEntry, error) {
	var out *PasswordEntry
	err := c.view(func(doc *Document) error {
		for i := range doc.Passwords {
			if doc.Passwords[i].ID == id {
				e := doc.Passwords[i]
				out = &e
				return nil
			}
		}
		return ErrEntryNotFound
	})
	return out, err
}

// UpdatePassword replaces the mutable fields of a credential. A changed
// password value is recorded in the history before being overwritten.
func (c *Controller) UpdatePassword(id string, e PasswordEntry) error {
	err := c.mutate(func(doc *Document) error {
		for i := range doc.Passwords {
			cur := &doc.Passwords[i]
			if cur.ID != id {
				continue
			}
			if e.Password != cur.Password {
				title := cur.Title
				if title == "" {
					title = "Unknown"
				}
				if err := doc.recordPasswordHistory(id, title, cur.Password); err != nil {
					return err
				}
			}
			cur.Title = e.Title
			cur.Username = e.Username
			cur.Password = e.Password
			cur.URL = e.URL
			cur.Notes = e.Notes
			if e.Tags != nil {
				cur.Tags = e.Tags
			}
			cur.Favorite = e.Favorite
			cur.Modified = nowStamp()
			return nil
		}
		return ErrEntryNotFound
	})
	if err != nil {
		return err
	}
	c.auditLog.Success(audit.OpEntryUpdate, CategoryPasswords, id)
	return nil
}

// DeletePassword removes a credential together with its history records.
func (c *Controller) DeletePassword(id string) error {
	err := c.mutate(func(doc *Document) error {
		kept := doc.Passwords[:0]
		found := false
		for _, e := range doc.Passwords {
			if e.ID == id {
				found = true
				continue
			}
			kept = append(kept, e)
		}
		if !found {
			return ErrEntryNotFound
		}
		doc.Passwords = kept

		history := doc.PasswordHistory[:0]
		for _, h := range doc.PasswordHistory {
			if h.PasswordID != id {
				history = append(history, h)
			}
		}
		doc.PasswordHistory = history
		return nil
	})
	if err != nil {
		return err
	}
	c.auditLog.Success(audit.OpEntryDelete, CategoryPasswords, id)
	return nil
}

// PasswordHistory returns the retained old values for one credential,
// newest last.
func (c *Controller) PasswordHistory(passwordID string) ([]HistoryEntry, error) {
	var out []HistoryEntry
	err := c.view(func(doc *Document) error {
		for _, h := range doc.PasswordHistory {
			if h.PasswordID == passwordID {
				out = append(out, h)
			}
		}
		return nil
	})
	return out, err
}

// AddAPIKey stores a new service token.
func (c *Controller) AddAPIKey(e APIKeyEntry) (string, error) {
	id, err := NewEntryID()
	if err != nil {
		return "", err
	}
	err = c.mutate(func(doc *Document) error {
		e.ID = id
		e.Created = nowStamp()
		e.Modified = e.Created
		if e.Tags == nil {
			e.Tags = []string{}
		}
		doc.APIKeys = append(doc.APIKeys, e)
		return nil
	})
	if err != nil {
		return "", err
	}
	c.auditLog.Success(audit.OpEntryAdd, CategoryAPIKeys, id)
	return id, nil
}

// ListAPIKeys returns a copy of all service tokens.
func (c *Controller) ListAPIKeys() ([]APIKeyEntry, error) {
	var out []APIKeyEntry
	err := c.view(func(doc *Document) error {
		out = append([]APIKeyEntry(nil), doc.APIKeys...)
		return nil
	})
	return out, err
}

// UpdateAPIKey replaces the mutable fields of a service token.
func (c *Controller) UpdateAPIKey(id string, e APIKeyEntry) error {
	err := c.mutate(func(doc *Document) error {
		for i := range doc.APIKeys {
			cur := &doc.APIKeys[i]
			if cur.ID != id {
				continue
			}
			cur.Service = e.Service
			cur.Key = e.Key
			cur.Description = e.Description
			if e.Tags != nil {
				cur.Tags = e.Tags
			}
			cur.Modified = nowStamp()
			return nil
		}
		return ErrEntryNotFound
	})
	if err != nil {
		return err
	}
	c.auditLog.Success(audit.OpEntryUpdate, CategoryAPIKeys, id)
	return nil
}

// DeleteAPIKey removes a service token.
func (c *Controller) DeleteAPIKey(id string) error {
	return c.deleteSimple(CategoryAPIKeys, id, func(doc *Document) bool {
		kept := doc.APIKeys[:0]
		found := false
		for _, e := range doc.APIKeys {
			if e.ID == id {
				found = true
				continue
			}
			kept = append(kept, e)
		}
		doc.APIKeys = kept
		return found
	})
}

// AddNote stores a new secure note.
func (c *Controller) AddNote(e NoteEntry) (string, error) {
	id, err := NewEntryID()
	if err != nil {
		return "", err
	}
	err = c.mutate(func(doc *Document) error {
		e.ID = id
		e.Created = nowStamp()
		e.Modified = e.Created
		if e.Tags == nil {
			e.Tags = []string{}
		}
		doc.Notes = append(doc.Notes, e)
		return nil
	})
	if err != nil {
		return "", err
	}
	c.auditLog.Success(audit.OpEntryAdd, CategoryNotes, id)
	return id, nil
}

// ListNotes returns a copy of all notes.
func (c *Controller) ListNotes() ([]NoteEntry, error) {
	var out []NoteEntry
	err := c.view(func(doc *Document) error {
		out = append([]NoteEntry(nil), doc.Notes...)
		return nil
	})
	return out, err
}

// UpdateNote replaces a note's title and content.
func (c *Controller) UpdateNote(id, title, content string) error {
	err := c.mutate(func(doc *Document) error {
		for i := range doc.Notes {
			cur := &doc.Notes[i]
			if cur.ID != id {
				continue
			}
			cur.Title = title
			cur.Content = content
			cur.Modified = nowStamp()
			return nil
		}
		return ErrEntryNotFound
	})
	if err != nil {
		return err
	}
	c.auditLog.Success(audit.OpEntryUpdate, CategoryNotes, id)
	return nil
}

// DeleteNote removes a note.
func (c *Controller) DeleteNote(id string) error {
	return c.deleteSimple(CategoryNotes, id, func(doc *Document) bool {
		kept := doc.Notes[:0]
		found := false
		for _, e := range doc.Notes {
			if e.ID == id {
				found = true
				continue
			}
			kept = append(kept, e)
		}
		doc.Notes = kept
		return found
	})
}

// AddSSHKey stores a new key pair.
func (c *Controller) AddSSHKey(e SSHKeyEntry) (string, error) {
	id, err := NewEntryID()
	if err != nil {
		return "", err
	}
	err = c.mutate(func(doc *Document) error {
		e.ID = id
		e.Created = nowStamp()
		e.Modified = e.Created
		if e.Tags == nil {
			e.Tags = []string{}
		}
		doc.SSHKeys = append(doc.SSHKeys, e)
		return nil
	})
	if err != nil {
		return "", err
	}
	c.auditLog.Success(audit.OpEntryAdd, CategorySSHKeys, id)
	return id, nil
}

// ListSSHKeys returns a copy of all key pairs.
func (c *Controller) ListSSHKeys() ([]SSHKeyEntry, error) {
	var out []SSHKeyEntry
	err := c.view(func(doc *Document) error {
		out = append([]SSHKeyEntry(nil), doc.SSHKeys...)
		return nil
	})
	return out, err
}

// UpdateSSHKey replaces the key material of a stored pair.
func (c *Controller) UpdateSSHKey(id, name, privateKey, publicKey string) error {
	err := c.mutate(func(doc *Document) error {
		for i := range doc.SSHKeys {
			cur := &doc.SSHKeys[i]
			if cur.ID != id {
				continue
			}
			cur.Name = name
			cur.PrivateKey = privateKey
			cur.PublicKey = publicKey
			cur.Modified = nowStamp()
			return nil
		}
		return ErrEntryNotFound
	})
	if err != nil {
		return err
	}
	c.auditLog.Success(audit.OpEntryUpdate, CategorySSHKeys, id)
	return nil
}

// DeleteSSHKey removes a key pair.
func (c *Controller) DeleteSSHKey(id string) error {
	return c.deleteSimple(CategorySSHKeys, id, func(doc *Document) bool {
		kept := doc.SSHKeys[:0]
		found := false
		for _, e := range doc.SSHKeys {
			if e.ID == id {
				found = true
				continue
			}
			kept = append(kept, e)
		}
		doc.SSHKeys = kept
		return found
	})
}

// AddTOTP stores a new authenticator seed.
func (c *Controller) AddTOTP(e TOTPEntry) (string, error) {
	id, err := NewEntryID()
	if err != nil {
		return "", err
	}
	err = c.mutate(func(doc *Document) error {
		e.ID = id
		e.Created = nowStamp()
		if e.Tags == nil {
			e.Tags = []string{}
		}
		doc.TOTPCodes = append(doc.TOTPCodes, e)
		return nil
	})
	if err != nil {
		return "", err
	}
	c.auditLog.Success(audit.OpEntryAdd, CategoryTOTPCodes, id)
	return id, nil
}

// ListTOTP returns a copy of all authenticator seeds.
func (c *Controller) ListTOTP() ([]TOTPEntry, error) {
	var out []TOTPEntry
	err := c.view(func(doc *Document) error {
		out = append([]TOTPEntry(nil), doc.TOTPCodes...)
		return nil
	})
	return out, err
}

// DeleteTOTP removes an authenticator seed.
func (c *Controller) DeleteTOTP(id string) error {
	return c.deleteSimple(CategoryTOTPCodes, id, func(doc *Document) bool {
		kept := doc.TOTPCodes[:0]
		found := false
		for _, e := range doc.TOTPCodes {
			if e.ID == id {
				found = true
				continue
			}
			kept = append(kept, e)
		}
		doc.TOTPCodes = kept
		return found
	})
}

// AddFile embeds a file's bytes in the vault.
func (c *Controller) AddFile(filename string, data []byte, description string, tags []string) (string, error) {
	id, err := NewEntryID()
	if err != nil {
		return "", err
	}
	if tags == nil {
		tags = []string{}
	}
	err = c.mutate(func(doc *Document) error {
		doc.Files = append(doc.Files, FileEntry{
			ID:          id,
			Filename:    filename,
			Data:        append([]byte(nil), data...),
			Size:        len(data),
			Description: description,
			Tags:        tags,
			Created:     nowStamp(),
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	c.auditLog.Success(audit.OpEntryAdd, CategoryFiles, id)
	return id, nil
}

// ListFiles returns file metadata without the embedded payloads.
func (c *Controller) ListFiles() ([]FileEntry, error) {
	var out []FileEntry
	err := c.view(func(doc *Document) error {
		for _, f := range doc.Files {
			f.Data = nil
			out = append(out, f)
		}
		return nil
	})
	return out, err
}

// GetFileData returns the payload of a stored file.
func (c *Controller) GetFileData(id string) ([]byte, error) {
	var out []byte
	err := c.view(func(doc *Document) error {
		for _, f := range doc.Files {
			if f.ID == id {
				out = append([]byte(nil), f.Data...)
				return nil
			}
		}
		return ErrEntryNotFound
	})
	return out, err
}

// DeleteFile removes a stored file.
func (c *Controller) DeleteFile(id string) error {
	return c.deleteSimple(CategoryFiles, id, func(doc *Document) bool {
		kept := doc.Files[:0]
		found := false
		for _, e := range doc.Files {
			if e.ID == id {
				found = true
				continue
			}
			kept = append(kept, e)
		}
		doc.Files = kept
		return found
	})
}

// AddEncryptedFolder records metadata for a folder tracked outside the
// vault: its file list and total size at registration time.
func (c *Controller) AddEncryptedFolder(folderPath, description string) (string, error) {
	info, err := os.Stat(folderPath)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("vault: invalid folder path %s", folderPath)
	}

	var files []string
	var total int64
	err = filepath.WalkDir(folderPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(folderPath, p)
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, rel)
		total += fi.Size()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("vault: failed to scan folder: %w", err)
	}
	if files == nil {
		files = []string{}
	}

	id, err := NewEntryID()
	if err != nil {
		return "", err
	}
	err = c.mutate(func(doc *Document) error {
		doc.EncryptedFolders = append(doc.EncryptedFolders, FolderEntry{
			ID:           id,
			FolderName:   filepath.Base(folderPath),
			OriginalPath: folderPath,
			FileList:     files,
			Size:         total,
			FileCount:    len(files),
			Description:  description,
			Created:      nowStamp(),
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	c.auditLog.Success(audit.OpEntryAdd, CategoryEncryptedFolders, id)
	return id, nil
}

// ListEncryptedFolders returns folder metadata without the file lists.
func (c *Controller) ListEncryptedFolders() ([]FolderEntry, error) {
	var out []FolderEntry
	err := c.view(func(doc *Document) error {
		for _, f := range doc.EncryptedFolders {
			f.FileList = nil
			out = append(out, f)
		}
		return nil
	})
	return out, err
}

// DeleteEncryptedFolder removes a folder record.
func (c *Controller) DeleteEncryptedFolder(id string) error {
	return c.deleteSimple(CategoryEncryptedFolders, id, func(doc *Document) bool {
		kept := doc.EncryptedFolders[:0]
		found := false
		for _, e := range doc.EncryptedFolders {
			if e.ID == id {
				found = true
				continue
			}
			kept = append(kept, e)
		}
		doc.EncryptedFolders = kept
		return found
	})
}

// deleteSimple runs a removal closure and turns a not-found into
// ErrEntryNotFound without saving.
func (c *Controller) deleteSimple(category, id string, remove func(doc *Document) bool) error {
	err := c.mutate(func(doc *Document) error {
		if !remove(doc) {
			return ErrEntryNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.auditLog.Success(audit.OpEntryDelete, category, id)
	return nil
}

// SearchResult locates one matching entry.
type SearchResult struct {
	Category string
	ID       string
	Title    string
}

// Search scans entries for a case-insensitive substring match over every
// field. category narrows the scan to one category; empty means all
// searchable categories (history and TOTP seeds are excluded).
func (c *Controller) Search(query, category string) ([]SearchResult, error) {
	query = strings.ToLower(query)
	var out []SearchResult

	match := func(v any) bool {
		data, err := json.Marshal(v)
		if err != nil {
			return false
		}
		return strings.Contains(strings.ToLower(string(data)), query)
	}
	want := func(cat string) bool {
		return category == "" || category == cat
	}

	err := c.view(func(doc *Document) error {
		if want(CategoryPasswords) {
			for _, e := range doc.Passwords {
				if match(e) {
					out = append(out, SearchResult{CategoryPasswords, e.ID, e.Title})
				}
			}
		}
		if want(CategoryAPIKeys) {
			for _, e := range doc.APIKeys {
				if match(e) {
					out = append(out, SearchResult{CategoryAPIKeys, e.ID, e.Service})
				}
			}
		}
		if want(CategoryNotes) {
			for _, e := range doc.Notes {
				if match(e) {
					out = append(out, SearchResult{CategoryNotes, e.ID, e.Title})
				}
			}
		}
		if want(CategorySSHKeys) {
			for _, e := range doc.SSHKeys {
				if match(e) {
					out = append(out, SearchResult{CategorySSHKeys, e.ID, e.Name})
				}
			}
		}
		if want(CategoryFiles) {
			for _, e := range doc.Files {
				e.Data = nil
				if match(e) {
					out = append(out, SearchResult{CategoryFiles, e.ID, e.Filename})
				}
			}
		}
		if want(CategoryEncryptedFolders) {
			for _, e := range doc.EncryptedFolders {
				if match(e) {
					out = append(out, SearchResult{CategoryEncryptedFolders, e.ID, e.FolderName})
				}
			}
		}
		return nil
	})
	return out, err
}

// Stats counts entries per category plus a grand total.
func (c *Controller) Stats() (map[string]int, error) {
	stats := make(map[string]int)
	err := c.view(func(doc *Document) error {
		stats[CategoryPasswords] = len(doc.Passwords)
		stats[CategoryAPIKeys] = len(doc.APIKeys)
		stats[CategoryNotes] = len(doc.Notes)
		stats[CategorySSHKeys] = len(doc.SSHKeys)
		stats[CategoryFiles] = len(doc.Files)
		stats[CategoryEncryptedFolders] = len(doc.EncryptedFolders)
		stats[CategoryPasswordHistory] = len(doc.PasswordHistory)
		stats[CategoryTOTPCodes] = len(doc.TOTPCodes)
		total := 0
		for _, n := range stats {
			total += n
		}
		stats["total"] = total
		return nil
	})
	return stats, err
}

// SecurityReport audits stored credentials for weak, reused, and stale
// passwords.
func (c *Controller) SecurityReport() (*security.Report, error) {
	var creds []security.Credential
	err := c.view(func(doc *Document) error {
		for _, e := range doc.Passwords {
			stamp := e.Modified
			if stamp == "" {
				stamp = e.Created
			}
			updated, _ := time.Parse(time.RFC3339, stamp)
			creds = append(creds, security.Credential{
				ID:       e.ID,
				Title:    e.Title,
				Password: e.Password,
				Updated:  updated,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return security.Audit(creds, time.Now()), nil
}
