package vault

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func unlockedController(t *testing.T) *Controller {
	t.Helper()
	c := New(Options{Dir: t.TempDir()})
	createTestVault(t, c)
	return c
}

func TestPasswordCRUD(t *testing.T) {
	c := unlockedController(t)

	id, err := c.AddPassword(PasswordEntry{
		Title: "email", Username: "me@example.com", Password: "first-Passw0rd!",
		URL: "https://mail.example.com",
	})
	if err != nil {
		t.Fatalf("AddPassword() error = %v", err)
	}
	if len(id) != 16 {
		t.Errorf("entry id %q length = %d, want 16", id, len(id))
	}

	got, err := c.GetPassword(id)
	if err != nil {
		t.Fatalf("GetPassword() error = %v", err)
	}
	if got.Created == "" || got.Modified != got.Created {
		t.Errorf("timestamps not initialized: created=%q modified=%q", got.Created, got.Modified)
	}

	// Changing the password records the old value in history.
	updated := *got
	updated.Password = "second-Passw0rd!"
	if err := c.UpdatePassword(id, updated); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}
	history, err := c.PasswordHistory(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].OldPassword != "first-Passw0rd!" {
		t.Errorf("history = %+v, want one record with the old password", history)
	}

	// Updating without changing the password leaves history alone.
	updated.Title = "email (personal)"
	if err := c.UpdatePassword(id, updated); err != nil {
		t.Fatal(err)
	}
	if history, _ = c.PasswordHistory(id); len(history) != 1 {
		t.Errorf("history grew on a non-password update: %d records", len(history))
	}

	// Deleting the password deletes its history too.
	if err := c.DeletePassword(id); err != nil {
		t.Fatalf("DeletePassword() error = %v", err)
	}
	if _, err := c.GetPassword(id); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("GetPassword() after delete = %v, want ErrEntryNotFound", err)
	}
	if history, _ = c.PasswordHistory(id); len(history) != 0 {
		t.Errorf("history survived entry deletion: %+v", history)
	}

	if err := c.DeletePassword("ffffffffffffffff"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("deleting unknown id = %v, want ErrEntryNotFound", err)
	}
}

func TestEntriesPersistAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	c := New(Options{Dir: dir})
	createTestVault(t, c)

	apiID, err := c.AddAPIKey(APIKeyEntry{Service: "github", Key: "ghp_xxx"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddSSHKey(SSHKeyEntry{Name: "deploy", PrivateKey: "-----BEGIN..."}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddTOTP(TOTPEntry{Name: "github", Secret: "JBSWY3DP", Issuer: "GitHub"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Lock(); err != nil {
		t.Fatal(err)
	}

	c2 := New(Options{Dir: dir})
	if _, err := c2.Unlock(testPassword); err != nil {
		t.Fatal(err)
	}
	keys, err := c2.ListAPIKeys()
	if err != nil || len(keys) != 1 || keys[0].ID != apiID {
		t.Errorf("ListAPIKeys() = %v, %v", keys, err)
	}
	ssh, err := c2.ListSSHKeys()
	if err != nil || len(ssh) != 1 || ssh[0].Name != "deploy" {
		t.Errorf("ListSSHKeys() = %v, %v", ssh, err)
	}
	totp, err := c2.ListTOTP()
	if err != nil || len(totp) != 1 || totp[0].Secret != "JBSWY3DP" {
		t.Errorf("ListTOTP() = %v, %v", totp, err)
	}
	if err := c2.Lock(); err != nil {
		t.Fatal(err)
	}
}

func TestNoteUpdate(t *testing.T) {
	c := unlockedController(t)
	id, err := c.AddNote(NoteEntry{Title: "draft", Content: "v1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateNote(id, "final", "v2"); err != nil {
		t.Fatal(err)
	}
	notes, err := c.ListNotes()
	if err != nil || len(notes) != 1 {
		t.Fatal(err)
	}
	if notes[0].Title != "final" || notes[0].Content != "v2" {
		t.Errorf("note = %+v after update", notes[0])
	}
	if notes[0].Modified == notes[0].Created && notes[0].Modified == "" {
		t.Error("modified timestamp not set")
	}
	if err := c.UpdateNote("ffffffffffffffff", "x", "y"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("updating unknown note = %v, want ErrEntryNotFound", err)
	}
}

func TestFileStorage(t *testing.T) {
	c := unlockedController(t)
	payload := bytes.Repeat([]byte{0xAB, 0xCD}, 512)

	id, err := c.AddFile("secret.pdf", payload, "contract", nil)
	if err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}

	files, err := c.ListFiles()
	if err != nil || len(files) != 1 {
		t.Fatalf("ListFiles() = %v, %v", files, err)
	}
	if files[0].Data != nil {
		t.Error("ListFiles() leaked file payload")
	}
	if files[0].Size != len(payload) {
		t.Errorf("Size = %d, want %d", files[0].Size, len(payload))
	}

	data, err := c.GetFileData(id)
	if err != nil {
		t.Fatalf("GetFileData() error = %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Error("file payload did not round-trip")
	}

	if err := c.DeleteFile(id); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetFileData(id); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("GetFileData() after delete = %v, want ErrEntryNotFound", err)
	}
}

func TestEncryptedFolderTracking(t *testing.T) {
	c := unlockedController(t)

	folder := t.TempDir()
	if err := os.WriteFile(filepath.Join(folder, "a.txt"), []byte("aaaa"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(folder, "sub"), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(folder, "sub", "b.txt"), []byte("bb"), 0o600); err != nil {
		t.Fatal(err)
	}

	id, err := c.AddEncryptedFolder(folder, "project files")
	if err != nil {
		t.Fatalf("AddEncryptedFolder() error = %v", err)
	}

	folders, err := c.ListEncryptedFolders()
	if err != nil || len(folders) != 1 {
		t.Fatalf("ListEncryptedFolders() = %v, %v", folders, err)
	}
	if folders[0].FileCount != 2 || folders[0].Size != 6 {
		t.Errorf("folder stats = count %d size %d, want 2 and 6", folders[0].FileCount, folders[0].Size)
	}
	if folders[0].FileList != nil {
		t.Error("ListEncryptedFolders() leaked the file list")
	}

	if err := c.DeleteEncryptedFolder(id); err != nil {
		t.Fatal(err)
	}

	if _, err := c.AddEncryptedFolder(filepath.Join(folder, "a.txt"), ""); err == nil {
		t.Error("AddEncryptedFolder accepted a file path")
	}
}

func TestSearch(t *testing.T) {
	c := unlockedController(t)
	if _, err := c.AddPassword(PasswordEntry{Title: "GitHub", Username: "octocat", Password: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddAPIKey(APIKeyEntry{Service: "github-api", Key: "k"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddNote(NoteEntry{Title: "shopping", Content: "milk"}); err != nil {
		t.Fatal(err)
	}

	results, err := c.Search("github", "")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search(github) = %d results, want 2: %+v", len(results), results)
	}

	results, err = c.Search("github", CategoryAPIKeys)
	if err != nil || len(results) != 1 || results[0].Category != CategoryAPIKeys {
		t.Errorf("scoped search = %+v, %v", results, err)
	}

	results, err = c.Search("nomatch", "")
	if err != nil || len(results) != 0 {
		t.Errorf("Search(nomatch) = %+v, %v", results, err)
	}
}

func TestStats(t *testing.T) {
	c := unlockedController(t)
	if _, err := c.AddPassword(PasswordEntry{Title: "a", Password: "p"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddNote(NoteEntry{Title: "n", Content: "c"}); err != nil {
		t.Fatal(err)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats[CategoryPasswords] != 1 || stats[CategoryNotes] != 1 {
		t.Errorf("stats = %v", stats)
	}
	if stats["total"] != 2 {
		t.Errorf("total = %d, want 2", stats["total"])
	}
}

func TestSecurityReport(t *testing.T) {
	c := unlockedController(t)
	if _, err := c.AddPassword(PasswordEntry{Title: "weak", Password: "kitty"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddPassword(PasswordEntry{Title: "dup1", Password: "Sh@red-Passw0rd1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddPassword(PasswordEntry{Title: "dup2", Password: "Sh@red-Passw0rd1"}); err != nil {
		t.Fatal(err)
	}

	report, err := c.SecurityReport()
	if err != nil {
		t.Fatalf("SecurityReport() error = %v", err)
	}
	if report.Total != 3 {
		t.Errorf("Total = %d, want 3", report.Total)
	}
	if len(report.Weak) != 1 || report.Weak[0].Title != "weak" {
		t.Errorf("Weak = %+v", report.Weak)
	}
	if len(report.Reused) != 2 {
		t.Errorf("Reused = %+v", report.Reused)
	}
	if len(report.Stale) != 0 {
		t.Errorf("Stale = %+v for brand-new entries", report.Stale)
	}
}
