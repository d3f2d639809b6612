package vault

import (
	"strings"
	"testing"
)

func TestDocumentRoundTrip(t *testing.T) {
	doc := NewDocument()
	doc.Passwords = append(doc.Passwords, PasswordEntry{
		ID: "0001020304050607", Title: "email", Username: "me", Password: "s3cret",
		Tags: []string{"work"}, Created: "2026-01-01T00:00:00Z", Modified: "2026-01-01T00:00:00Z",
	})
	doc.Notes = append(doc.Notes, NoteEntry{
		ID: "1111111111111111", Title: "wifi", Content: "hunter2",
		Tags: []string{}, Created: "2026-01-01T00:00:00Z", Modified: "2026-01-01T00:00:00Z",
	})

	data, err := EncodeDocument(doc)
	if err != nil {
		t.Fatalf("EncodeDocument() error = %v", err)
	}
	got, err := DecodeDocument(data)
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}
	if len(got.Passwords) != 1 || got.Passwords[0].Title != "email" {
		t.Errorf("passwords did not round-trip: %+v", got.Passwords)
	}
	if len(got.Notes) != 1 || got.Notes[0].Content != "hunter2" {
		t.Errorf("notes did not round-trip: %+v", got.Notes)
	}
}

func TestEncodeAlwaysWritesAllCategories(t *testing.T) {
	data, err := EncodeDocument(&Document{})
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	categories := []string{
		CategoryPasswords, CategoryAPIKeys, CategoryNotes, CategorySSHKeys,
		CategoryFiles, CategoryEncryptedFolders, CategoryPasswordHistory, CategoryTOTPCodes,
	}
	prev := -1
	for _, cat := range categories {
		idx := strings.Index(text, `"`+cat+`"`)
		if idx < 0 {
			t.Errorf("category %q missing from encoded document", cat)
			continue
		}
		if idx < prev {
			t.Errorf("category %q out of canonical order", cat)
		}
		prev = idx
	}
	if strings.Contains(text, "null") {
		t.Error("empty categories encoded as null instead of empty lists")
	}
}

func TestDecodePopulatesMissingCategories(t *testing.T) {
	got, err := DecodeDocument([]byte(`{"passwords": []}`))
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}
	if got.TOTPCodes == nil || got.PasswordHistory == nil || got.Files == nil {
		t.Error("missing categories were not auto-populated")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeDocument([]byte("not json")); err == nil {
		t.Error("DecodeDocument accepted garbage")
	}
}

func TestNewEntryID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewEntryID()
		if err != nil {
			t.Fatalf("NewEntryID() error = %v", err)
		}
		if len(id) != 16 {
			t.Fatalf("id %q has length %d, want 16", id, len(id))
		}
		for _, c := range id {
			if !strings.ContainsRune("0123456789abcdef", c) {
				t.Fatalf("id %q contains non-hex character", id)
			}
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestPasswordHistoryPruning(t *testing.T) {
	doc := NewDocument()
	for i := 0; i < MaxPasswordHistory+3; i++ {
		if err := doc.recordPasswordHistory("pw1", "email", "old"+string(rune('a'+i))); err != nil {
			t.Fatal(err)
		}
	}
	// History for an unrelated entry must not count against pw1's budget.
	if err := doc.recordPasswordHistory("pw2", "bank", "other"); err != nil {
		t.Fatal(err)
	}

	var pw1 []HistoryEntry
	for _, h := range doc.PasswordHistory {
		if h.PasswordID == "pw1" {
			pw1 = append(pw1, h)
		}
	}
	if len(pw1) != MaxPasswordHistory {
		t.Errorf("pw1 history = %d records, want %d", len(pw1), MaxPasswordHistory)
	}
	var pw2 int
	for _, h := range doc.PasswordHistory {
		if h.PasswordID == "pw2" {
			pw2++
		}
	}
	if pw2 != 1 {
		t.Errorf("pw2 history = %d records, want 1", pw2)
	}
}
