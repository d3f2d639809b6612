package security

import (
	"testing"
	"time"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		password  string
		wantScore int
		wantLevel Level
	}{
		{"empty", "", 10, LevelWeak},
		{"short lowercase", "abc", 25, LevelWeak},
		{"eight lowercase", "abcdefgh", 35, LevelWeak},
		{"twelve mixed case", "Abcdefghijkl", 60, LevelGood},
		{"all classes at twelve", "Abcdefghij1!", 90, LevelStrong},
		{"sixteen lowercase", "abcdefghijklmnop", 55, LevelFair},
		{"sixteen all classes", "Abcdefghijklmn1!", 100, LevelStrong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.password)
			if got.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", got.Score, tt.wantScore)
			}
			if got.Level != tt.wantLevel {
				t.Errorf("Level = %v, want %v", got.Level, tt.wantLevel)
			}
		})
	}
}

func TestCheckFeedback(t *testing.T) {
	r := Check("abc")
	want := map[string]bool{
		"Password too short (min 8 chars)": true,
		"Add uppercase letters":            true,
		"Add numbers":                      true,
		"Add symbols (!@#$...)":            true,
	}
	if len(r.Feedback) != len(want) {
		t.Fatalf("got %d feedback items, want %d: %v", len(r.Feedback), len(want), r.Feedback)
	}
	for _, f := range r.Feedback {
		if !want[f] {
			t.Errorf("unexpected feedback %q", f)
		}
	}

	if r := Check("Abcdefghijklmn1!"); len(r.Feedback) != 0 {
		t.Errorf("strong password got feedback: %v", r.Feedback)
	}
}

func TestLevelString(t *testing.T) {
	if LevelWeak.String() != "Weak" || LevelStrong.String() != "Strong" {
		t.Error("Level.String() mismatch")
	}
	if Level(99).String() != "Unknown" {
		t.Error("out-of-range level should be Unknown")
	}
}

func TestAudit(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fresh := now.AddDate(0, -1, 0)
	ancient := now.AddDate(-2, 0, 0)

	creds := []Credential{
		{ID: "a", Title: "email", Password: "Str0ng&Unique0ne", Updated: fresh},
		{ID: "b", Title: "bank", Password: "hunter", Updated: fresh},
		{ID: "c", Title: "forum", Password: "Sh@red-Passw0rd1", Updated: fresh},
		{ID: "d", Title: "wiki", Password: "Sh@red-Passw0rd1", Updated: fresh},
		{ID: "e", Title: "router", Password: "Old-But-G0ld!42x", Updated: ancient},
	}

	report := Audit(creds, now)
	if report.Total != 5 {
		t.Errorf("Total = %d, want 5", report.Total)
	}
	if len(report.Weak) != 1 || report.Weak[0].ID != "b" {
		t.Errorf("Weak = %+v, want entry b only", report.Weak)
	}
	if len(report.Reused) != 2 || report.Reused[0].ID != "c" || report.Reused[1].ID != "d" {
		t.Errorf("Reused = %+v, want entries c and d", report.Reused)
	}
	if len(report.Stale) != 1 || report.Stale[0].ID != "e" {
		t.Errorf("Stale = %+v, want entry e only", report.Stale)
	}
}

func TestAuditClean(t *testing.T) {
	now := time.Now()
	report := Audit([]Credential{
		{ID: "a", Title: "a", Password: "Un1que&Strong#01", Updated: now},
		{ID: "b", Title: "b", Password: "An0ther-Secret!2", Updated: now},
	}, now)
	if len(report.Weak)+len(report.Reused)+len(report.Stale) != 0 {
		t.Errorf("clean vault produced findings: %+v", report)
	}
}

func TestAuditEmptyPasswordsNotReused(t *testing.T) {
	now := time.Now()
	report := Audit([]Credential{
		{ID: "a", Title: "a", Password: "", Updated: now},
		{ID: "b", Title: "b", Password: "", Updated: now},
	}, now)
	if len(report.Reused) != 0 {
		t.Error("empty passwords flagged as reused")
	}
}
