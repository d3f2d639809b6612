// Package security scores password strength and audits stored credentials
// for weak, reused, and stale passwords.
package security

import (
	"time"
	"unicode"
)

// Level buckets a strength score for display.
type Level int

const (
	// LevelWeak indicates a score below 40.
	LevelWeak Level = iota
	// LevelFair indicates a score of 40-59.
	LevelFair
	// LevelGood indicates a score of 60-79.
	LevelGood
	// LevelStrong indicates a score of 80 or more.
	LevelStrong
)

// String returns a human-readable representation of the level.
func (l Level) String() string {
	switch l {
	case LevelWeak:
		return "Weak"
	case LevelFair:
		return "Fair"
	case LevelGood:
		return "Good"
	case LevelStrong:
		return "Strong"
	default:
		return "Unknown"
	}
}

// Rating is the result of scoring one password.
type Rating struct {
	Score    int
	Level    Level
	Feedback []string
}

// Check scores a password on a 0-100 scale. Length dominates: 16+ runes
// earn 40 points, with 15 more for each character class present. Feedback
// lists the concrete improvements that would raise the score.
func Check(password string) Rating {
	var r Rating

	runes := []rune(password)
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, c := range runes {
		switch {
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsDigit(c):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	switch {
	case len(runes) >= 16:
		r.Score += 40
	case len(runes) >= 12:
		r.Score += 30
	case len(runes) >= 8:
		r.Score += 20
	default:
		r.Score += 10
		r.Feedback = append(r.Feedback, "Password too short (min 8 chars)")
	}

	if hasLower {
		r.Score += 15
	} else {
		r.Feedback = append(r.Feedback, "Add lowercase letters")
	}
	if hasUpper {
		r.Score += 15
	} else {
		r.Feedback = append(r.Feedback, "Add uppercase letters")
	}
	if hasDigit {
		r.Score += 15
	} else {
		r.Feedback = append(r.Feedback, "Add numbers")
	}
	if hasSymbol {
		r.Score += 15
	} else {
		r.Feedback = append(r.Feedback, "Add symbols (!@#$...)")
	}

	switch {
	case r.Score >= 80:
		r.Level = LevelStrong
	case r.Score >= 60:
		r.Level = LevelGood
	case r.Score >= 40:
		r.Level = LevelFair
	default:
		r.Level = LevelWeak
	}
	return r
}

// StaleAfter is how long a password may go unchanged before the audit
// flags it.
const StaleAfter = 365 * 24 * time.Hour

// Credential is the minimal view of a stored password the audit needs.
type Credential struct {
	ID       string
	Title    string
	Password string
	Updated  time.Time
}

// Finding names one credential flagged by the audit.
type Finding struct {
	ID    string
	Title string
}

// Report summarizes a vault-wide password audit.
type Report struct {
	Total  int
	Weak   []Finding
	Reused []Finding
	Stale  []Finding
}

// Audit checks every credential for weak scores, passwords shared between
// entries, and passwords older than StaleAfter. Entries keep their input
// order within each finding list.
func Audit(creds []Credential, now time.Time) *Report {
	report := &Report{Total: len(creds)}

	seen := make(map[string]int, len(creds))
	for _, c := range creds {
		seen[c.Password]++
	}

	for _, c := range creds {
		finding := Finding{ID: c.ID, Title: c.Title}
		if Check(c.Password).Level == LevelWeak {
			report.Weak = append(report.Weak, finding)
		}
		if c.Password != "" && seen[c.Password] > 1 {
			report.Reused = append(report.Reused, finding)
		}
		if !c.Updated.IsZero() && now.Sub(c.Updated) > StaleAfter {
			report.Stale = append(report.Stale, finding)
		}
	}
	return report
}
