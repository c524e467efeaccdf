package logging

import (
	"regexp"
)

const (
	// MaxNotesLogLength is the maximum length of intake notes to log.
	MaxNotesLogLength = 80
	// RedactedText is the replacement text for sensitive data.
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match potential passwords in connection strings
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Pattern to match connection string credentials (user:pass@host format)
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)

	// Pattern to match email addresses
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// Pattern to match US-style phone numbers (with or without separators)
	phonePattern = regexp.MustCompile(`\+?1?[\s.\-]?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`)

	// Pattern to match dates of birth in common formats (MM/DD/YYYY, YYYY-MM-DD)
	dobPattern = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4}|\d{4}-\d{2}-\d{2})\b`)
)

// SanitizeConnectionString removes credentials from connection strings.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// RedactPHI masks phone numbers, emails, and dates of birth in free text so
// intake notes and patient identifiers never land in logs verbatim.
func RedactPHI(s string) string {
	if s == "" {
		return ""
	}

	redacted := emailPattern.ReplaceAllString(s, RedactedText)
	redacted = phonePattern.ReplaceAllString(redacted, RedactedText)
	redacted = dobPattern.ReplaceAllString(redacted, RedactedText)

	return redacted
}

// NotesPreview returns a redacted, truncated preview of intake notes that is
// safe to attach to a log line.
func NotesPreview(notes string) string {
	redacted := RedactPHI(notes)
	if len(redacted) > MaxNotesLogLength {
		return redacted[:MaxNotesLogLength] + "..."
	}
	return redacted
}
