package entity

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// maliciousPatterns match markup and script fragments that must never be
// stored in user-visible text fields.
var maliciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*/?\s*script`),
	regexp.MustCompile(`(?i)<\s*/?\s*(iframe|object|embed|img|svg)\b`),
	regexp.MustCompile(`(?i)(java|vb)script\s*:`),
	regexp.MustCompile(`(?i)\bon[a-z]+\s*(\([^)]*\))?\s*=`),
	regexp.MustCompile(`(?i)\b(eval|expression)\s*\(`),
}

// Validator accumulates field errors. The zero value is ready to use.
type Validator struct {
	errs []FieldError
}

// Add records a failure for field.
func (v *Validator) Add(field, message string, value any) {
	v.errs = append(v.errs, FieldError{Field: field, Message: message, InvalidValue: value})
}

// NotEmpty rejects an empty string.
func (v *Validator) NotEmpty(field, value string) {
	if value == "" {
		v.Add(field, "must not be empty", value)
	}
}

// Required rejects a missing reference (zero id).
func (v *Validator) Required(field string, id int64) {
	if id <= 0 {
		v.Add(field, "must not be null", nil)
	}
}

// MaxLength rejects strings longer than max characters.
func (v *Validator) MaxLength(field, value string, maxLen int) {
	if utf8.RuneCountInString(value) > maxLen {
		v.Add(field, fmt.Sprintf("size must be between 0 and %d", maxLen), value)
	}
}

// NoMaliciousCode rejects script and event-handler fragments.
func (v *Validator) NoMaliciousCode(field, value string) {
	if ContainsMaliciousCode(value) {
		v.Add(field, "contains malicious code", value)
	}
}

// Text applies MaxLength and NoMaliciousCode, reporting at most one error
// for the field.
func (v *Validator) Text(field, value string, maxLen int) {
	before := len(v.errs)
	v.NoMaliciousCode(field, value)
	if len(v.errs) == before {
		v.MaxLength(field, value, maxLen)
	}
}

// Err returns nil when nothing failed, otherwise a *ValidationError.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	out := make([]FieldError, len(v.errs))
	copy(out, v.errs)
	return &ValidationError{Errors: out}
}

// ContainsMaliciousCode reports whether s holds a script or handler fragment.
func ContainsMaliciousCode(s string) bool {
	if s == "" {
		return false
	}
	for _, re := range maliciousPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
