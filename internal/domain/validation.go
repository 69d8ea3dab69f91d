package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// PasswordRule is one requirement a new password must satisfy
type PasswordRule struct {
	Label string
	Test  func(string) bool
}

// PasswordRules are checked in order; every failing label is reported
var PasswordRules = []PasswordRule{
	{Label: "At least 8 characters", Test: func(v string) bool { return utf8.RuneCountInString(v) >= 8 }},
	{Label: "One uppercase letter", Test: regexp.MustCompile(`[A-Z]`).MatchString},
	{Label: "One lowercase letter", Test: regexp.MustCompile(`[a-z]`).MatchString},
	{Label: "One number", Test: regexp.MustCompile(`\d`).MatchString},
}

// ValidateEmail returns a message describing what is wrong with value, or ""
func ValidateEmail(value string) string {
	if strings.TrimSpace(value) == "" {
		return "Email is required."
	}
	if !emailPattern.MatchString(NormalizeEmail(value)) {
		return "Enter a valid email address."
	}
	return ""
}

// ValidateDisplayName returns a message describing what is wrong with value, or ""
func ValidateDisplayName(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "Name is required."
	}
	if utf8.RuneCountInString(trimmed) < 2 {
		return "Name must be at least 2 characters."
	}
	return ""
}

// ValidatePassword returns the labels of every rule value fails
func ValidatePassword(value string) []string {
	if value == "" {
		return []string{"Password is required."}
	}
	var failed []string
	for _, rule := range PasswordRules {
		if !rule.Test(value) {
			failed = append(failed, rule.Label)
		}
	}
	return failed
}

// Validate checks every field of a signup and reports all problems at once
func (r SignUpRequest) Validate() error {
	fields := make(map[string][]string)
	if msg := ValidateDisplayName(r.Name); msg != "" {
		fields["name"] = []string{msg}
	}
	if msg := ValidateEmail(r.Email); msg != "" {
		fields["email"] = []string{msg}
	}
	if failed := ValidatePassword(r.Password); len(failed) > 0 {
		fields["password"] = failed
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Validate checks an email login before any lookup happens
func (r SignInRequest) Validate() error {
	fields := make(map[string][]string)
	if msg := ValidateEmail(r.Email); msg != "" {
		fields["email"] = []string{msg}
	}
	if r.Password == "" {
		fields["password"] = []string{"Password is required."}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Validate checks a Google login payload
func (r GoogleLoginRequest) Validate() error {
	if msg := ValidateEmail(r.Email); msg != "" {
		return &ValidationError{Fields: map[string][]string{"email": {msg}}}
	}
	return nil
}
