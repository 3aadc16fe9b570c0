package validators

import (
	"strings"
	"unicode"
)

const specialChars = `!@#$%^&*(),.?":{}|<>`

// PasswordStrength scores a password on five criteria.
type PasswordStrength struct {
	Valid    bool     `json:"valid"`
	Strength int      `json:"strength"`
	Missing  []string `json:"missing,omitempty"`
	Message  string   `json:"message"`
}

// CheckPassword needs three of: length >= 8, lowercase, uppercase, digit,
// special character.
func CheckPassword(password string) PasswordStrength {
	if password == "" {
		return PasswordStrength{Message: "password is required"}
	}

	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}

	checks := []struct {
		ok   bool
		hint string
	}{
		{len([]rune(password)) >= 8, "at least 8 characters"},
		{lower, "a lowercase letter"},
		{upper, "an uppercase letter"},
		{digit, "a digit"},
		{special, "a special character"},
	}

	out := PasswordStrength{}
	for _, c := range checks {
		if c.ok {
			out.Strength++
		} else {
			out.Missing = append(out.Missing, c.hint)
		}
	}
	out.Valid = out.Strength >= 3
	if len(out.Missing) == 0 {
		out.Message = "strong password"
	} else {
		out.Message = "needs " + strings.Join(out.Missing, ", ")
	}
	return out
}
