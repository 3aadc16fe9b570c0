package validators

import (
	"regexp"
	"strings"

	"github.com/thaitruongdao01-afk/saintpaul/pkg/enums"
)

var (
	phoneSeparators = regexp.MustCompile(`[\s\-.]`)
	vnPhonePattern  = regexp.MustCompile(`^(\+84|0)[0-9]{9,10}$`)
	idCardPattern   = regexp.MustCompile(`^(\d{9}|\d{12})$`)
)

// SanitizeString trims input and cuts it to maxLen runes.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 {
		if runes := []rune(trimmed); len(runes) > maxLen {
			return string(runes[:maxLen])
		}
	}
	return trimmed
}

// IsVNPhone accepts 0xxxxxxxxx or +84xxxxxxxxx, ignoring spaces, dashes and dots.
func IsVNPhone(phone string) bool {
	if phone == "" {
		return false
	}
	return vnPhonePattern.MatchString(phoneSeparators.ReplaceAllString(phone, ""))
}

// IsIDCard accepts the old 9-digit and the new 12-digit identity numbers.
func IsIDCard(id string) bool {
	return idCardPattern.MatchString(id)
}

func roleValid(raw string) bool {
	_, err := enums.ParseRole(raw)
	return err == nil
}
