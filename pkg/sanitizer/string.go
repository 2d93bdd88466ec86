package sanitizer

import (
	"strings"
	"unicode"
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
			continue
		}
		result.WriteRune(r)
		lastWasSpace = false
	}

	return result.String()
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeIdentifier trims resource and user ids; their case is significant.
func NormalizeIdentifier(id string) string {
	return strings.TrimSpace(id)
}

// NormalizeFreeText keeps line breaks of multi-line notes but trims each line
// and drops blank ones.
func NormalizeFreeText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = TrimAndNormalize(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
