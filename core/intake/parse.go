package intake

import (
	"strings"
	"unicode"
)

// MaxAge is the largest age accepted by the shortcut parser.
const MaxAge = 120

func isExplicitSep(r rune) bool {
	return r == ',' || r == ';' || r == '|'
}

func isAnySep(r rune) bool {
	return isExplicitSep(r) || unicode.IsSpace(r)
}

// ParseShortcut recognises "age country citizenship" in one message.
//
// When the text contains ',', ';' or '|' and splitting on those alone yields three
// parts, the parts are used as-is so multi-word values survive ("25, South Korea, Nepal").
// Otherwise whitespace separates too and exactly three tokens are required.
// The first token must be a plain decimal age in 1..MaxAge.
func ParseShortcut(text string) (age, country, citizenship string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", "", false
	}

	var parts []string
	if strings.ContainsFunc(text, isExplicitSep) {
		parts = trimmedFields(text, isExplicitSep)
	}
	if len(parts) != 3 {
		parts = trimmedFields(text, isAnySep)
	}
	if len(parts) != 3 || !validAge(parts[0]) {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func trimmedFields(text string, sep func(rune) bool) []string {
	raw := strings.FieldsFunc(text, sep)
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if f = strings.Join(strings.Fields(f), " "); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func validAge(s string) bool {
	if s == "" || len(s) > 3 {
		return false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		n = n*10 + int(c-'0')
	}
	return n >= 1 && n <= MaxAge
}

// IsCommand reports whether text starts with cmd, ignoring case, an "@botname"
// suffix and any trailing payload ("/START@EuWorkBot ref42" matches "/start").
func IsCommand(text, cmd string) bool {
	cmd = strings.TrimSpace(cmd)
	fields := strings.Fields(text)
	if cmd == "" || len(fields) == 0 {
		return false
	}
	head, _, _ := strings.Cut(fields[0], "@")
	return strings.EqualFold(head, cmd)
}
