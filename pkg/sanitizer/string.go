package sanitizer

import (
	"strings"
	"unicode"
)

// maxNameRunes bounds a customer name as it is stored and shown on the
// provider's day board.
const maxNameRunes = 80

// NormalizeName drops control and format characters, joins whitespace runs
// into single spaces and cuts the result to maxNameRunes.
func NormalizeName(name string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, name)

	joined := strings.Join(strings.Fields(clean), " ")
	if runes := []rune(joined); len(runes) > maxNameRunes {
		joined = strings.TrimSpace(string(runes[:maxNameRunes]))
	}
	return joined
}
