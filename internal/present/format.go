// Package present turns feature attributes into what the viewer shows:
// readable labels, popup fragments and layer styles.
package present

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// FormatAttributeName converts a raw attribute field name into a label.
// Underscores become spaces and every space-separated word gets an upper-case
// first character followed by lower case, so "water_status" reads "Water Status".
func FormatAttributeName(name string) string {
	if name == "" {
		return ""
	}
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(word string) string {
	if word == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
}
