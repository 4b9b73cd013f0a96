package utils

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.StrictPolicy()

const maxStripRounds = 8

// StripMarkup removes every HTML element from input and leaves plain text.
//
// Entities are decoded after each sanitizing round, and rounds repeat until the
// text stops changing, so escaped or fragmented markup cannot reappear in the
// result. Each round that changes anything makes the text shorter. If it has
// not settled after maxStripRounds, the sanitizer's escaped output is returned.
func StripMarkup(input string) string {
	text := input
	for i := 0; i < maxStripRounds; i++ {
		next := html.UnescapeString(sanitizer.Sanitize(text))
		if next == text {
			return text
		}
		text = next
	}
	return sanitizer.Sanitize(text)
}
