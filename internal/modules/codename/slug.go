package codename

import (
	"strings"
	"unicode"
)

// Slugify normalizes a display name into a URL-safe token: lowercase, runs of
// anything that is not a letter or digit collapse into a single hyphen.
// Slugifying an already valid slug yields the same slug.
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		} else {
			pendingHyphen = true
		}
	}

	return b.String()
}
