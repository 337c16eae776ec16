package summary

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanTag normalises tag to NFC, replaces every character other than
// letters, digits, '_', '-', '/' and '.' with '_', and strips leading slashes.
func CleanTag(tag string) string {
	tag = norm.NFC.String(tag)
	var b strings.Builder
	b.Grow(len(tag))
	for _, r := range tag {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r), r == '_', r == '-', r == '/', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), "/")
}
