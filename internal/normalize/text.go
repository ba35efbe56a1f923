// Package normalize folds prompt text and tool command lines into canonical
// forms so pattern matching is not defeated by trivial obfuscation.
package normalize

import (
	"strings"

	"github.com/madetocreate/ai-shield/internal/unicode"
)

var leetReplacer = strings.NewReplacer(
	"0", "o",
	"1", "i",
	"3", "e",
	"4", "a",
	"5", "s",
	"7", "t",
	"@", "a",
	"$", "s",
)

// Fold returns a matching form of s: hidden code points removed, look-alike
// letters mapped to Latin, lowercased, leetspeak digits replaced and runs of
// whitespace collapsed to a single space.
//
// The result is for matching only and must never be shown to a user or
// forwarded to a model.
func Fold(s string) string {
	s = unicode.Strip(s)
	s = unicode.Deconfuse(s)
	s = strings.ToLower(s)
	s = leetReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
