// Package unicode finds code points used to smuggle instructions past a
// reader: invisible characters, direction overrides, tag characters and
// Latin look-alikes from other scripts.
package unicode

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Threat categories.
const (
	CategoryZeroWidth   = "zero-width"
	CategoryBidi        = "bidi-override"
	CategoryTag         = "tag-char"
	CategoryControl     = "control-char"
	CategoryInvalidUTF8 = "invalid-utf8"
	CategoryHomoglyph   = "homoglyph"
)

// Threat is one suspicious code point in the input.
type Threat struct {
	Category  string
	Position  int    // byte offset in the input
	Codepoint string // e.g. "U+200B"
}

// Hidden reports whether the code point is invisible to a human reader.
// Homoglyphs render, so they are not hidden.
func (t Threat) Hidden() bool {
	return t.Category != CategoryHomoglyph
}

// Report holds the output of Inspect.
type Report struct {
	Threats []Threat

	// Stripped is the input with every hidden code point removed.
	// Homoglyphs are left in place; see Deconfuse.
	Stripped string

	// TagPayload is the ASCII text encoded in tag characters, if any.
	TagPayload string

	Hidden     int
	Homoglyphs int
}

// Clean reports whether nothing suspicious was found.
func (r Report) Clean() bool { return len(r.Threats) == 0 }

// Inspect walks the input once and classifies every code point.
func Inspect(input string) Report {
	var (
		report   Report
		stripped strings.Builder
		payload  strings.Builder
	)
	stripped.Grow(len(input))

	for i := 0; i < len(input); {
		r, size := utf8.DecodeRuneInString(input[i:])

		if r == utf8.RuneError && size == 1 {
			report.Threats = append(report.Threats, Threat{
				Category:  CategoryInvalidUTF8,
				Position:  i,
				Codepoint: fmt.Sprintf("0x%02X", input[i]),
			})
			report.Hidden++
			i++
			continue
		}

		cat := classify(r)
		switch {
		case cat == "":
			stripped.WriteRune(r)
		case cat == CategoryHomoglyph:
			report.Threats = append(report.Threats, Threat{Category: cat, Position: i, Codepoint: codepoint(r)})
			report.Homoglyphs++
			stripped.WriteRune(r)
		default:
			report.Threats = append(report.Threats, Threat{Category: cat, Position: i, Codepoint: codepoint(r)})
			report.Hidden++
			if cat == CategoryTag && r >= 0xE0020 && r <= 0xE007E {
				payload.WriteRune(r - 0xE0000)
			}
		}
		i += size
	}

	report.Stripped = stripped.String()
	report.TagPayload = payload.String()
	return report
}

// HasHidden reports whether the input contains any invisible code point.
func HasHidden(input string) bool {
	for i := 0; i < len(input); {
		r, size := utf8.DecodeRuneInString(input[i:])
		if r == utf8.RuneError && size == 1 {
			return true
		}
		if c := classify(r); c != "" && c != CategoryHomoglyph {
			return true
		}
		i += size
	}
	return false
}

// Strip removes every hidden code point.
func Strip(input string) string {
	return Inspect(input).Stripped
}

// Deconfuse maps Cyrillic and Greek look-alikes to their Latin counterparts.
func Deconfuse(input string) string {
	return strings.Map(func(r rune) rune {
		if l, ok := cyrillicHomoglyphs[r]; ok {
			return l
		}
		if l, ok := greekHomoglyphs[r]; ok {
			return l
		}
		return r
	}, input)
}

func codepoint(r rune) string {
	return fmt.Sprintf("U+%04X", r)
}

func classify(r rune) string {
	switch {
	case isZeroWidth(r):
		return CategoryZeroWidth
	case isBidiOverride(r):
		return CategoryBidi
	case isTagCharacter(r):
		return CategoryTag
	case isUnsafeControl(r):
		return CategoryControl
	case isHomoglyph(r):
		return CategoryHomoglyph
	}
	return ""
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200B', // ZERO WIDTH SPACE
		'\u200C', // ZERO WIDTH NON-JOINER
		'\u200D', // ZERO WIDTH JOINER
		'\uFEFF', // ZERO WIDTH NO-BREAK SPACE (BOM)
		'\u2060', // WORD JOINER
		'\u180E', // MONGOLIAN VOWEL SEPARATOR
		'\u00AD', // SOFT HYPHEN
		'\u200E', // LEFT-TO-RIGHT MARK
		'\u200F': // RIGHT-TO-LEFT MARK
		return true
	}
	return false
}

func isBidiOverride(r rune) bool {
	return (r >= '\u202A' && r <= '\u202E') || (r >= '\u2066' && r <= '\u2069')
}

func isTagCharacter(r rune) bool {
	return r >= 0xE0001 && r <= 0xE007F
}

// isUnsafeControl flags C0/C1 controls. Tab, newline and carriage return
// are ordinary prompt whitespace.
func isUnsafeControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return r <= 0x1F || r == 0x7F || (r >= 0x80 && r <= 0x9F)
}

func isHomoglyph(r rune) bool {
	if unicode.Is(unicode.Cyrillic, r) {
		_, ok := cyrillicHomoglyphs[r]
		return ok
	}
	if unicode.Is(unicode.Greek, r) {
		_, ok := greekHomoglyphs[r]
		return ok
	}
	return false
}

var cyrillicHomoglyphs = map[rune]rune{
	'а': 'a', 'А': 'A', 'В': 'B', 'с': 'c', 'С': 'C', 'е': 'e', 'Е': 'E',
	'Н': 'H', 'і': 'i', 'І': 'I', 'К': 'K', 'М': 'M', 'о': 'o', 'О': 'O',
	'р': 'p', 'Р': 'P', 'Т': 'T', 'х': 'x', 'Х': 'X', 'у': 'y', 'У': 'Y',
}

var greekHomoglyphs = map[rune]rune{
	'Α': 'A', 'Β': 'B', 'Ε': 'E', 'Η': 'H', 'Ι': 'I', 'Κ': 'K', 'Μ': 'M',
	'Ν': 'N', 'Ο': 'O', 'ο': 'o', 'Ρ': 'P', 'Τ': 'T', 'Χ': 'X', 'Υ': 'Y',
	'Ζ': 'Z',
}
