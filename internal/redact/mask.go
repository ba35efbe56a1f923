package redact

import (
	"strings"
)

// Mask replaces each entity span in text with its partially redacted form.
// Entities must not overlap; Detect guarantees this.
func Mask(text string, entities []Entity) string {
	if len(entities) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, e := range entities {
		if e.Start < last || e.End > len(text) {
			continue
		}
		b.WriteString(text[last:e.Start])
		b.WriteString(maskValue(e))
		last = e.End
	}
	b.WriteString(text[last:])
	return b.String()
}

func maskValue(e Entity) string {
	v := e.Value
	switch e.Type {
	case TypeEmail:
		local, domain, ok := strings.Cut(v, "@")
		if !ok || local == "" {
			return "***"
		}
		return local[:1] + "***@" + domain

	case TypeCreditCard:
		d := digitsOf(v)
		return "**** **** **** " + d[len(d)-4:]

	case TypeIBAN:
		compact := strings.ReplaceAll(v, " ", "")
		return compact[:2] + strings.Repeat("*", len(compact)-6) + compact[len(compact)-4:]

	case TypePhone:
		return maskDigitsExceptLast(v, 2)

	case TypeIPAddress:
		return "[IP]"

	case TypeURLCredentials:
		scheme, rest, _ := strings.Cut(v, "://")
		_, host, _ := strings.Cut(rest, "@")
		return scheme + "://***:***@" + host

	default:
		return "[REDACTED-" + strings.ToUpper(string(e.Type)) + "]"
	}
}

// maskDigitsExceptLast replaces every digit except the final keep digits
// with '*', leaving separators in place.
func maskDigitsExceptLast(s string, keep int) string {
	total := len(digitsOf(s))
	out := []byte(s)
	seen := 0
	for i := range out {
		if out[i] >= '0' && out[i] <= '9' {
			if seen < total-keep {
				out[i] = '*'
			}
			seen++
		}
	}
	return string(out)
}
