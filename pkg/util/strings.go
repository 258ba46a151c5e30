package util

import (
	"strings"
	"unicode"
)

// Humanize turns an identifier like "exchange_inflow" into "Exchange Inflow".
func Humanize(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, p := range parts {
		r := []rune(strings.ToLower(p))
		r[0] = unicode.ToUpper(r[0])
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}
