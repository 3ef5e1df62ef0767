package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeTitle returns the display form of a title: NFC, trimmed, with
// underscores and runs of whitespace collapsed to a single space.
func NormalizeTitle(title string) string {
	title = norm.NFC.String(title)
	fields := strings.FieldsFunc(title, func(r rune) bool {
		return r == '_' || unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

// TitleKey returns the uniqueness key for a title. Two titles that differ
// only in case or whitespace share a key.
func TitleKey(title string) string {
	return cases.Fold().String(NormalizeTitle(title))
}
