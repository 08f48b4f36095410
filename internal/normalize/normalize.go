// Package normalize canonicalizes French place names and headlines for
// gazetteer matching.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldSaint applies the historical saint abbreviations, "sainte" before
// "saint". These are plain substring replacements, not token-boundary aware,
// so mid-word occurrences fold too; the gazetteer keys are built with the same
// function, which keeps lookups consistent.
var foldSaint = strings.NewReplacer("sainte", "ste", "saint", "st")

// Fold canonicalizes free text to the form used as gazetteer key. Steps, in
// order: strip diacritics, lowercase, replace hyphens and apostrophes with a
// space, abbreviate sainte/saint, trim outer whitespace. Fold is pure and
// idempotent.
func Fold(text string) string {
	s := Title(text)
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "'", " ")
	s = strings.ReplaceAll(s, "’", " ") // typographic apostrophe, common in headlines
	s = foldSaint.Replace(s)
	return strings.TrimSpace(s)
}

// Title applies the lighter canonical form used when scanning a whole
// headline: diacritics stripped and lowercased, punctuation left alone.
func Title(text string) string {
	stripped, _, err := transform.String(stripDiacritics, text)
	if err != nil {
		// The chain cannot fail on valid UTF-8; fall back to the raw input.
		stripped = text
	}
	return strings.ToLower(stripped)
}
