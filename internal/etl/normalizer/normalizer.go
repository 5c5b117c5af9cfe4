// Package normalizer provides text sanitization shared by the ETL stages:
// whitespace collapsing, accent-preserving title casing for instructor names,
// and classroom identifier validation.
package normalizer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// CollapseSpaces trims the input and collapses internal whitespace runs
// (spaces, tabs, newlines left over from PDF cell extraction) into a single
// space.
func CollapseSpaces(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return whitespaceRun.ReplaceAllString(value, " ")
}

// acronymMaxLen is the longest all-uppercase token kept verbatim by SafeTitle.
// Timetables abbreviate titles and program names (DR, MTRO, ICC) in at most
// four letters; anything longer is a shouted surname.
const acronymMaxLen = 4

// SafeTitle title-cases a person name while preserving accents and short
// all-uppercase tokens, which are treated as acronyms.
//
//	SafeTitle("juan PEREZ")     => "Juan Perez"
//	SafeTitle("MARTÍN lópez")   => "Martín López"
//	SafeTitle("DR LUIS OSORIO") => "DR LUIS Osorio"
func SafeTitle(value string) string {
	value = CollapseSpaces(value)
	if value == "" {
		return ""
	}

	caser := cases.Title(language.Spanish)
	tokens := strings.Split(value, " ")
	normalized := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if isAcronym(token) {
			normalized = append(normalized, token)
			continue
		}
		normalized = append(normalized, caser.String(strings.ToLower(token)))
	}
	return strings.Join(normalized, " ")
}

// isAcronym reports whether the token is a short all-uppercase word.
func isAcronym(token string) bool {
	if utf8.RuneCountInString(token) > acronymMaxLen {
		return false
	}
	hasLetter := false
	for _, r := range token {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// ValidSalon reports whether a classroom identifier matches the configured
// pattern. An empty value is considered valid; presence is checked by the
// extractor itself.
func ValidSalon(value string, pattern *regexp.Regexp) bool {
	if value == "" {
		return true
	}
	return pattern.MatchString(value)
}
