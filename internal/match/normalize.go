// Package match implements fuzzy identity matching between orders and
// mailed profiles.
package match

import (
	"regexp"
	"strings"
)

// streetPrefixPattern captures the leading run of non-digit characters up to
// and including the house number, e.g. "Bredgade 19" out of "Bredgade 19, 1.tv.".
var streetPrefixPattern = regexp.MustCompile(`^(\D*\d+)`)

// StreetPrefix returns the house-number-bearing prefix of an address, used as
// a loose address match key so "Bredgade 19, 1.tv." matches "Bredgade 19D".
// Addresses without a number are returned unmodified.
func StreetPrefix(address string) string {
	address = strings.ToLower(strings.TrimSpace(address))
	if m := streetPrefixPattern.FindString(address); m != "" {
		return m
	}
	return address
}

// LastToken returns the last whitespace-separated token of a name, so last
// name comparison tolerates middle names on either side.
func LastToken(name string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// normalize lower-cases and trims a free-text identity field.
func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
