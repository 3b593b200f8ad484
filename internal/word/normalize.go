// Package word validates candidate words and compares them against a channel's vocabulary.
package word

import (
	"regexp"
	"strings"
)

// A candidate starts and ends with an ASCII letter; the interior may also
// hold spaces and hyphens.
var validWord = regexp.MustCompile(`^[A-Za-z](?:[A-Za-z -]*[A-Za-z])?$`)

// Normalize validates raw and returns its comparison key. Hyphens become
// spaces, letters are lowercased and whitespace runs collapse to one space.
// ok is false when raw is not a word at all.
func Normalize(raw string) (string, bool) {
	if !validWord.MatchString(raw) {
		return "", false
	}

	lowered := strings.ToLower(strings.ReplaceAll(raw, "-", " "))
	return strings.Join(strings.Fields(lowered), " "), true
}
