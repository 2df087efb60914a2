package main

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes accented characters and removes the combining
// marks, so "Beyoncé" and "Beyonce" compare equal.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeGuess lowercases, strips diacritics, and drops everything
// outside [a-z0-9 ] before trimming. Normalizing an already-normalized
// string returns it unchanged.
func normalizeGuess(s string) string {
	s = strings.ToLower(s)

	if stripped, _, err := transform.String(stripMarks, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}

	return strings.TrimSpace(b.String())
}

// isCorrectGuess accepts a guess when either normalized string contains
// the other, tolerating partial titles and extra words in both
// directions. Guesses under two normalized characters are always wrong,
// otherwise a single letter would match most titles.
func isCorrectGuess(guess, trackName string) bool {
	g := normalizeGuess(guess)
	if len(g) < 2 {
		return false
	}

	t := normalizeGuess(trackName)

	return strings.Contains(t, g) || strings.Contains(g, t)
}
