package main

import (
	"testing"
)

func TestNormalizeGuess(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases", in: "Never Gonna Give You Up", want: "never gonna give you up"},
		{name: "strips diacritics", in: "Beyoncé — Déjà Vu", want: "beyonce  deja vu"},
		{name: "strips punctuation", in: "(Don't) Stop Me Now!", want: "dont stop me now"},
		{name: "trims whitespace", in: "  bohemian rhapsody  ", want: "bohemian rhapsody"},
		{name: "drops non-latin characters", in: "song ☂ title ♫", want: "song  title"},
		{name: "empty stays empty", in: "", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeGuess(tc.in)
			if got != tc.want {
				t.Fatalf("normalizeGuess(%q) = %q, want %q", tc.in, got, tc.want)
			}

			// Normalization must be idempotent.
			again := normalizeGuess(got)
			if again != got {
				t.Fatalf("normalizeGuess not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestIsCorrectGuess(t *testing.T) {
	cases := []struct {
		name  string
		guess string
		track string
		want  bool
	}{
		{name: "exact match", guess: "Africa", track: "Africa", want: true},
		{name: "case and accents ignored", guess: "deja vu", track: "Déjà Vu", want: true},
		{name: "partial title accepted", guess: "gonna give you", track: "Never Gonna Give You Up", want: true},
		{name: "extra words accepted", guess: "uh never gonna give you up by rick astley", track: "Never Gonna Give You Up", want: true},
		{name: "punctuation ignored", guess: "dont stop me now", track: "Don't Stop Me Now", want: true},
		{name: "wrong title rejected", guess: "wonderwall", track: "Africa", want: false},
		{name: "single letter rejected", guess: "a", track: "Africa", want: false},
		{name: "punctuation-only rejected", guess: "?!", track: "Africa", want: false},
		{name: "empty rejected", guess: "", track: "Africa", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := isCorrectGuess(tc.guess, tc.track)
			if got != tc.want {
				t.Fatalf("isCorrectGuess(%q, %q) = %v, want %v", tc.guess, tc.track, got, tc.want)
			}
		})
	}
}
