package utils

import "testing"

func TestDetermineLocale_QueryParamWins(t *testing.T) {
	got := DetermineLocale("fr-FR", "en-US,en;q=0.9,fr;q=0.8", SupportedLocales, "en")
	if got != "fr" {
		t.Fatalf("want fr, got %s", got)
	}
}

func TestDetermineLocale_AcceptLanguageOrder(t *testing.T) {
	got := DetermineLocale("", "en-US,en;q=0.9,fr;q=0.8", SupportedLocales, "en")
	if got != "en" {
		t.Fatalf("want en, got %s", got)
	}
}

func TestDetermineLocale_AcceptLanguagePrefersHigherQ(t *testing.T) {
	got := DetermineLocale("", "fr;q=0.9,en;q=0.8", SupportedLocales, "en")
	if got != "fr" {
		t.Fatalf("want fr, got %s", got)
	}
}

func TestDetermineLocale_ZeroQualityIgnored(t *testing.T) {
	got := DetermineLocale("", "fr;q=0,en;q=0.2", SupportedLocales, "fr")
	if got != "en" {
		t.Fatalf("want en, got %s", got)
	}
}

func TestDetermineLocale_DefaultFallback(t *testing.T) {
	got := DetermineLocale("", "de-DE,es;q=0.9", SupportedLocales, "en")
	if got != "en" {
		t.Fatalf("want en fallback, got %s", got)
	}
}
