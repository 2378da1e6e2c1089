package utils

import (
	"sort"
	"strconv"
	"strings"
)

// SupportedLocales are the locales with server-side messages.
var SupportedLocales = []string{"en", "fr"}

// DetermineLocale resolves the locale to use from an explicit query param, the
// Accept-Language header, the supported locales and a default. Region subtags
// fall back to their base language ("fr-CH" -> "fr").
func DetermineLocale(queryLang, acceptLang string, supported []string, def string) string {
	sup := make(map[string]struct{}, len(supported))
	for _, s := range supported {
		sup[strings.ToLower(s)] = struct{}{}
	}

	pick := func(lang string) (string, bool) {
		l := strings.ToLower(strings.TrimSpace(lang))
		if l == "" {
			return "", false
		}
		if _, ok := sup[l]; ok {
			return l, true
		}
		if i := strings.IndexAny(l, "-_"); i > 0 {
			if _, ok := sup[l[:i]]; ok {
				return l[:i], true
			}
		}
		return "", false
	}

	if v, ok := pick(queryLang); ok {
		return v
	}

	type cand struct {
		lang string
		q    float64
	}
	var cands []cand
	for _, part := range strings.Split(acceptLang, ",") {
		lang, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		q := 1.0
		for _, p := range strings.Split(params, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || strings.TrimSpace(k) != "q" {
				continue
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				q = f
			}
		}
		if q <= 0 {
			continue
		}
		if l, ok := pick(lang); ok {
			cands = append(cands, cand{lang: l, q: q})
		}
	}
	if len(cands) > 0 {
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].q > cands[j].q })
		return cands[0].lang
	}
	if v, ok := pick(def); ok {
		return v
	}
	if len(supported) > 0 {
		return strings.ToLower(supported[0])
	}
	return "en"
}
