package docsystem

import "slices"

// LangsPriority is the supported language set, ordered by fallback priority.
var LangsPriority = []string{"fr", "it", "de", "en", "es", "ca", "eu"}

// IsSupportedLang reports whether lang is in the supported set.
func IsSupportedLang(lang string) bool {
	return slices.Contains(LangsPriority, lang)
}

// BestLocale returns the locale in the preferred language if present,
// otherwise the first available one in priority order.
func BestLocale(locales []Locale, preferred string) *Locale {
	byLang := make(map[string]int, len(locales))
	for i, l := range locales {
		byLang[l.Lang] = i
	}
	if i, ok := byLang[preferred]; ok {
		return &locales[i]
	}
	for _, lang := range LangsPriority {
		if i, ok := byLang[lang]; ok {
			return &locales[i]
		}
	}
	return nil
}
