package queue

import (
	"strings"
	"unicode"
)

// latinWordLists are cheap markers for a fixed set of Latin-script
// languages, checked in a fixed order so shared words resolve the same way
// every time
var latinWordLists = []struct {
	lang  string
	words []string
}{
	{"es", []string{"hola", "gracias", "bueno", "cómo estás", "como estas", "que tal", "mucho gusto"}},
	{"pt", []string{"olá", "obrigado", "obrigada", "tudo bem", "você", "muito prazer"}},
	{"de", []string{"hallo", "danke", "ich bin", "wie geht", "nicht", "und du"}},
	{"it", []string{"ciao", "grazie", "come stai", "molto", "piacere", "perché"}},
	{"nl", []string{"hoi", "dank je", "hoe gaat", "leuk", "ik ben"}},
}

// frenchAccents distinguish French among the remaining Latin candidates
const frenchAccents = "àâçéèêëîïôùûüÿœ"

// DetectLanguage guesses the language of a text sample. It is a deliberately
// cheap approximation: it only needs to pick a response language, not do
// translation-grade detection. Unambiguous script ranges first, then Latin
// word lists, then a French accent heuristic, defaulting to English.
func DetectLanguage(text string) string {
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Arabic, r):
			return "ar"
		case unicode.Is(unicode.Han, r):
			return "zh"
		case unicode.Is(unicode.Hangul, r):
			return "ko"
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			return "ja"
		case unicode.Is(unicode.Cyrillic, r):
			return "ru"
		}
	}

	lower := strings.ToLower(text)
	for _, entry := range latinWordLists {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				return entry.lang
			}
		}
	}

	accents := 0
	for _, r := range lower {
		if strings.ContainsRune(frenchAccents, r) {
			accents++
		}
	}
	if accents >= 2 {
		return "fr"
	}

	return "en"
}
