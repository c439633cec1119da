// Package smalltalk answers greetings and farewells without touching the index.
package smalltalk

import "strings"

// Language selects the reply language. Unknown values fall back to English.
type Language string

const (
	English Language = "en"
	Hindi   Language = "hi"
)

const (
	greetingHindi = "नमस्ते! 🙏 मैं कृषिमित्र हूं। मैं आपकी खेती में मदद कर सकता हूं।\n\n" +
		"Hello! 🙏 I am KrishiMitra. I can help you with farming."
	greetingEnglish = "Hello! 🙏 I am KrishiMitra, your AI farming assistant."
	farewellHindi   = "धन्यवाद! 🙏 खेती में शुभकामनाएं।"
	farewellEnglish = "Thank you! 🙏 Best wishes for your farming."
)

var (
	greetingTokens = []string{"hello", "hi", "hey", "namaste", "नमस्ते", "नमस्कार"}
	farewellTokens = []string{"bye", "goodbye", "thanks", "धन्यवाद"}
)

// ParseLanguage maps a free-form code to a Language.
func ParseLanguage(code string) Language {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "hi", "hindi", "हिंदी":
		return Hindi
	default:
		return English
	}
}

// Handle returns a canned reply when query opens with a greeting token or
// contains a farewell token. Greetings are checked first.
//
// Prefix matching is loose: "history of wheat" starts with "hi"
// and is treated as a greeting.
func Handle(query string, lang Language) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return "", false
	}
	for _, token := range greetingTokens {
		if strings.HasPrefix(normalized, token) {
			return pick(lang, greetingHindi, greetingEnglish), true
		}
	}
	for _, token := range farewellTokens {
		if strings.Contains(normalized, token) {
			return pick(lang, farewellHindi, farewellEnglish), true
		}
	}
	return "", false
}

func pick(lang Language, hindi, english string) string {
	if lang == Hindi {
		return hindi
	}
	return english
}
