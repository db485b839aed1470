package chat

import (
	"fmt"
	"strings"
)

// Language enumerates the tutor languages a session can run in.
type Language string

const (
	English Language = "english"
	Arabic  Language = "arabic"
	Hindi   Language = "hindi"
)

// DefaultLanguage is used when a session is created without one.
const DefaultLanguage = English

var locales = map[Language]string{
	English: "en-US",
	Arabic:  "ar-SA",
	Hindi:   "hi-IN",
}

var greetings = map[Language]string{
	English: "Hello! I'm your AI tutor. How can I help you with your exam preparation today?",
	Arabic:  "مرحبًا! أنا مدرسك الذكي. كيف يمكنني مساعدتك في التحضير للامتحان اليوم؟",
	Hindi:   "नमस्ते! मैं आपका AI शिक्षक हूं। आज मैं आपकी परीक्षा की तैयारी में कैसे मदद कर सकता हूं?",
}

// Languages lists the supported languages in display order.
func Languages() []Language {
	return []Language{English, Arabic, Hindi}
}

// ParseLanguage accepts a language name ("arabic") or a locale ("ar-SA", "ar").
func ParseLanguage(raw string) (Language, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return DefaultLanguage, nil
	}
	for _, lang := range Languages() {
		if normalized == string(lang) {
			return lang, nil
		}
		locale := strings.ToLower(locales[lang])
		if normalized == locale || normalized == locale[:2] {
			return lang, nil
		}
	}
	return "", fmt.Errorf("unsupported language %q", raw)
}

// Valid reports whether l is one of the enumerated languages.
func (l Language) Valid() bool {
	_, ok := locales[l]
	return ok
}

// Locale returns the BCP-47 tag used by speech engines.
func (l Language) Locale() string {
	if locale, ok := locales[l]; ok {
		return locale
	}
	return locales[DefaultLanguage]
}

// Greeting returns the welcome message shown at the top of a fresh session.
func (l Language) Greeting() string {
	if text, ok := greetings[l]; ok {
		return text
	}
	return greetings[DefaultLanguage]
}

// RTL reports whether the language is written right-to-left.
func (l Language) RTL() bool {
	return l == Arabic
}
