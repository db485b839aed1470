package speech

import (
	"strings"

	"github.com/nukhba-ai/tutor/backend/internal/model/speech"
)

// SelectVoice picks the voice for locale: an exact locale match first, then
// a voice of the same language, then the engine's default voice. ok is false
// when the engine default should be used without naming a voice.
func SelectVoice(voices []speech.Voice, locale string) (speech.Voice, bool) {
	want := normalizeLocale(locale)
	if want == "" {
		return defaultVoice(voices)
	}

	for _, v := range voices {
		if normalizeLocale(v.Locale) == want {
			return v, true
		}
	}

	lang := primaryTag(want)
	for _, v := range voices {
		if primaryTag(normalizeLocale(v.Locale)) == lang {
			return v, true
		}
	}

	return defaultVoice(voices)
}

func defaultVoice(voices []speech.Voice) (speech.Voice, bool) {
	for _, v := range voices {
		if v.Default {
			return v, true
		}
	}
	return speech.Voice{}, false
}

func normalizeLocale(locale string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
}

func primaryTag(locale string) string {
	if i := strings.IndexByte(locale, '-'); i >= 0 {
		return locale[:i]
	}
	return locale
}
