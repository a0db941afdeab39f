package speech

import "strings"

// Pivot is the language advisory reasoning happens in.
const Pivot = "en-IN"

// BaselineVoiceLanguage is spoken when nothing closer is available.
const BaselineVoiceLanguage = "hi-IN"

var languageNames = map[string]string{
	"hindi":     "hi-IN",
	"punjabi":   "pa-IN",
	"marathi":   "mr-IN",
	"bengali":   "bn-IN",
	"telugu":    "te-IN",
	"tamil":     "ta-IN",
	"gujarati":  "gu-IN",
	"kannada":   "kn-IN",
	"malayalam": "ml-IN",
	"odia":      "od-IN",
	"oriya":     "od-IN",
	"assamese":  "as-IN",
	"urdu":      "ur-IN",
	"sanskrit":  "sa-IN",
	"nepali":    "ne-IN",
	"konkani":   "kok-IN",
	"maithili":  "mai-IN",
	"sindhi":    "sd-IN",
	"kashmiri":  "ks-IN",
	"dogri":     "doi-IN",
	"manipuri":  "mni-IN",
	"bodo":      "brx-IN",
	"santali":   "sat-IN",
	"english":   "en-IN",
}

// ttsSupported lists the languages the synthesis voice can speak.
var ttsSupported = map[string]bool{
	"hi-IN": true, "bn-IN": true, "ta-IN": true, "te-IN": true, "kn-IN": true,
	"ml-IN": true, "mr-IN": true, "gu-IN": true, "pa-IN": true, "od-IN": true,
	"en-IN": true,
}

// ttsNearest maps unsupported languages to the closest supported one.
var ttsNearest = map[string]string{
	"as-IN":  "bn-IN",
	"mni-IN": "bn-IN",
	"ur-IN":  "hi-IN",
	"sa-IN":  "hi-IN",
	"ne-IN":  "hi-IN",
	"mai-IN": "hi-IN",
	"doi-IN": "hi-IN",
	"sd-IN":  "hi-IN",
	"ks-IN":  "hi-IN",
	"brx-IN": "hi-IN",
	"sat-IN": "hi-IN",
	"kok-IN": "mr-IN",
}

// NormalizeLanguage maps language names, bare ISO codes and tags to the
// xx-IN form used by the speech provider. Empty or unknown input yields "".
func NormalizeLanguage(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	if l == "" || strings.Contains(l, "unknown") {
		return ""
	}
	if code, ok := languageNames[l]; ok {
		return code
	}
	if strings.HasPrefix(l, "en") {
		return Pivot
	}
	if l == "or" || strings.HasPrefix(l, "or-") {
		return "od-IN"
	}
	base := l
	if i := strings.IndexAny(l, "-_"); i > 0 {
		base = l[:i]
	}
	return base + "-IN"
}

// IsPivot reports whether lang is (a variant of) the pivot language.
func IsPivot(lang string) bool {
	return NormalizeLanguage(lang) == Pivot
}

// SameLanguage reports whether two tags name the same language.
func SameLanguage(a, b string) bool {
	na, nb := NormalizeLanguage(a), NormalizeLanguage(b)
	return na != "" && na == nb
}

// VoiceLanguage returns the language the synthesizer should speak for
// lang, substituting the closest supported language.
func VoiceLanguage(lang string) string {
	code := NormalizeLanguage(lang)
	if ttsSupported[code] {
		return code
	}
	if near, ok := ttsNearest[code]; ok {
		return near
	}
	return BaselineVoiceLanguage
}

// LanguageName returns the English name for a tag, for use in prompts.
// Unknown tags are returned unchanged.
func LanguageName(lang string) string {
	code := NormalizeLanguage(lang)
	for name, c := range languageNames {
		if c == code && name != "oriya" {
			return strings.ToUpper(name[:1]) + name[1:]
		}
	}
	return lang
}
