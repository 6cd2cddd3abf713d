// Package language maps chat language codes to speech tags and display names.
package language

import (
	"sort"
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultCode is the chat language used when nothing else is selected.
const DefaultCode = "en"

// DefaultVoiceTag is the speech tag used for unknown chat languages.
const DefaultVoiceTag = "en-US"

var voiceTags = map[string]string{
	"en": "en-US",
	"hi": "hi-IN",
	"mr": "mr-IN",
	"te": "te-IN",
	"ta": "ta-IN",
	"bn": "bn-IN",
	"gu": "gu-IN",
	"kn": "kn-IN",
	"ml": "ml-IN",
	"pa": "pa-IN",
	"es": "es-ES",
	"fr": "fr-FR",
	"de": "de-DE",
}

// VoiceTag returns the speech tag for a chat language code.
func VoiceTag(code string) string {
	return VoiceTagWith(nil, code)
}

// VoiceTagWith resolves code through overrides first, then the built-in table.
func VoiceTagWith(overrides map[string]string, code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if tag, ok := overrides[code]; ok && strings.TrimSpace(tag) != "" {
		return strings.TrimSpace(tag)
	}
	if tag, ok := voiceTags[code]; ok {
		return tag
	}
	return DefaultVoiceTag
}

// Codes lists the built-in chat language codes in sorted order.
func Codes() []string {
	codes := make([]string, 0, len(voiceTags))
	for code := range voiceTags {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Builtin returns code -> native display name for the built-in languages.
func Builtin() map[string]string {
	out := make(map[string]string, len(voiceTags))
	for code := range voiceTags {
		out[code] = DisplayName(code)
	}
	return out
}

// DisplayName returns the self-describing name of a language code, or the code itself.
func DisplayName(code string) string {
	tag, err := xlanguage.Parse(code)
	if err != nil {
		return code
	}
	if name := display.Self.Name(tag); name != "" {
		return name
	}
	return code
}

// Normalize canonicalizes separators so "hi_IN" and "hi-in" compare equal.
func Normalize(tag string) string {
	return strings.ReplaceAll(strings.TrimSpace(tag), "_", "-")
}

// Primary returns the lowercase primary subtag (text before the first hyphen).
//
// Well-formed subtags are canonicalized through x/text; anything else falls back
// to a plain split.
func Primary(tag string) string {
	tag = Normalize(tag)
	if tag == "" {
		return ""
	}
	raw := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
	parsed, err := xlanguage.Parse(raw)
	if err != nil {
		return raw
	}
	base, confidence := parsed.Base()
	if confidence == xlanguage.No {
		return raw
	}
	return strings.ToLower(base.String())
}
