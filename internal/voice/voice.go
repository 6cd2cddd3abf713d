// Package voice resolves a speech-synthesis voice for a language tag.
package voice

import (
	"context"
	"strings"

	"github.com/rbright/vetchat/internal/language"
)

// Voice is one synthesis voice exposed by the platform.
type Voice struct {
	Name     string `json:"name"`
	Language string `json:"lang"`
	Default  bool   `json:"default,omitempty"`
}

// IsZero reports whether v carries no voice.
func (v Voice) IsZero() bool {
	return v.Name == "" && v.Language == ""
}

// Lister queries the platform voice list. It may return an empty list until
// the platform finishes loading.
type Lister interface {
	Voices(context.Context) ([]Voice, error)
}

// Cache stores the voice chosen for a language tag.
type Cache interface {
	CachedVoice(tag string) (Voice, bool)
	CacheVoice(tag string, v Voice)
}

// Resolve picks the best voice for target, first match wins:
// exact tag, same primary subtag, default language primary subtag, then the
// voice the platform marks as its default. ok is false when nothing matches.
func Resolve(target string, voices []Voice, defaultLanguage string) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}

	normalized := language.Normalize(target)
	if normalized != "" {
		for _, v := range voices {
			if strings.EqualFold(language.Normalize(v.Language), normalized) {
				return v, true
			}
		}

		if primary := language.Primary(normalized); primary != "" {
			if v, ok := firstWithPrimary(voices, primary); ok {
				return v, true
			}
		}
	}

	if defaultLanguage == "" {
		defaultLanguage = language.DefaultVoiceTag
	}
	if primary := language.Primary(defaultLanguage); primary != "" {
		if v, ok := firstWithPrimary(voices, primary); ok {
			return v, true
		}
	}

	for _, v := range voices {
		if v.Default {
			return v, true
		}
	}
	return Voice{}, false
}

func firstWithPrimary(voices []Voice, primary string) (Voice, bool) {
	for _, v := range voices {
		if language.Primary(v.Language) == primary {
			return v, true
		}
	}
	return Voice{}, false
}
