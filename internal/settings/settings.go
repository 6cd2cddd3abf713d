// Package settings persists user preferences with load/merge-default/save semantics.
package settings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rbright/vetchat/internal/language"
	"github.com/rbright/vetchat/internal/voice"
)

// Key names one recognized preference.
type Key string

const (
	KeyTTSEnabled        Key = "ttsEnabled"
	KeyVoiceInputEnabled Key = "voiceInputEnabled"
	KeyDarkModeEnabled   Key = "darkModeEnabled"
	KeyAutoScrollEnabled Key = "autoScrollEnabled"
	KeyVoiceLanguage     Key = "voiceLanguage"
)

// Settings is a complete preference set.
type Settings struct {
	TTSEnabled        bool
	VoiceInputEnabled bool
	DarkModeEnabled   bool
	AutoScrollEnabled bool
	VoiceLanguage     string

	// SelectedVoice is only meaningful for VoiceLanguage.
	SelectedVoice *voice.Voice
}

// Defaults covers every recognized key.
func Defaults() Settings {
	return Settings{
		TTSEnabled:        true,
		VoiceInputEnabled: true,
		DarkModeEnabled:   false,
		AutoScrollEnabled: true,
		VoiceLanguage:     language.DefaultVoiceTag,
	}
}

// Keys lists the recognized preference keys in stable order.
func Keys() []Key {
	keys := []Key{KeyTTSEnabled, KeyVoiceInputEnabled, KeyDarkModeEnabled, KeyAutoScrollEnabled, KeyVoiceLanguage}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// IsKey reports whether key names a recognized preference.
func IsKey(key Key) bool {
	for _, known := range Keys() {
		if known == key {
			return true
		}
	}
	return false
}

// Get renders one preference as text.
func (s Settings) Get(key Key) (string, error) {
	switch key {
	case KeyTTSEnabled:
		return strconv.FormatBool(s.TTSEnabled), nil
	case KeyVoiceInputEnabled:
		return strconv.FormatBool(s.VoiceInputEnabled), nil
	case KeyDarkModeEnabled:
		return strconv.FormatBool(s.DarkModeEnabled), nil
	case KeyAutoScrollEnabled:
		return strconv.FormatBool(s.AutoScrollEnabled), nil
	case KeyVoiceLanguage:
		return s.VoiceLanguage, nil
	default:
		return "", fmt.Errorf("unknown setting %q", key)
	}
}

// apply mutates one preference from text. It reports whether the value changed.
func (s *Settings) apply(key Key, raw string) (bool, error) {
	if !IsKey(key) {
		return false, fmt.Errorf("unknown setting %q", key)
	}
	raw = strings.TrimSpace(raw)

	if key == KeyVoiceLanguage {
		tag := language.Normalize(raw)
		if tag == "" {
			return false, fmt.Errorf("%s must not be empty", key)
		}
		changed := !strings.EqualFold(tag, s.VoiceLanguage)
		s.VoiceLanguage = tag
		return changed, nil
	}

	value, err := parseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}

	var target *bool
	switch key {
	case KeyTTSEnabled:
		target = &s.TTSEnabled
	case KeyVoiceInputEnabled:
		target = &s.VoiceInputEnabled
	case KeyDarkModeEnabled:
		target = &s.DarkModeEnabled
	case KeyAutoScrollEnabled:
		target = &s.AutoScrollEnabled
	default:
		return false, fmt.Errorf("unknown setting %q", key)
	}

	changed := *target != value
	*target = value
	return changed, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "1", "true", "on", "yes":
		return true, nil
	case "0", "false", "off", "no":
		return false, nil
	default:
		return false, fmt.Errorf("expected on/off or true/false, got %q", raw)
	}
}
