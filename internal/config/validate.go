package config

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

var (
	indicatorBackends = []string{"terminal", "desktop", "hypr"}
	logLevels         = []string{"debug", "info", "warn", "error"}
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Backend.URL) == "" {
		return nil, fmt.Errorf("backend.url must not be empty")
	}
	if cfg.Backend.TimeoutMS < 0 {
		return nil, fmt.Errorf("backend.timeout_ms must be >= 0")
	}

	if cfg.Upload.MaxBytes <= 0 {
		return nil, fmt.Errorf("upload.max_bytes must be > 0")
	}
	if len(cfg.Upload.AllowedTypes) == 0 {
		return nil, fmt.Errorf("upload.allowed_types must not be empty")
	}
	if strings.TrimSpace(cfg.Upload.Question) == "" {
		return nil, fmt.Errorf("upload.question must not be empty")
	}

	if cfg.TTS.Command.Program() == "" {
		return nil, fmt.Errorf("tts.command must not be empty")
	}
	if cfg.TTS.Rate <= 0 || cfg.TTS.Rate > 10 {
		return nil, fmt.Errorf("tts.rate must be within (0, 10]")
	}
	if cfg.TTS.Pitch < 0 || cfg.TTS.Pitch > 2 {
		return nil, fmt.Errorf("tts.pitch must be within [0, 2]")
	}
	if cfg.TTS.Volume < 0 || cfg.TTS.Volume > 1 {
		return nil, fmt.Errorf("tts.volume must be within [0, 1]")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if !contains(indicatorBackends, backend) {
		return nil, fmt.Errorf("indicator.backend must be one of: %s", strings.Join(indicatorBackends, ", "))
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.InfoTimeoutMS < 0 || cfg.Indicator.SuccessTimeoutMS < 0 || cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator timeouts must be >= 0")
	}

	if !contains(logLevels, cfg.Log.Level) {
		return nil, fmt.Errorf("log.level must be one of: %s", strings.Join(logLevels, ", "))
	}
	if cfg.Log.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("log.max_size_mb must be > 0")
	}
	if cfg.Log.MaxBackups < 0 {
		return nil, fmt.Errorf("log.max_backups must be >= 0")
	}

	if cfg.Vocab.MaxPhrases <= 0 {
		return nil, fmt.Errorf("vocab.max_phrases must be > 0")
	}
	if len(cfg.Clipboard.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_cmd must not be empty")
	}

	codes := make([]string, 0, len(cfg.VoiceTags))
	for code := range cfg.VoiceTags {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if _, err := language.Parse(cfg.VoiceTags[code]); err != nil {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("voice_tags[%q]=%q is not a well-formed language tag", code, cfg.VoiceTags[code])})
		}
	}

	_, vocabWarnings, err := BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, vocabWarnings...)

	return warnings, nil
}

func contains(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}

// BuildSpeechPhrases merges enabled vocab sets into deterministic recognition phrase hints.
func BuildSpeechPhrases(cfg Config) ([]SpeechPhrase, []Warning, error) {
	enabledSets := cfg.Vocab.GlobalSets
	if len(enabledSets) == 0 {
		return nil, nil, nil
	}

	type candidate struct {
		boost float64
		from  string
	}

	warnings := make([]Warning, 0)
	selected := make(map[string]candidate)

	for _, name := range enabledSets {
		set, ok := cfg.Vocab.Sets[name]
		if !ok {
			return nil, nil, fmt.Errorf("vocab.global references unknown set %q", name)
		}
		for _, phrase := range set.Phrases {
			phrase = strings.TrimSpace(phrase)
			if phrase == "" {
				continue
			}
			if existing, exists := selected[phrase]; exists {
				if set.Boost > existing.boost {
					warnings = append(warnings, Warning{Message: fmt.Sprintf("phrase %q present in %q and %q; using higher boost %.2f", phrase, existing.from, name, set.Boost)})
					selected[phrase] = candidate{boost: set.Boost, from: name}
				}
				continue
			}
			selected[phrase] = candidate{boost: set.Boost, from: name}
		}
	}

	if len(selected) > cfg.Vocab.MaxPhrases {
		return nil, nil, fmt.Errorf("vocabulary phrase count %d exceeds vocab.max_phrases=%d", len(selected), cfg.Vocab.MaxPhrases)
	}

	phrases := make([]SpeechPhrase, 0, len(selected))
	for phrase, c := range selected {
		phrases = append(phrases, SpeechPhrase{Phrase: phrase, Boost: float32(c.boost)})
	}

	sort.Slice(phrases, func(i, j int) bool {
		if phrases[i].Phrase == phrases[j].Phrase {
			return phrases[i].Boost < phrases[j].Boost
		}
		return phrases[i].Phrase < phrases[j].Phrase
	})

	return phrases, warnings, nil
}
