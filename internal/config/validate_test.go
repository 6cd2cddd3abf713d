package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildSpeechPhrasesSortedAndHighestBoostWins(t *testing.T) {
	cfg := Default()
	cfg.Vocab.GlobalSets = []string{"cattle", "poultry"}
	cfg.Vocab.Sets = map[string]VocabSet{
		"cattle":  {Name: "cattle", Boost: 10, Phrases: []string{"mastitis", "foot and mouth disease", " "}},
		"poultry": {Name: "poultry", Boost: 15, Phrases: []string{"newcastle disease", "mastitis"}},
	}

	phrases, warnings, err := BuildSpeechPhrases(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Equal(t, []SpeechPhrase{
		{Phrase: "foot and mouth disease", Boost: 10},
		{Phrase: "mastitis", Boost: 15},
		{Phrase: "newcastle disease", Boost: 15},
	}, phrases)
}

func TestBuildSpeechPhrasesUnknownSet(t *testing.T) {
	cfg := Default()
	cfg.Vocab.GlobalSets = []string{"missing"}
	_, _, err := BuildSpeechPhrases(cfg)
	require.ErrorContains(t, err, "unknown set")
}

func TestBuildSpeechPhrasesLimit(t *testing.T) {
	cfg := Default()
	cfg.Vocab.MaxPhrases = 1
	cfg.Vocab.GlobalSets = []string{"a"}
	cfg.Vocab.Sets = map[string]VocabSet{"a": {Name: "a", Phrases: []string{"x", "y"}}}
	_, _, err := BuildSpeechPhrases(cfg)
	require.ErrorContains(t, err, "exceeds vocab.max_phrases")
}

func TestValidateRejectsInvalidCoreFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty backend url", mutate: func(c *Config) { c.Backend.URL = " " }, wantErr: "backend.url"},
		{name: "negative timeout", mutate: func(c *Config) { c.Backend.TimeoutMS = -1 }, wantErr: "backend.timeout_ms"},
		{name: "zero upload limit", mutate: func(c *Config) { c.Upload.MaxBytes = 0 }, wantErr: "upload.max_bytes"},
		{name: "no upload types", mutate: func(c *Config) { c.Upload.AllowedTypes = nil }, wantErr: "upload.allowed_types"},
		{name: "empty question", mutate: func(c *Config) { c.Upload.Question = "" }, wantErr: "upload.question"},
		{name: "empty tts command", mutate: func(c *Config) { c.TTS.Command = CommandConfig{} }, wantErr: "tts.command"},
		{name: "zero rate", mutate: func(c *Config) { c.TTS.Rate = 0 }, wantErr: "tts.rate"},
		{name: "loud volume", mutate: func(c *Config) { c.TTS.Volume = 1.5 }, wantErr: "tts.volume"},
		{name: "high pitch", mutate: func(c *Config) { c.TTS.Pitch = 3 }, wantErr: "tts.pitch"},
		{name: "unknown indicator backend", mutate: func(c *Config) { c.Indicator.Backend = "toast" }, wantErr: "indicator.backend"},
		{name: "desktop needs app name", mutate: func(c *Config) {
			c.Indicator.Backend = "desktop"
			c.Indicator.DesktopAppName = ""
		}, wantErr: "desktop_app_name"},
		{name: "negative indicator timeout", mutate: func(c *Config) { c.Indicator.ErrorTimeoutMS = -5 }, wantErr: "indicator timeouts"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log.level"},
		{name: "zero log size", mutate: func(c *Config) { c.Log.MaxSizeMB = 0 }, wantErr: "log.max_size_mb"},
		{name: "zero vocab limit", mutate: func(c *Config) { c.Vocab.MaxPhrases = 0 }, wantErr: "vocab.max_phrases"},
		{name: "empty clipboard", mutate: func(c *Config) { c.Clipboard = CommandConfig{} }, wantErr: "clipboard_cmd"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}
