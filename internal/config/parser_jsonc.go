package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Backend   *jsoncBackend   `json:"backend"`
	Upload    *jsoncUpload    `json:"upload"`
	Audio     *jsoncAudio     `json:"audio"`
	Speech    *jsoncSpeech    `json:"speech"`
	TTS       *jsoncTTS       `json:"tts"`
	Indicator *jsoncIndicator `json:"indicator"`
	Settings  *jsoncSettings  `json:"settings"`
	Log       *jsoncLog       `json:"log"`

	ClipboardCmd *string           `json:"clipboard_cmd"`
	VoiceTags    map[string]string `json:"voice_tags"`
	Vocab        *jsoncVocab       `json:"vocab"`
	Debug        *jsoncDebug       `json:"debug"`
}

type jsoncBackend struct {
	URL       *string `json:"url"`
	TimeoutMS *int    `json:"timeout_ms"`
}

type jsoncUpload struct {
	MaxBytes     *int64           `json:"max_bytes"`
	AllowedTypes *jsoncStringList `json:"allowed_types"`
	Question     *string          `json:"question"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncSpeech struct {
	AutomaticPunctuation *bool   `json:"automatic_punctuation"`
	InterimResults       *bool   `json:"interim_results"`
	Model                *string `json:"model"`
	CredentialsFile      *string `json:"credentials_file"`
}

type jsoncTTS struct {
	Command *string  `json:"command"`
	Rate   *float64 `json:"rate"`
	Pitch  *float64 `json:"pitch"`
	Volume *float64 `json:"volume"`
}

type jsoncIndicator struct {
	Enable            *bool   `json:"enable"`
	Backend           *string `json:"backend"`
	DesktopAppName    *string `json:"desktop_app_name"`
	SoundEnable       *bool   `json:"sound_enable"`
	SoundStartFile    *string `json:"sound_start_file"`
	SoundStopFile     *string `json:"sound_stop_file"`
	SoundCompleteFile *string `json:"sound_complete_file"`
	SoundCancelFile   *string `json:"sound_cancel_file"`
	InfoTimeoutMS     *int    `json:"info_timeout_ms"`
	SuccessTimeoutMS  *int    `json:"success_timeout_ms"`
	ErrorTimeoutMS    *int    `json:"error_timeout_ms"`
}

type jsoncSettings struct {
	Path *string `json:"path"`
}

type jsoncLog struct {
	Level      *string `json:"level"`
	MaxSizeMB  *int    `json:"max_size_mb"`
	MaxBackups *int    `json:"max_backups"`
}

type jsoncVocab struct {
	Global     *jsoncStringList         `json:"global"`
	MaxPhrases *int                     `json:"max_phrases"`
	Sets       map[string]jsoncVocabSet `json:"sets"`
}

type jsoncVocabSet struct {
	Boost   *float64 `json:"boost"`
	Phrases []string `json:"phrases"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
	GRPCDump  *bool `json:"grpc_dump"`
}

// jsoncStringList accepts either a JSON array or a comma-delimited string.
type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = trimNonEmpty(list)
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = trimNonEmpty(strings.Split(single, ","))
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func trimNonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := cloneConfig(base)
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, append(warnings, validatedWarnings...), nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if b := payload.Backend; b != nil {
		setString(&cfg.Backend.URL, b.URL)
		setValue(&cfg.Backend.TimeoutMS, b.TimeoutMS)
	}

	if u := payload.Upload; u != nil {
		setValue(&cfg.Upload.MaxBytes, u.MaxBytes)
		if u.AllowedTypes != nil {
			cfg.Upload.AllowedTypes = make([]string, 0, len(*u.AllowedTypes))
			for _, item := range *u.AllowedTypes {
				cfg.Upload.AllowedTypes = append(cfg.Upload.AllowedTypes, strings.ToLower(item))
			}
		}
		setString(&cfg.Upload.Question, u.Question)
	}

	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
	}

	if s := payload.Speech; s != nil {
		setValue(&cfg.Speech.AutomaticPunctuation, s.AutomaticPunctuation)
		setValue(&cfg.Speech.InterimResults, s.InterimResults)
		setString(&cfg.Speech.Model, s.Model)
		setString(&cfg.Speech.CredentialsFile, s.CredentialsFile)
	}

	if t := payload.TTS; t != nil {
		if t.Command != nil {
			cmd, err := ParseCommand(*t.Command)
			if err != nil {
				return nil, fmt.Errorf("invalid tts.command: %w", err)
			}
			cfg.TTS.Command = cmd
		}
		setValue(&cfg.TTS.Rate, t.Rate)
		setValue(&cfg.TTS.Pitch, t.Pitch)
		setValue(&cfg.TTS.Volume, t.Volume)
	}

	if i := payload.Indicator; i != nil {
		setValue(&cfg.Indicator.Enable, i.Enable)
		if i.Backend != nil {
			cfg.Indicator.Backend = strings.ToLower(strings.TrimSpace(*i.Backend))
		}
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setValue(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setString(&cfg.Indicator.SoundStartFile, i.SoundStartFile)
		setString(&cfg.Indicator.SoundStopFile, i.SoundStopFile)
		setString(&cfg.Indicator.SoundCompleteFile, i.SoundCompleteFile)
		setString(&cfg.Indicator.SoundCancelFile, i.SoundCancelFile)
		setValue(&cfg.Indicator.InfoTimeoutMS, i.InfoTimeoutMS)
		setValue(&cfg.Indicator.SuccessTimeoutMS, i.SuccessTimeoutMS)
		setValue(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}

	if s := payload.Settings; s != nil {
		setString(&cfg.Settings.Path, s.Path)
	}

	if l := payload.Log; l != nil {
		if l.Level != nil {
			cfg.Log.Level = strings.ToLower(strings.TrimSpace(*l.Level))
		}
		setValue(&cfg.Log.MaxSizeMB, l.MaxSizeMB)
		setValue(&cfg.Log.MaxBackups, l.MaxBackups)
	}

	if payload.ClipboardCmd != nil {
		cmd, err := ParseCommand(*payload.ClipboardCmd)
		if err != nil {
			return nil, fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.Clipboard = cmd
	}

	for code, tag := range payload.VoiceTags {
		code = strings.ToLower(strings.TrimSpace(code))
		tag = strings.TrimSpace(tag)
		if code == "" || tag == "" {
			warnings = append(warnings, Warning{Message: "voice_tags entry with empty code or tag ignored"})
			continue
		}
		cfg.VoiceTags[code] = tag
	}

	if v := payload.Vocab; v != nil {
		if v.Global != nil {
			cfg.Vocab.GlobalSets = append([]string(nil), (*v.Global)...)
		}
		setValue(&cfg.Vocab.MaxPhrases, v.MaxPhrases)
		for name, set := range v.Sets {
			trimmedName := strings.TrimSpace(name)
			if trimmedName == "" {
				return nil, fmt.Errorf("vocab.sets contains an empty set name")
			}
			entry := VocabSet{Name: trimmedName, Phrases: append([]string(nil), set.Phrases...)}
			if set.Boost != nil {
				entry.Boost = *set.Boost
			}
			cfg.Vocab.Sets[trimmedName] = entry
		}
	}

	if d := payload.Debug; d != nil {
		setValue(&cfg.Debug.EnableAudioDump, d.AudioDump)
		setValue(&cfg.Debug.EnableGRPCDump, d.GRPCDump)
	}

	return warnings, nil
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Upload.AllowedTypes = append([]string(nil), cfg.Upload.AllowedTypes...)
	out.Clipboard.Argv = append([]string(nil), cfg.Clipboard.Argv...)
	out.TTS.Command.Argv = append([]string(nil), cfg.TTS.Command.Argv...)
	out.Vocab.GlobalSets = append([]string(nil), cfg.Vocab.GlobalSets...)

	out.VoiceTags = make(map[string]string, len(cfg.VoiceTags))
	for k, v := range cfg.VoiceTags {
		out.VoiceTags[k] = v
	}
	out.Vocab.Sets = make(map[string]VocabSet, len(cfg.Vocab.Sets))
	for k, v := range cfg.Vocab.Sets {
		out.Vocab.Sets[k] = v
	}
	return out
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}
	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}
	if limit < 1 {
		return 1, 1
	}

	prefix := content[:limit-1]
	line := strings.Count(prefix, "\n") + 1
	col := len(prefix) - strings.LastIndex(prefix, "\n")
	return line, col
}
