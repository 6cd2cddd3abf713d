// Package config resolves, parses, validates, and defaults vetchat configuration.
package config

// Config is the fully materialized runtime configuration used by vetchat.
type Config struct {
	Backend   BackendConfig
	Upload    UploadConfig
	Audio     AudioConfig
	Speech    SpeechConfig
	TTS       TTSConfig
	Indicator IndicatorConfig
	Clipboard CommandConfig
	VoiceTags map[string]string
	Vocab     VocabConfig
	Settings  SettingsConfig
	Log       LogConfig
	Debug     DebugConfig
}

// BackendConfig points at the assistant HTTP service.
type BackendConfig struct {
	URL       string
	TimeoutMS int
}

// UploadConfig bounds files accepted for analysis.
type UploadConfig struct {
	MaxBytes     int64
	AllowedTypes []string
	Question     string
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// SpeechConfig controls streaming recognition requests.
type SpeechConfig struct {
	AutomaticPunctuation bool
	InterimResults       bool
	Model                string
	CredentialsFile      string
}

// TTSConfig controls local speech synthesis.
type TTSConfig struct {
	// Command runs espeak-ng or a compatible wrapper; synthesis flags are appended.
	Command CommandConfig
	Rate   float64
	Pitch  float64
	Volume float64
}

// IndicatorConfig controls notification and audio cue behavior.
type IndicatorConfig struct {
	Enable            bool
	Backend           string
	DesktopAppName    string
	SoundEnable       bool
	SoundStartFile    string
	SoundStopFile     string
	SoundCompleteFile string
	SoundCancelFile   string
	InfoTimeoutMS     int
	SuccessTimeoutMS  int
	ErrorTimeoutMS    int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// VocabConfig controls enabled speech phrase sets and dedupe limits.
type VocabConfig struct {
	GlobalSets []string
	Sets       map[string]VocabSet
	MaxPhrases int
}

// VocabSet is one named phrase group with a shared boost value.
type VocabSet struct {
	Name    string
	Boost   float64
	Phrases []string
}

// SettingsConfig locates the persisted preference blob.
type SettingsConfig struct {
	Path string
}

// LogConfig controls the runtime log file.
type LogConfig struct {
	Level      string
	MaxSizeMB  int
	MaxBackups int
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
	EnableGRPCDump  bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// SpeechPhrase is the normalized phrase payload sent to recognition adapters.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}
