package config

// AnalysisQuestion is sent with every uploaded file.
const AnalysisQuestion = "Please analyze this file and provide insights about animal health or disease information."

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			URL:       "http://127.0.0.1:5000",
			TimeoutMS: 0,
		},
		Upload: UploadConfig{
			MaxBytes:     16 << 20,
			AllowedTypes: []string{"image/jpeg", "image/jpg", "image/png", "image/webp", "application/pdf"},
			Question:     AnalysisQuestion,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Speech: SpeechConfig{
			AutomaticPunctuation: true,
			InterimResults:       true,
		},
		TTS: TTSConfig{
			Command: mustParseCommand("espeak-ng"),
			Rate:   0.9,
			Pitch:  1.0,
			Volume: 0.8,
		},
		Indicator: IndicatorConfig{
			Enable:           true,
			Backend:          "terminal",
			DesktopAppName:   "vetchat",
			SoundEnable:      true,
			InfoTimeoutMS:    5000,
			SuccessTimeoutMS: 5000,
			ErrorTimeoutMS:   5000,
		},
		Clipboard: mustParseCommand("wl-copy --trim-newline"),
		VoiceTags: map[string]string{},
		Vocab: VocabConfig{
			GlobalSets: nil,
			Sets:       map[string]VocabSet{},
			MaxPhrases: 500,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Debug: DebugConfig{},
	}
}
