package indicator

import (
	"os"
	"strings"
)

type messages struct {
	listening    string
	transcribing string
	errorText    string
}

var localizedMessages = map[string]messages{
	"en": {
		listening:    "🎤 Listening... Speak now",
		transcribing: "Transcribing…",
		errorText:    "Speech recognition error",
	},
	"es": {
		listening:    "🎤 Escuchando... Hable ahora",
		transcribing: "Transcribiendo…",
		errorText:    "Error de reconocimiento de voz",
	},
	"hi": {
		listening:    "🎤 सुन रहा है... अब बोलें",
		transcribing: "लिख रहा है…",
		errorText:    "वाक् पहचान त्रुटि",
	},
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

// resolveLocale reduces a POSIX locale like "es_MX.UTF-8" to its language.
func resolveLocale(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(raw, "_.@-"); i >= 0 {
		raw = raw[:i]
	}
	if _, ok := localizedMessages[raw]; ok {
		return raw
	}
	return "en"
}

func indicatorMessages(locale string) messages {
	if msg, ok := localizedMessages[locale]; ok {
		return msg
	}
	return localizedMessages["en"]
}
