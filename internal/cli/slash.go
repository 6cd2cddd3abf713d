package cli

import (
	"fmt"
	"strings"
)

// Slash commands available inside chat.
const (
	SlashVoice     = "voice"
	SlashUpload    = "upload"
	SlashClear     = "clear"
	SlashLang      = "lang"
	SlashLanguages = "languages"
	SlashSet       = "set"
	SlashSettings  = "settings"
	SlashQuick     = "quick"
	SlashCopy      = "copy"
	SlashHealth    = "health"
	SlashHelp      = "help"
	SlashQuit      = "quit"
)

var slashArity = map[string]arity{
	SlashVoice:     {0, 0},
	SlashUpload:    {1, -1},
	SlashClear:     {0, 0},
	SlashLang:      {1, 1},
	SlashLanguages: {0, 0},
	SlashSet:       {2, 2},
	SlashSettings:  {0, 0},
	SlashQuick:     {1, 1},
	SlashCopy:      {0, 0},
	SlashHealth:    {0, 0},
	SlashHelp:      {0, 0},
	SlashQuit:      {0, 0},
}

var slashAliases = map[string]string{
	"exit": SlashQuit,
	"q":    SlashQuit,
	"mic":  SlashVoice,
	"?":    SlashHelp,
}

// Line is one parsed chat input line. Name is empty for a plain message.
type Line struct {
	Name string
	Args []string
	Text string
}

// ParseLine splits chat input into a slash command or a message.
func ParseLine(input string) (Line, error) {
	text := strings.TrimSpace(input)
	if !strings.HasPrefix(text, "/") || strings.HasPrefix(text, "//") {
		return Line{Text: strings.TrimPrefix(text, "/")}, nil
	}

	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return Line{}, fmt.Errorf("empty command; try /help")
	}
	name := strings.ToLower(fields[0])
	if alias, ok := slashAliases[name]; ok {
		name = alias
	}
	want, ok := slashArity[name]
	if !ok {
		return Line{}, fmt.Errorf("unknown command /%s; try /help", fields[0])
	}

	args := fields[1:]
	if name == SlashUpload && len(args) > 0 {
		// Paths may contain spaces.
		args = []string{strings.TrimSpace(strings.TrimPrefix(text[1:], fields[0]))}
	}
	if len(args) < want.min || (want.max >= 0 && len(args) > want.max) {
		return Line{}, fmt.Errorf("usage: %s", slashUsage[name])
	}
	return Line{Name: name, Args: args}, nil
}

var slashUsage = map[string]string{
	SlashVoice:     "/voice",
	SlashUpload:    "/upload PATH",
	SlashClear:     "/clear",
	SlashLang:      "/lang CODE",
	SlashLanguages: "/languages",
	SlashSet:       "/set KEY VALUE",
	SlashSettings:  "/settings",
	SlashQuick:     "/quick symptoms|treatment|prevention|emergency",
	SlashCopy:      "/copy",
	SlashHealth:    "/health",
	SlashHelp:      "/help",
	SlashQuit:      "/quit",
}

// ChatHelpText lists slash commands.
func ChatHelpText() string {
	return `Type a message and press Enter. Commands:
  /voice             Start or stop dictation
  /upload PATH       Submit an image or PDF for analysis
  /clear             Clear the conversation
  /lang CODE         Switch chat language
  /languages         List supported languages
  /set KEY VALUE     Change a preference
  /settings          Show preferences
  /quick NAME        Ask a canned question (symptoms, treatment, prevention, emergency)
  /copy              Copy the last reply to the clipboard
  /health            Check assistant service health
  /help              Show this help
  /quit              Leave chat
`
}
