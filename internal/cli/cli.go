// Package cli parses vetchat's command line and chat slash commands.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

// Command is one top-level subcommand.
type Command string

const (
	CommandChat      Command = "chat"
	CommandAsk       Command = "ask"
	CommandUpload    Command = "upload"
	CommandLanguages Command = "languages"
	CommandClear     Command = "clear"
	CommandHealth    Command = "health"
	CommandVoices    Command = "voices"
	CommandListen    Command = "listen"
	CommandSettings  Command = "settings"
	CommandToggle    Command = "toggle"
	CommandStop      Command = "stop"
	CommandCancel    Command = "cancel"
	CommandStatus    Command = "status"
	CommandDevices   Command = "devices"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

// arity is the accepted positional argument count; max < 0 means unbounded.
type arity struct{ min, max int }

var commandArity = map[Command]arity{
	CommandChat:      {0, 0},
	CommandAsk:       {1, -1},
	CommandUpload:    {1, 1},
	CommandLanguages: {0, 0},
	CommandClear:     {0, 0},
	CommandHealth:    {0, 0},
	CommandVoices:    {0, 0},
	CommandListen:    {0, 0},
	CommandSettings:  {0, 3},
	CommandToggle:    {0, 0},
	CommandStop:      {0, 0},
	CommandCancel:    {0, 0},
	CommandStatus:    {0, 0},
	CommandDevices:   {0, 0},
	CommandDoctor:    {0, 0},
	CommandVersion:   {0, 0},
	CommandHelp:      {0, 0},
}

// Parsed is the result of Parse.
type Parsed struct {
	Command    Command
	Args       []string
	ConfigPath string
	Language   string
	ShowHelp   bool
}

// Parse reads flags and one command. With no command, chat is started.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandChat}
	haveCommand := false
	literal := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if !literal {
			switch arg {
			case "--":
				literal = true
				continue
			case "-h", "--help":
				parsed.ShowHelp = true
				parsed.Command = CommandHelp
				continue
			case "--version":
				parsed.Command = CommandVersion
				haveCommand = true
				continue
			case "--config", "--lang":
				i++
				if i >= len(args) || strings.TrimSpace(args[i]) == "" {
					return Parsed{}, fmt.Errorf("%s requires a value", arg)
				}
				if arg == "--config" {
					parsed.ConfigPath = args[i]
				} else {
					parsed.Language = strings.ToLower(strings.TrimSpace(args[i]))
				}
				continue
			}
			if strings.HasPrefix(arg, "-") && len(arg) > 1 {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}
		}

		if !haveCommand {
			cmd := Command(arg)
			if _, ok := commandArity[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = cmd
			haveCommand = true
			continue
		}
		parsed.Args = append(parsed.Args, arg)
	}

	if parsed.ShowHelp {
		return Parsed{Command: CommandHelp, ShowHelp: true, ConfigPath: parsed.ConfigPath}, nil
	}
	if parsed.Command == CommandHelp {
		parsed.ShowHelp = true
	}

	want := commandArity[parsed.Command]
	n := len(parsed.Args)
	switch {
	case n < want.min:
		return Parsed{}, fmt.Errorf("command %q requires an argument", parsed.Command)
	case want.max >= 0 && n > want.max:
		return Parsed{}, fmt.Errorf("unexpected arguments after command %q", parsed.Command)
	}
	if parsed.Command == CommandSettings {
		if err := validateSettingsArgs(parsed.Args); err != nil {
			return Parsed{}, err
		}
	}
	return parsed, nil
}

func validateSettingsArgs(args []string) error {
	if len(args) == 0 {
		return nil
	}
	switch args[0] {
	case "get":
		if len(args) != 2 {
			return errors.New("usage: settings get KEY")
		}
	case "set":
		if len(args) != 3 {
			return errors.New("usage: settings set KEY VALUE")
		}
	case "reset":
		if len(args) != 1 {
			return errors.New("usage: settings reset")
		}
	default:
		return fmt.Errorf("unknown settings action: %s", args[0])
	}
	return nil
}

// HelpText renders top-level usage.
func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--lang CODE] [command]

Commands:
  chat                     Interactive chat (default)
  ask TEXT...              Send one message and print the reply
  upload PATH              Submit an image or PDF for analysis
  languages                List languages the assistant supports
  clear                    Clear the server-side conversation
  health                   Check assistant service health
  voices                   List speech synthesis voices
  listen                   Dictate one message and send it
  settings [get KEY | set KEY VALUE | reset]
                           Show or change preferences
  toggle                   Start or stop dictation in the running chat
  stop                     Stop dictation and send the transcript
  cancel                   Cancel dictation and discard the transcript
  status                   Print the dictation state
  devices                  List audio input devices
  doctor                   Run configuration and environment checks
  version                  Print version information
  help                     Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/vetchat/config.jsonc)
  --lang CODE     Chat language code, e.g. en, hi, es
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
