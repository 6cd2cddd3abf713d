package config

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

// ParseCommand splits raw into argv with shell-like quoting. $VAR, ${VAR}
// and a leading ~/ are expanded outside single quotes.
func ParseCommand(raw string) (CommandConfig, error) {
	argv, err := splitCommand(raw, os.Getenv)
	if err != nil {
		return CommandConfig{}, err
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}

// Program returns the executable, or "" when argv is empty.
func (c CommandConfig) Program() string {
	if len(c.Argv) == 0 {
		return ""
	}
	return c.Argv[0]
}

func splitCommand(raw string, getenv func(string) string) ([]string, error) {
	runes := []rune(strings.TrimSpace(raw))

	var (
		argv    []string
		current strings.Builder
		started bool
		quote   rune
	)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote == '\'':
			if r == '\'' {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\\':
			if i+1 >= len(runes) {
				return nil, fmt.Errorf("trailing backslash in %q", raw)
			}
			i++
			current.WriteRune(runes[i])
			started = true
		case r == '$':
			name, next := envName(runes, i+1)
			if name == "" {
				current.WriteRune(r)
			} else {
				current.WriteString(getenv(name))
				i = next - 1
			}
			started = true
		case quote == '"':
			if r == '"' {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			started = true
		case r == '~' && !started && (i+1 == len(runes) || runes[i+1] == '/'):
			current.WriteString(getenv("HOME"))
			started = true
		case unicode.IsSpace(r):
			if started {
				argv = append(argv, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unclosed %c quote in %q", quote, raw)
	}
	if started {
		argv = append(argv, current.String())
	}
	return argv, nil
}

// envName reads NAME or {NAME} starting at runes[start] and returns the
// index just past it. An empty name means the $ is literal.
func envName(runes []rune, start int) (string, int) {
	if start < len(runes) && runes[start] == '{' {
		for end := start + 1; end < len(runes); end++ {
			if runes[end] == '}' {
				return string(runes[start+1 : end]), end + 1
			}
		}
		return "", start
	}
	end := start
	for end < len(runes) && (runes[end] == '_' || unicode.IsLetter(runes[end]) || (end > start && unicode.IsDigit(runes[end]))) {
		end++
	}
	return string(runes[start:end]), end
}

func mustParseCommand(raw string) CommandConfig {
	cmd, err := ParseCommand(raw)
	if err != nil {
		panic(err)
	}
	return cmd
}
