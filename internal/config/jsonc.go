package config

import (
	"fmt"
	"strings"
)

// normalizeJSONC blanks comments and drops trailing commas so encoding/json
// can decode the result. Byte offsets are preserved for comment removal.
func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

type scanMode int

const (
	scanCode scanMode = iota
	scanString
	scanStringEscape
	scanLineComment
	scanBlockComment
)

func stripJSONCComments(content string) (string, error) {
	out := []byte(content)
	mode := scanCode

	for i := 0; i < len(out); i++ {
		ch := out[i]
		switch mode {
		case scanString:
			switch ch {
			case '\\':
				mode = scanStringEscape
			case '"':
				mode = scanCode
			}
		case scanStringEscape:
			mode = scanString
		case scanLineComment:
			if ch == '\n' || ch == '\r' {
				mode = scanCode
				continue
			}
			out[i] = ' '
		case scanBlockComment:
			if ch == '*' && i+1 < len(out) && out[i+1] == '/' {
				out[i], out[i+1] = ' ', ' '
				i++
				mode = scanCode
				continue
			}
			if ch != '\n' && ch != '\r' && ch != '\t' {
				out[i] = ' '
			}
		default:
			if ch == '"' {
				mode = scanString
				continue
			}
			if ch != '/' || i+1 >= len(out) {
				continue
			}
			switch out[i+1] {
			case '/':
				mode = scanLineComment
			case '*':
				mode = scanBlockComment
			default:
				continue
			}
			out[i], out[i+1] = ' ', ' '
			i++
		}
	}

	if mode == scanBlockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}
	return string(out), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	mode := scanCode
	for i := 0; i < len(content); i++ {
		ch := content[i]
		switch mode {
		case scanString:
			switch ch {
			case '\\':
				mode = scanStringEscape
			case '"':
				mode = scanCode
			}
		case scanStringEscape:
			mode = scanString
		default:
			if ch == '"' {
				mode = scanString
			}
			if ch == ',' && closesAfter(content, i+1) {
				continue
			}
		}
		out.WriteByte(ch)
	}
	return out.String()
}

// closesAfter reports whether the next non-whitespace byte from start closes an object or array.
func closesAfter(content string, start int) bool {
	rest := strings.TrimLeft(content[start:], " \n\r\t")
	return rest != "" && (rest[0] == '}' || rest[0] == ']')
}
