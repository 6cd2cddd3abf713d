package speech

import "strings"

// collectSegments appends a valid trailing interim segment when needed.
func collectSegments(committed []string, lastInterim string) []string {
	segments := append([]string(nil), committed...)
	if interim := cleanSegment(lastInterim); interim != "" {
		segments = appendSegment(segments, interim)
	}
	return segments
}

// appendSegment merges continuation segments so revisions never duplicate text.
func appendSegment(segments []string, text string) []string {
	text = cleanSegment(text)
	if text == "" {
		return segments
	}
	if len(segments) == 0 {
		return append(segments, text)
	}

	last := segments[len(segments)-1]
	switch {
	case text == last, strings.HasPrefix(last, text):
		return segments
	case strings.HasPrefix(text, last):
		segments[len(segments)-1] = text
		return segments
	default:
		return append(segments, text)
	}
}

// isInterimContinuation decides whether an interim update revises prior speech
// rather than starting a new phrase.
func isInterimContinuation(previous string, current string) bool {
	previous = cleanSegment(previous)
	current = cleanSegment(current)
	if previous == "" || current == "" || previous == current {
		return true
	}
	if strings.HasPrefix(current, previous) || strings.HasPrefix(previous, current) {
		return true
	}

	prevWords := strings.Fields(previous)
	currWords := strings.Fields(current)
	shorter := min(len(prevWords), len(currWords))
	common := 0
	for common < shorter && prevWords[common] == currWords[common] {
		common++
	}
	return common*2 >= shorter
}

func cleanSegment(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
