package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Reason is a structured recognition failure category.
type Reason string

const (
	ReasonNetwork              Reason = "network"
	ReasonNotAllowed           Reason = "not-allowed"
	ReasonNoSpeech             Reason = "no-speech"
	ReasonAudioCapture         Reason = "audio-capture"
	ReasonServiceNotAllowed    Reason = "service-not-allowed"
	ReasonBadGrammar           Reason = "bad-grammar"
	ReasonLanguageNotSupported Reason = "language-not-supported"
	ReasonAborted              Reason = "aborted"
	ReasonOther                Reason = "other"
)

// Error carries a classified recognition failure.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the user-facing text for the failure.
func (e *Error) Message() string {
	return MessageFor(e.Reason, e.Err)
}

// NewError wraps err with an explicit reason.
func NewError(reason Reason, err error) *Error {
	return &Error{Reason: reason, Err: err}
}

// MessageFor maps a reason to its user-facing text.
func MessageFor(reason Reason, err error) string {
	switch reason {
	case ReasonNetwork:
		return "🎤 Speech service connection issue - please check your network connection and try again"
	case ReasonNotAllowed:
		return "Microphone access denied - please unmute or allow the microphone and try again"
	case ReasonNoSpeech:
		return "No speech detected - please speak clearly and try again"
	case ReasonAudioCapture:
		return "Audio capture failed - please check your microphone connection"
	case ReasonServiceNotAllowed:
		return "Speech service not allowed - please check your speech credentials"
	case ReasonBadGrammar:
		return "Speech recognition grammar error - please try again"
	case ReasonLanguageNotSupported:
		return "Selected language not supported for speech recognition"
	case ReasonAborted:
		return "Voice recognition cancelled"
	default:
		detail := "unknown"
		if err != nil {
			detail = err.Error()
		}
		return fmt.Sprintf("Voice recognition error: %s. Please check microphone permissions and try again.", detail)
	}
}

// Classify derives a reason from any recognition-path error. Errors that
// already carry a reason keep it.
func Classify(err error) Reason {
	if err == nil {
		return ""
	}
	var speechErr *Error
	if errors.As(err, &speechErr) {
		return speechErr.Reason
	}
	if errors.Is(err, context.Canceled) {
		return ReasonAborted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonNetwork
	}

	st, ok := status.FromError(err)
	if !ok {
		return ReasonOther
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return ReasonNetwork
	case codes.PermissionDenied, codes.Unauthenticated:
		return ReasonServiceNotAllowed
	case codes.Canceled:
		return ReasonAborted
	case codes.InvalidArgument:
		msg := strings.ToLower(st.Message())
		switch {
		case strings.Contains(msg, "language"):
			return ReasonLanguageNotSupported
		case strings.Contains(msg, "phrase"), strings.Contains(msg, "speech context"), strings.Contains(msg, "boost"):
			return ReasonBadGrammar
		}
		return ReasonOther
	default:
		return ReasonOther
	}
}

// Wrap classifies err and returns it as *Error. nil stays nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var speechErr *Error
	if errors.As(err, &speechErr) {
		return err
	}
	return &Error{Reason: Classify(err), Err: err}
}
