package backend

import (
	"fmt"
	"strings"
)

// ReplyType values returned by the upload endpoint.
const (
	ReplyTypeImageAnalysis = "image_analysis"
)

type chatRequest struct {
	Message  string `json:"message"`
	Language string `json:"language"`
}

// Reply is the chat and upload response envelope.
type Reply struct {
	Success          bool   `json:"success"`
	Response         string `json:"response"`
	FallbackResponse string `json:"fallback_response"`
	Error            string `json:"error"`
	Type             string `json:"type"`

	decoded bool
}

func (r *Reply) markDecoded() { r.decoded = true }

// settle normalizes bodies that did not decode or claim success on an error status.
func (r Reply) settle(status int) Reply {
	if !r.decoded {
		return Reply{Success: false, Error: invalidResponseMessage(status)}
	}
	if r.Success && status >= 400 {
		r.Success = false
	}
	if r.Success && strings.TrimSpace(r.Response) == "" {
		r.Success = false
		if r.Error == "" {
			r.Error = "empty response from server"
		}
	}
	return r
}

type languagesResponse struct {
	Success   bool              `json:"success"`
	Languages map[string]string `json:"languages"`
	Error     string            `json:"error"`

	decoded bool
}

func (r *languagesResponse) markDecoded() { r.decoded = true }

type clearResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`

	decoded bool
}

func (r *clearResponse) markDecoded() { r.decoded = true }

// Health is the service health report.
type Health struct {
	Success  bool            `json:"success"`
	Healthy  bool            `json:"healthy"`
	Message  string          `json:"message"`
	Services map[string]bool `json:"services"`

	decoded bool
}

func (h *Health) markDecoded() { h.decoded = true }

// Degraded lists services reporting false, in no particular order.
func (h Health) Degraded() []string {
	var out []string
	for name, ok := range h.Services {
		if !ok {
			out = append(out, name)
		}
	}
	return out
}

// TransportError means the request never produced an HTTP response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServiceError is an HTTP response that reported failure.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = "request failed"
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	return msg
}
