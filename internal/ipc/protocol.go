// Package ipc carries recording commands from hotkey invocations to a running
// chat session over a unix socket, one JSON line per request and response.
package ipc

import (
	"bufio"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

// Commands understood by a running session.
const (
	CommandStatus = "status"
	CommandToggle = "toggle"
	CommandStop   = "stop"
	CommandCancel = "cancel"
)

// Request asks the session owner to act. Language optionally overrides the
// speech tag for toggle.
type Request struct {
	Command  string `json:"command"`
	Language string `json:"language,omitempty"`
}

// Response reports the recorder state after handling a Request.
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// maxLineBytes bounds a single request or response line.
const maxLineBytes = 64 << 10

func writeLine(w io.Writer, v any) error {
	payload, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(payload, '\n'))
	return err
}

func readLine(r io.Reader, v any) error {
	reader := bufio.NewReaderSize(io.LimitReader(r, maxLineBytes), 4096)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if err := sonic.Unmarshal(line, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
