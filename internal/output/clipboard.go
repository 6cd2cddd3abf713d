// Package output copies assistant replies to the system clipboard.
package output

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/vetchat/internal/config"
)

// ErrNothingToCopy is returned when there is no reply text.
var ErrNothingToCopy = errors.New("no assistant reply to copy")

// Clipboard writes text through the configured clipboard command.
type Clipboard struct {
	argv    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClipboard constructs a clipboard writer from runtime config.
func NewClipboard(cfg config.CommandConfig, logger *slog.Logger) *Clipboard {
	return &Clipboard{argv: cfg.Argv, timeout: 2 * time.Second, logger: logger}
}

// Copy places text on the clipboard.
func (c *Clipboard) Copy(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrNothingToCopy
	}

	copyCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := runCommandWithInput(copyCtx, c.argv, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	if c.logger != nil {
		c.logger.Debug("clipboard updated", "chars", len([]rune(text)))
	}
	return nil
}

// Available reports whether the clipboard command resolves on PATH.
func (c *Clipboard) Available() (string, error) {
	if len(c.argv) == 0 {
		return "", fmt.Errorf("clipboard command is not configured")
	}
	path, err := exec.LookPath(c.argv[0])
	if err != nil {
		return "", fmt.Errorf("clipboard command %q not found: %w", c.argv[0], err)
	}
	return path, nil
}

// runCommandWithInput executes argv and writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if _, err := stdin.Write([]byte(input)); err != nil {
		_ = stdin.Close()
		_ = cmd.Wait()
		return fmt.Errorf("write stdin for %s: %w", argv[0], err)
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("wait for %s: %w (%s)", argv[0], err, msg)
		}
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
