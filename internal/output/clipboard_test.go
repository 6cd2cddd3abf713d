package output

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rbright/vetchat/internal/config"
	"github.com/stretchr/testify/require"
)

func TestRunCommandWithInputWritesStdin(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	outputPath := filepath.Join(t.TempDir(), "stdin.txt")

	err := runCommandWithInput(context.Background(), []string{scriptPath, outputPath}, "keep the calf warm")
	require.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.Equal(t, "keep the calf warm", string(data))
}

func TestRunCommandWithInputRejectsEmptyArgv(t *testing.T) {
	err := runCommandWithInput(context.Background(), nil, "payload")
	require.Error(t, err)
	require.Contains(t, err.Error(), "argv cannot be empty")
}

func TestClipboardCopyWritesReply(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")

	clip := NewClipboard(config.CommandConfig{Argv: []string{scriptPath, clipboardPath}}, nil)
	require.NoError(t, clip.Copy(context.Background(), "Give oral rehydration salts."))

	data, err := os.ReadFile(clipboardPath)
	require.NoError(t, err)
	require.Equal(t, "Give oral rehydration salts.", string(data))
}

func TestClipboardCopySkipsEmptyText(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")

	clip := NewClipboard(config.CommandConfig{Argv: []string{scriptPath, clipboardPath}}, nil)
	require.ErrorIs(t, clip.Copy(context.Background(), "  "), ErrNothingToCopy)

	_, statErr := os.Stat(clipboardPath)
	require.True(t, os.IsNotExist(statErr))
}

func TestClipboardCopyReportsCommandFailure(t *testing.T) {
	failScript := writeFailScript(t, "clipboard failed")

	clip := NewClipboard(config.CommandConfig{Argv: []string{failScript}}, nil)
	err := clip.Copy(context.Background(), "reply")
	require.Error(t, err)
	require.Contains(t, err.Error(), "set clipboard")
	require.Contains(t, err.Error(), "clipboard failed")
}

func TestClipboardAvailable(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)

	path, err := NewClipboard(config.CommandConfig{Argv: []string{scriptPath}}, nil).Available()
	require.NoError(t, err)
	require.Equal(t, scriptPath, path)

	_, err = NewClipboard(config.CommandConfig{Argv: []string{"definitely-missing-clipboard"}}, nil).Available()
	require.ErrorContains(t, err, "not found")

	_, err = NewClipboard(config.CommandConfig{}, nil).Available()
	require.ErrorContains(t, err, "not configured")
}

func writeStdinCaptureScript(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "capture-stdin.sh")
	script := `#!/usr/bin/env bash
set -euo pipefail
cat > "$1"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeFailScript(t *testing.T, message string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "fail.sh")
	script := "#!/usr/bin/env bash\nset -euo pipefail\necho " + "\"" + message + "\"" + " >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}
