package indicator

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rbright/vetchat/internal/config"
	"github.com/stretchr/testify/require"
)

func TestTerminalNotifyWritesPlainLinesWithoutTTY(t *testing.T) {
	cfg := config.Default().Indicator
	cfg.SoundEnable = false

	var out bytes.Buffer
	notifier := New(cfg, &out, nil)
	notifier.Notify(context.Background(), KindSuccess, "Chat cleared successfully")
	notifier.Notify(context.Background(), KindError, "  Connection failed: refused  ")
	notifier.Notify(context.Background(), KindInfo, "   ")

	require.Equal(t, "✔ Chat cleared successfully\n✖ Connection failed: refused\n", out.String())
}

func TestTerminalRecordingStates(t *testing.T) {
	t.Setenv("LANG", "en_US.UTF-8")
	cfg := config.Default().Indicator
	cfg.SoundEnable = false

	var out bytes.Buffer
	notifier := New(cfg, &out, nil)
	notifier.ShowListening(context.Background())
	notifier.ShowTranscribing(context.Background())
	notifier.ShowError(context.Background(), "")
	notifier.Hide(context.Background())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Equal(t, []string{
		"🎤 Listening... Speak now",
		"Transcribing…",
		"✖ Speech recognition error",
	}, lines)
}

func TestDisabledNotifierWritesNothing(t *testing.T) {
	cfg := config.Default().Indicator
	cfg.Enable = false
	cfg.SoundEnable = false

	var out bytes.Buffer
	notifier := New(cfg, &out, nil)
	notifier.Notify(context.Background(), KindError, "boom")
	notifier.ShowListening(context.Background())
	require.Empty(t, out.String())
}

func TestUnknownKindFallsBackToInfo(t *testing.T) {
	cfg := config.Default().Indicator
	cfg.SoundEnable = false

	var out bytes.Buffer
	New(cfg, &out, nil).Notify(context.Background(), Kind("warning"), "heads up")
	require.Equal(t, "ℹ heads up\n", out.String())
}

func TestHyprBackendDispatch(t *testing.T) {
	t.Setenv("LANG", "C")
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installStub(t, "hyprctl", `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	cfg := config.Default().Indicator
	cfg.Backend = "hypr"
	cfg.SoundEnable = false
	cfg.ErrorTimeoutMS = 0

	notifier := New(cfg, nil, nil)
	notifier.ShowListening(context.Background())
	notifier.ShowError(context.Background(), "Microphone access denied")
	notifier.Notify(context.Background(), KindSuccess, "Chat cleared successfully")

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Equal(t, []string{
		"--quiet dispatch notify 1 300000 rgb(89b4fa) 🎤 Listening... Speak now",
		"--quiet dispatch dismissnotify",
		"--quiet dispatch notify 3 5000 rgb(f38ba8) Microphone access denied",
		"--quiet dispatch notify 5 5000 rgb(a6e3a1) Chat cleared successfully",
	}, strings.Split(strings.TrimSpace(string(data)), "\n"))
}

func TestDesktopBackendReplacesAndClosesRecordingNotification(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installStub(t, "busctl", `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
if [[ "$*" == *" Notify "* ]]; then
  echo 'u 42'
fi
`)

	cfg := config.Default().Indicator
	cfg.Backend = "desktop"
	cfg.SoundEnable = false

	notifier := New(cfg, nil, nil)
	notifier.ShowListening(context.Background())
	notifier.ShowTranscribing(context.Background())
	notifier.Hide(context.Background())
	notifier.Hide(context.Background())

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "Notify susssasa{sv}i vetchat 0  vetchat")
	require.Contains(t, lines[1], "Notify susssasa{sv}i vetchat 42  vetchat")
	require.True(t, strings.HasSuffix(lines[2], "CloseNotification u 42"))
}

func TestDesktopNotifyParsesID(t *testing.T) {
	installStub(t, "busctl", `echo 'u 7'`)
	id, err := desktopNotify(context.Background(), "vetchat", 0, "vetchat", "hello", 5000)
	require.NoError(t, err)
	require.Equal(t, uint32(7), id)
}

func TestDesktopNotifyRejectsInvalidResponse(t *testing.T) {
	installStub(t, "busctl", `echo 'garbage'`)
	_, err := desktopNotify(context.Background(), "vetchat", 0, "vetchat", "hello", 5000)
	require.ErrorContains(t, err, "invalid response")
}

func TestDesktopDismissSurfacesStderr(t *testing.T) {
	installStub(t, "busctl", `
echo 'no such notification' >&2
exit 1
`)
	err := desktopDismiss(context.Background(), 3)
	require.ErrorContains(t, err, "no such notification")
}

func installStub(t *testing.T, name string, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
