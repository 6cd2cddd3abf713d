package hypr

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotifyAndDismissUseHyprctlDispatch(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "hypr-args.log")
	t.Setenv("HYPR_ARGS_FILE", argsFile)
	installHyprctlStub(t, `
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`)

	require.NoError(t, Notify(context.Background(), IconError, 5000, "", "Connection failed: refused"))
	require.NoError(t, Notify(context.Background(), IconOK, 3000, "rgb(a6e3a1)", "Chat cleared successfully"))
	require.NoError(t, DismissNotify(context.Background()))
	require.True(t, Available())

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, []string{
		"--quiet dispatch notify 3 5000 rgb(89b4fa) Connection failed: refused",
		"--quiet dispatch notify 5 3000 rgb(a6e3a1) Chat cleared successfully",
		"--quiet dispatch dismissnotify",
	}, lines)
}

func TestNotifyReturnsCombinedOutputOnFailure(t *testing.T) {
	installHyprctlStub(t, `
echo 'boom from hyprctl' >&2
exit 1
`)

	err := Notify(context.Background(), IconInfo, 1000, "", "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom from hyprctl")
}

func TestAvailableFalseWithoutBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	require.False(t, Available())
}

func installHyprctlStub(t *testing.T, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "hyprctl")
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
