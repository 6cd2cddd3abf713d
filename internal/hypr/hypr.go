// Package hypr dispatches Hyprland compositor notifications through hyprctl.
package hypr

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Icon selects the glyph hyprctl draws next to a notification.
type Icon int

const (
	IconWarning Icon = 0
	IconInfo    Icon = 1
	IconHint    Icon = 2
	IconError   Icon = 3
	IconOK      Icon = 5
)

const defaultColor = "rgb(89b4fa)"

// Notify sends a Hyprland notification payload.
func Notify(ctx context.Context, icon Icon, timeoutMS int, color string, text string) error {
	if strings.TrimSpace(color) == "" {
		color = defaultColor
	}
	return runHyprctl(
		ctx,
		"--quiet",
		"dispatch",
		"notify",
		strconv.Itoa(int(icon)),
		strconv.Itoa(timeoutMS),
		color,
		text,
	)
}

// DismissNotify dismisses active Hyprland notifications.
func DismissNotify(ctx context.Context) error {
	return runHyprctl(ctx, "--quiet", "dispatch", "dismissnotify")
}

// Available reports whether hyprctl is on PATH.
func Available() bool {
	_, err := exec.LookPath("hyprctl")
	return err == nil
}

func runHyprctl(ctx context.Context, args ...string) error {
	out, err := exec.CommandContext(ctx, "hyprctl", args...).CombinedOutput()
	if err == nil {
		return nil
	}
	if trimmed := strings.TrimSpace(string(out)); trimmed != "" {
		return fmt.Errorf("hyprctl %v failed: %w (%s)", args, err, trimmed)
	}
	return fmt.Errorf("hyprctl %v failed: %w", args, err)
}
