// Package doctor runs readiness diagnostics for config, settings, the
// assistant service, speech tooling, and audio.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/vetchat/internal/audio"
	"github.com/rbright/vetchat/internal/backend"
	"github.com/rbright/vetchat/internal/config"
)

// EnvGoogleCredentials names the service account key used by speech recognition.
const EnvGoogleCredentials = "GOOGLE_APPLICATION_CREDENTIALS"

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// HealthSource is the assistant service health endpoint.
type HealthSource interface {
	Health(ctx context.Context) (backend.Health, error)
}

// Inputs carries what the checks inspect.
type Inputs struct {
	Config       config.Loaded
	SettingsPath string
	Backend      HealthSource
}

var selectDevice = audio.SelectDevice

// Run executes every check. Individual checks are bounded so a hung
// dependency cannot stall the report.
func Run(ctx context.Context, in Inputs) Report {
	cfg := in.Config.Config
	checks := []Check{checkConfig(in.Config)}

	checks = append(checks, checkSettingsWritable(in.SettingsPath))
	checks = append(checks, checkBackend(ctx, cfg.Backend.URL, in.Backend))
	checks = append(checks, checkBinary(cfg.TTS.Command.Program(), "speech output"))
	checks = append(checks, checkCommand(cfg.Clipboard.Argv, "clipboard"))

	switch strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend)) {
	case "desktop":
		checks = append(checks, checkBinary("busctl", "desktop notifications"))
	case "hypr":
		checks = append(checks, checkBinary("hyprctl", "hypr notifications"))
		checks = append(checks, checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
			return strings.TrimSpace(v) != ""
		}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"))
	}

	checks = append(checks, checkAudioSelection(ctx, cfg.Audio))
	checks = append(checks, checkSpeechCredentials(cfg.Speech))

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("using defaults (%q not found)", loaded.Path)
	}
	if n := len(loaded.Warnings); n > 0 && loaded.Exists {
		message += fmt.Sprintf(", %d warning(s)", n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkSettingsWritable creates and removes a scratch file beside the settings blob.
func checkSettingsWritable(path string) Check {
	if strings.TrimSpace(path) == "" {
		return Check{Name: "settings", Pass: false, Message: "settings path is empty"}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Check{Name: "settings", Pass: false, Message: fmt.Sprintf("create %s: %v", dir, err)}
	}
	scratch, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Check{Name: "settings", Pass: false, Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	_ = scratch.Close()
	_ = os.Remove(scratch.Name())
	return Check{Name: "settings", Pass: true, Message: fmt.Sprintf("writable at %s", path)}
}

func checkBackend(ctx context.Context, baseURL string, source HealthSource) Check {
	if source == nil {
		return Check{Name: "backend.health", Pass: false, Message: "no backend configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	health, err := source.Health(checkCtx)
	if err != nil {
		return Check{Name: "backend.health", Pass: false, Message: fmt.Sprintf("%s: %v", baseURL, err)}
	}
	if !health.Success || !health.Healthy {
		message := strings.TrimSpace(health.Message)
		if degraded := health.Degraded(); len(degraded) > 0 {
			message = strings.TrimSpace(message + " (degraded: " + strings.Join(degraded, ", ") + ")")
		}
		if message == "" {
			message = "service reported unhealthy"
		}
		return Check{Name: "backend.health", Pass: false, Message: message}
	}
	return Check{Name: "backend.health", Pass: true, Message: fmt.Sprintf("healthy at %s", baseURL)}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	if predicate(os.Getenv(name)) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	check := checkBinary(argv[0], name+" command")
	check.Name = name
	return check
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, purpose string) Check {
	if strings.TrimSpace(bin) == "" {
		return Check{Name: purpose, Pass: false, Message: "binary is not configured"}
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, purpose)}
}

// checkAudioSelection runs live device selection to surface fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.AudioConfig) Check {
	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	selection, err := selectDevice(checkCtx, cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message += " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkSpeechCredentials verifies a readable key file for speech recognition.
func checkSpeechCredentials(cfg config.SpeechConfig) Check {
	path := strings.TrimSpace(cfg.CredentialsFile)
	source := "speech.credentials_file"
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvGoogleCredentials))
		source = EnvGoogleCredentials
	}
	if path == "" {
		return Check{Name: "speech.credentials", Pass: false, Message: fmt.Sprintf("set %s or speech.credentials_file", EnvGoogleCredentials)}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Check{Name: "speech.credentials", Pass: false, Message: fmt.Sprintf("%s: %v", source, err)}
	}
	if info.IsDir() {
		return Check{Name: "speech.credentials", Pass: false, Message: fmt.Sprintf("%s points at a directory", source)}
	}
	return Check{Name: "speech.credentials", Pass: true, Message: fmt.Sprintf("%s -> %s", source, path)}
}
