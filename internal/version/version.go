// Package version carries build metadata injected through -ldflags.
package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the version line printed by `vetchat version`.
func String() string {
	return "vetchat " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// UserAgent identifies the client to the assistant service.
func UserAgent() string {
	return "vetchat/" + Version
}
