package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringIncludesBuildMetadata(t *testing.T) {
	originalVersion, originalCommit, originalDate := Version, Commit, Date
	t.Cleanup(func() {
		Version, Commit, Date = originalVersion, originalCommit, originalDate
	})

	Version = "0.4.0"
	Commit = "9f1c2ab"
	Date = "2026-10-01"

	got := String()
	require.Contains(t, got, "vetchat 0.4.0")
	require.Contains(t, got, "commit=9f1c2ab")
	require.Contains(t, got, "date=2026-10-01")
	require.Contains(t, got, "go=")
	require.Equal(t, "vetchat/0.4.0", UserAgent())
}
