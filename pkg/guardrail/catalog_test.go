package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	assert.Equal(t, PlatformWindows, ParsePlatform("windows"))
	assert.Equal(t, PlatformDarwin, ParsePlatform("darwin"))
	assert.Equal(t, PlatformDarwin, ParsePlatform("macOS"))
	assert.Equal(t, PlatformLinux, ParsePlatform("linux"))
	assert.Equal(t, PlatformLinux, ParsePlatform("freebsd"))
}

func TestCatalogFor_ReturnsCopy(t *testing.T) {
	c := CatalogFor(PlatformLinux)
	require.NotEmpty(t, c.Diagnostics)
	require.NotEmpty(t, c.Fixes)

	c.Diagnostics[0] = "rm -rf /"
	c.Fixes[0].Commands[0] = "reboot"

	fresh := CatalogFor(PlatformLinux)
	assert.Equal(t, "uname -a", fresh.Diagnostics[0])
	assert.Equal(t, "sudo apt-get clean", fresh.Fixes[0].Commands[0])
}

func TestFormatFixCommands(t *testing.T) {
	out := FormatFixCommands(PlatformLinux)

	assert.Contains(t, out, "Available safe fix command categories for Linux:")
	assert.Contains(t, out, "SYSTEM CLEANUP:\n  - sudo apt-get clean\n")
	assert.Contains(t, out, "DISK CHECK:")

	win := FormatFixCommands(PlatformWindows)
	assert.Contains(t, win, "NETWORK RESET:\n  - ipconfig /flushdns\n")
}

func TestFormatDenied(t *testing.T) {
	p, err := NewPolicy(Options{Platform: PlatformLinux})
	require.NoError(t, err)

	out := p.FormatDenied("rm -rf /")
	assert.Contains(t, out, "Error: The command 'rm -rf /' is not permitted for security reasons.")
	assert.Contains(t, out, "Allowed commands for Linux:\n  - uname -a\n")
	assert.NotContains(t, out, "sudo")
}

func TestPlatformGuide(t *testing.T) {
	assert.Contains(t, PlatformGuide(PlatformWindows), "systeminfo")
	assert.Contains(t, PlatformGuide(PlatformLinux), "journalctl")
	assert.Contains(t, PlatformGuide(PlatformDarwin), "system_profiler")
}
