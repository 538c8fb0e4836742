package guardrail

import (
	"fmt"
	"strings"
)

// FormatFixCommands renders the fix catalog the way the agent receives it
func FormatFixCommands(p Platform) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Available safe fix command categories for %s:\n\n", p.DisplayName())
	for _, fc := range CatalogFor(p).Fixes {
		fmt.Fprintf(&b, "%s:\n", strings.ToUpper(strings.ReplaceAll(fc.Name, "_", " ")))
		for _, cmd := range fc.Commands {
			fmt.Fprintf(&b, "  - %s\n", cmd)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatDenied renders the refusal returned to the agent for a blocked command
func (p *Policy) FormatDenied(command string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: The command '%s' is not permitted for security reasons.\n\n", command)
	fmt.Fprintf(&b, "Allowed commands for %s:\n", p.catalog.Platform.DisplayName())
	allowed := p.Allowed()
	for i, cmd := range allowed {
		b.WriteString("  - ")
		b.WriteString(cmd)
		if i < len(allowed)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// PlatformGuide describes the diagnostics available on a platform
func PlatformGuide(p Platform) string {
	switch p {
	case PlatformWindows:
		return `Windows-specific diagnostic commands available:
- systeminfo: Complete system configuration
- tasklist: Running processes
- wmic: Windows Management Interface queries
- sfc /verifyonly: System file integrity check
- dism: Windows image management
- powercfg: Power configuration analysis
- Event log queries via PowerShell`
	case PlatformDarwin:
		return `macOS-specific diagnostic commands available:
- system_profiler: Hardware information
- top: Process information
- df -h: Disk usage
- netstat: Network connections
- launchctl: Service management
- log show: Recent error log entries`
	default:
		return `Linux-specific diagnostic commands available:
- uname -a: Kernel and system information
- lscpu: CPU information
- free -h: Memory usage
- df -h: Disk space usage
- systemctl: Service status
- journalctl: System logs
- dmesg: Kernel messages`
	}
}
