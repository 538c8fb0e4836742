package guardrail

import (
	"runtime"
	"strings"
)

// Platform identifies the operating system family a catalog targets
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
	PlatformDarwin  Platform = "darwin"
)

// CurrentPlatform returns the platform medic is running on.
// Unknown systems fall back to the Linux catalog.
func CurrentPlatform() Platform {
	return ParsePlatform(runtime.GOOS)
}

// ParsePlatform maps a GOOS-style name to a Platform
func ParsePlatform(goos string) Platform {
	switch strings.ToLower(strings.TrimSpace(goos)) {
	case "windows":
		return PlatformWindows
	case "darwin", "macos":
		return PlatformDarwin
	default:
		return PlatformLinux
	}
}

// DisplayName returns the human name of the platform
func (p Platform) DisplayName() string {
	switch p {
	case PlatformWindows:
		return "Windows"
	case PlatformDarwin:
		return "Darwin"
	default:
		return "Linux"
	}
}

// FixCategory groups repair commands the agent may put into a generated script
type FixCategory struct {
	Name     string
	Commands []string
}

// Catalog holds the built-in commands for one platform
type Catalog struct {
	Platform    Platform
	Diagnostics []string
	Fixes       []FixCategory
}

// CatalogFor returns a copy of the built-in catalog for a platform
func CatalogFor(p Platform) Catalog {
	var c Catalog
	switch p {
	case PlatformWindows:
		c = Catalog{Platform: p, Diagnostics: windowsDiagnostics, Fixes: windowsFixes}
	case PlatformDarwin:
		c = Catalog{Platform: p, Diagnostics: darwinDiagnostics, Fixes: darwinFixes}
	default:
		c = Catalog{Platform: PlatformLinux, Diagnostics: linuxDiagnostics, Fixes: linuxFixes}
	}

	diagnostics := make([]string, len(c.Diagnostics))
	copy(diagnostics, c.Diagnostics)

	fixes := make([]FixCategory, len(c.Fixes))
	for i, fc := range c.Fixes {
		cmds := make([]string, len(fc.Commands))
		copy(cmds, fc.Commands)
		fixes[i] = FixCategory{Name: fc.Name, Commands: cmds}
	}

	return Catalog{Platform: c.Platform, Diagnostics: diagnostics, Fixes: fixes}
}

var windowsDiagnostics = []string{
	"systeminfo",
	"tasklist",
	"wmic process get name,commandline,processid",
	"wmic logicaldisk get size,freespace,caption",
	"wmic memorychip get capacity,speed,manufacturer",
	"wmic cpu get name,maxclockspeed,numberofcores",
	"netstat -an",
	"ipconfig /all",
	"sfc /verifyonly",
	"dism /online /cleanup-image /checkhealth",
	"powercfg /batteryreport",
	"wmic startup get caption,command,location",
	"wmic service where state='running' get name,displayname,processid",
	"dir %temp% /a",
	"wmic qfe list brief",
	"bcdedit /enum",
	"wmic diskdrive get status,size,model",
	"wmic temperature get currenttemperature",
	"wmic computersystem get totalphysicalmemory",
	"powershell Get-EventLog -LogName System -EntryType Error -Newest 10",
	"powershell Get-WmiObject -Class Win32_PhysicalMemory",
	"powershell Get-WmiObject -Class Win32_LogicalDisk",
}

var linuxDiagnostics = []string{
	"uname -a",
	"lscpu",
	"free -h",
	"df -h",
	"lsblk",
	"ps aux",
	"netstat -tuln",
	"ifconfig",
	"dmesg | tail -20",
	"journalctl -xe --no-pager -n 10",
	"systemctl --failed",
	"top -bn1 | head -20",
	"lsusb",
	"lspci",
}

var darwinDiagnostics = []string{
	"sw_vers",
	"system_profiler SPHardwareDataType",
	"uname -a",
	"df -h",
	"ps aux",
	"netstat -an",
	"ifconfig",
	"vm_stat",
	"top -l 1 -n 10",
	"launchctl list",
	"pmset -g batt",
	"log show --last 5m --predicate 'messageType == error'",
}

var windowsFixes = []FixCategory{
	{Name: "disk_cleanup", Commands: []string{
		"cleanmgr /sagerun:1",
		`del /q /f %temp%\*.*`,
		"rd /s /q %temp%",
		"md %temp%",
		"powershell Clear-RecycleBin -Force -ErrorAction SilentlyContinue",
	}},
	{Name: "system_files", Commands: []string{
		"sfc /scannow",
		"dism /online /cleanup-image /restorehealth",
	}},
	{Name: "restart_services", Commands: []string{
		"net stop spooler & net start spooler",
		"net stop bits & net start bits",
		"net stop wuauserv & net start wuauserv",
		"net stop cryptsvc & net start cryptsvc",
	}},
	{Name: "network_reset", Commands: []string{
		"ipconfig /flushdns",
		"netsh winsock reset",
		"netsh int ip reset",
		"netsh advfirewall reset",
	}},
	{Name: "performance_boost", Commands: []string{
		"powercfg /setactive 8c5e7fda-e8bf-4a96-9a85-a6e23a8c635c",
		"defrag c: /o",
		"powershell Optimize-Volume -DriveLetter C -ReTrim",
	}},
	{Name: "registry_cleanup", Commands: []string{
		`reg delete HKEY_CURRENT_USER\Software\Microsoft\Windows\CurrentVersion\Run /v tempentry /f`,
		"powershell Clear-Variable -Name * -ErrorAction SilentlyContinue",
	}},
	{Name: "windows_update", Commands: []string{
		"powershell Install-Module PSWindowsUpdate -Force",
		"powershell Get-WUInstall -AcceptAll -AutoReboot",
	}},
}

var linuxFixes = []FixCategory{
	{Name: "system_cleanup", Commands: []string{
		"sudo apt-get clean",
		"sudo apt-get autoremove",
		"sudo journalctl --vacuum-time=3d",
	}},
	{Name: "system_update", Commands: []string{
		"sudo apt-get update",
		"sudo apt-get upgrade -y",
	}},
	{Name: "service_restart", Commands: []string{
		"sudo systemctl restart networking",
		"sudo systemctl restart NetworkManager",
	}},
	{Name: "disk_check", Commands: []string{
		"sudo fsck -f /dev/sda1",
		"sudo e2fsck -f /dev/sda1",
	}},
}

var darwinFixes = []FixCategory{
	{Name: "system_cleanup", Commands: []string{
		"rm -rf ~/Library/Caches/*",
		"sudo periodic daily weekly monthly",
	}},
	{Name: "network_reset", Commands: []string{
		"sudo dscacheutil -flushcache",
		"sudo killall -HUP mDNSResponder",
	}},
	{Name: "disk_check", Commands: []string{
		"diskutil verifyVolume /",
		"diskutil repairVolume /",
	}},
}
