// Package sysinfo gathers a short description of the host for the agent and
// for the system_info tool.
package sysinfo

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Info is a snapshot of host facts. Zero values mean the fact was unavailable.
type Info struct {
	OS              string        `json:"os"`
	Platform        string        `json:"platform,omitempty"`
	PlatformVersion string        `json:"platform_version,omitempty"`
	KernelVersion   string        `json:"kernel_version,omitempty"`
	Architecture    string        `json:"architecture"`
	Hostname        string        `json:"hostname,omitempty"`
	Uptime          time.Duration `json:"uptime,omitempty"`
	CPUModel        string        `json:"cpu_model,omitempty"`
	CPUCores        int           `json:"cpu_cores,omitempty"`
	MemoryTotal     uint64        `json:"memory_total,omitempty"`
	MemoryUsed      uint64        `json:"memory_used,omitempty"`
	DiskPath        string        `json:"disk_path,omitempty"`
	DiskTotal       uint64        `json:"disk_total,omitempty"`
	DiskUsed        uint64        `json:"disk_used,omitempty"`
}

// Collect reads host facts. Only a failure to read basic host information is
// an error; missing CPU, memory or disk figures are logged and left empty.
func Collect(ctx context.Context) (Info, error) {
	info := Info{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}

	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		return info, fmt.Errorf("failed to read host info: %w", err)
	}
	info.Hostname = hi.Hostname
	info.Platform = hi.Platform
	info.PlatformVersion = hi.PlatformVersion
	info.KernelVersion = hi.KernelVersion
	info.Uptime = time.Duration(hi.Uptime) * time.Second
	if hi.KernelArch != "" {
		info.Architecture = hi.KernelArch
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.CPUModel = strings.TrimSpace(cpus[0].ModelName)
	} else if err != nil {
		log.Debug().Err(err).Msg("CPU info unavailable")
	}
	if cores, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPUCores = cores
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryTotal = vm.Total
		info.MemoryUsed = vm.Used
	} else {
		log.Debug().Err(err).Msg("Memory info unavailable")
	}

	info.DiskPath = systemDrive()
	if usage, err := disk.UsageWithContext(ctx, info.DiskPath); err == nil {
		info.DiskTotal = usage.Total
		info.DiskUsed = usage.Used
	} else {
		log.Debug().Err(err).Str("path", info.DiskPath).Msg("Disk usage unavailable")
	}

	return info, nil
}

// Release returns the kernel or platform version used in command output headers
func (i Info) Release() string {
	if i.KernelVersion != "" {
		return i.KernelVersion
	}
	return i.PlatformVersion
}

// String renders the snapshot as a plain-text block
func (i Info) String() string {
	var b strings.Builder
	b.WriteString("=== System Information ===\n")

	line := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", key, value)
		}
	}

	line("OS", i.OS)
	line("Platform", strings.TrimSpace(i.Platform+" "+i.PlatformVersion))
	line("Kernel", i.KernelVersion)
	line("Architecture", i.Architecture)
	line("Hostname", i.Hostname)
	if i.Uptime > 0 {
		line("Uptime", i.Uptime.Truncate(time.Minute).String())
	}
	line("Processor", i.CPUModel)
	if i.CPUCores > 0 {
		line("Logical CPUs", fmt.Sprintf("%d", i.CPUCores))
	}
	if i.MemoryTotal > 0 {
		line("Memory", fmt.Sprintf("%s used of %s", humanize.IBytes(i.MemoryUsed), humanize.IBytes(i.MemoryTotal)))
	}
	if i.DiskTotal > 0 {
		line("Disk "+i.DiskPath, fmt.Sprintf("%s used of %s", humanize.IBytes(i.DiskUsed), humanize.IBytes(i.DiskTotal)))
	}

	return b.String()
}

func systemDrive() string {
	if runtime.GOOS == "windows" {
		drive := os.Getenv("SystemDrive")
		if drive == "" {
			drive = "C:"
		}
		return drive + `\`
	}
	return "/"
}
