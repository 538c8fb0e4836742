package toolexecutor

import (
	"context"
	"fmt"

	"github.com/harun/medic/pkg/sysinfo"
)

// CollectFunc gathers the host snapshot returned by the system_info tool
type CollectFunc func(ctx context.Context) (sysinfo.Info, error)

// SystemInfoDefinition returns the system_info tool. A nil collect uses sysinfo.Collect.
func SystemInfoDefinition(collect CollectFunc) ToolDefinition {
	if collect == nil {
		collect = sysinfo.Collect
	}

	return ToolDefinition{
		Name:        SystemInfoToolName,
		Description: "Returns a summary of the host: operating system, kernel, processor, memory and system disk usage. Takes no parameters.",
		Parameters:  []ToolParameter{},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			info, err := collect(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to collect system information: %w", err)
			}
			return info.String(), nil
		},
	}
}
