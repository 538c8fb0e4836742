// Package prompts loads the agent persona and task text from YAML and renders
// them for one diagnosis.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harun/medic/pkg/guardrail"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	// AgentKey names the diagnostician persona in agents.yaml
	AgentKey = "lead_diagnostician_agent"

	// TaskKey names the analysis task in tasks.yaml
	TaskKey = "system_analysis_task"

	agentsFile = "agents.yaml"
	tasksFile  = "tasks.yaml"
)

//go:embed config/*.yaml
var embedded embed.FS

// AgentConfig is one persona from agents.yaml
type AgentConfig struct {
	Role      string `yaml:"role"`
	Goal      string `yaml:"goal"`
	Backstory string `yaml:"backstory"`
}

// TaskConfig is one task from tasks.yaml
type TaskConfig struct {
	Description    string `yaml:"description"`
	ExpectedOutput string `yaml:"expected_output"`
}

// Set holds the loaded persona and task documents
type Set struct {
	Agents map[string]AgentConfig
	Tasks  map[string]TaskConfig
}

// Rendered is the prompt pair sent to the model
type Rendered struct {
	System string
	User   string
}

// Default returns the prompts compiled into the binary
func Default() (*Set, error) {
	return load(func(name string) ([]byte, error) {
		return embedded.ReadFile("config/" + name)
	})
}

// Load reads agents.yaml and tasks.yaml from dir. Either file may be missing,
// in which case the built-in document is used.
func Load(dir string) (*Set, error) {
	if dir == "" {
		return Default()
	}

	return load(func(name string) ([]byte, error) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			log.Debug().Str("file", name).Str("dir", dir).Msg("Prompt file not found, using built-in")
			return embedded.ReadFile("config/" + name)
		}
		return data, err
	})
}

func load(read func(name string) ([]byte, error)) (*Set, error) {
	set := &Set{}

	data, err := read(agentsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", agentsFile, err)
	}
	if err := yaml.Unmarshal(data, &set.Agents); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", agentsFile, err)
	}

	data, err = read(tasksFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", tasksFile, err)
	}
	if err := yaml.Unmarshal(data, &set.Tasks); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", tasksFile, err)
	}

	if _, ok := set.Agents[AgentKey]; !ok {
		return nil, fmt.Errorf("%s: missing agent %q", agentsFile, AgentKey)
	}
	if _, ok := set.Tasks[TaskKey]; !ok {
		return nil, fmt.Errorf("%s: missing task %q", tasksFile, TaskKey)
	}

	return set, nil
}

// Render fills the diagnostician persona and analysis task for one problem
func (s *Set) Render(problem string, platform guardrail.Platform) Rendered {
	agent := s.Agents[AgentKey]
	task := s.Tasks[TaskKey]

	replacer := strings.NewReplacer(
		"{problem_description}", strings.TrimSpace(problem),
		"{platform}", platform.DisplayName(),
		"{platform_guide}", guardrail.PlatformGuide(platform),
		"{script_kind}", ScriptKind(platform),
	)

	var system strings.Builder
	fmt.Fprintf(&system, "You are %s.\n\n", strings.TrimSpace(agent.Role))
	fmt.Fprintf(&system, "Your goal: %s\n\n", strings.TrimSpace(agent.Goal))
	system.WriteString(strings.TrimSpace(agent.Backstory))

	var user strings.Builder
	user.WriteString(strings.TrimSpace(task.Description))
	if task.ExpectedOutput != "" {
		fmt.Fprintf(&user, "\n\nExpected output: %s", strings.TrimSpace(task.ExpectedOutput))
	}

	return Rendered{
		System: replacer.Replace(system.String()),
		User:   replacer.Replace(user.String()),
	}
}

// ScriptKind names the script format generated for a platform
func ScriptKind(platform guardrail.Platform) string {
	if platform == guardrail.PlatformWindows {
		return "Windows Batch Script (.bat file)"
	}
	return "POSIX shell script (.sh file)"
}
