package guardrail

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrCommandNotAllowed is returned when a command fails the allow-list check
	ErrCommandNotAllowed = errors.New("command not allowed")

	// ErrPowerShellUnavailable is returned for PowerShell commands off Windows
	ErrPowerShellUnavailable = errors.New("powershell is only available on windows")
)

// FixCommandsRequest is the pseudo-command that asks for the fix catalog
const FixCommandsRequest = "get_fix_commands"

// Entry is an extra allow-list entry supplied by configuration
type Entry struct {
	Command string `json:"command,omitempty" mapstructure:"command"`
	Pattern string `json:"pattern,omitempty" mapstructure:"pattern"` // Glob pattern
	Reason  string `json:"reason,omitempty" mapstructure:"reason"`
}

// Decision is the outcome of a policy check
type Decision struct {
	Allowed bool   `json:"allowed"`
	Command string `json:"command"`
	Matched string `json:"matched,omitempty"`
	Reason  string `json:"reason"`
}

// Options configures a Policy
type Options struct {
	Platform Platform
	// Strict admits only exact matches of catalog or extra entries
	Strict bool
	Extra  []Entry
}

// Policy decides whether an agent-requested command may run
type Policy struct {
	catalog Catalog
	strict  bool
	extra   []Entry

	exact    map[string]string
	programs map[string]string
	cmdlets  map[string]string
	fixes    map[string]struct{}

	mu sync.RWMutex
}

// NewPolicy builds a policy over the built-in catalog for opts.Platform
func NewPolicy(opts Options) (*Policy, error) {
	platform := opts.Platform
	if platform == "" {
		platform = CurrentPlatform()
	}

	for i, entry := range opts.Extra {
		if strings.TrimSpace(entry.Command) == "" && strings.TrimSpace(entry.Pattern) == "" {
			return nil, fmt.Errorf("extra entry %d: either command or pattern must be specified", i)
		}
		if entry.Pattern != "" {
			if _, err := filepath.Match(entry.Pattern, ""); err != nil {
				return nil, fmt.Errorf("extra entry %d: invalid pattern %q: %w", i, entry.Pattern, err)
			}
		}
	}

	p := &Policy{
		catalog: CatalogFor(platform),
		strict:  opts.Strict,
	}
	p.extra = make([]Entry, len(opts.Extra))
	copy(p.extra, opts.Extra)
	p.index()

	log.Debug().
		Str("platform", string(p.catalog.Platform)).
		Bool("strict", p.strict).
		Int("diagnostics", len(p.catalog.Diagnostics)).
		Int("extra", len(p.extra)).
		Msg("Guardrail policy initialized")

	return p, nil
}

func (p *Policy) index() {
	p.exact = make(map[string]string)
	p.programs = make(map[string]string)
	p.cmdlets = make(map[string]string)
	p.fixes = make(map[string]struct{})

	add := func(cmd string) {
		norm := Normalize(cmd)
		if norm == "" {
			return
		}
		key := strings.ToLower(norm)
		p.exact[key] = cmd

		fields := strings.Fields(key)
		if _, ok := p.programs[fields[0]]; !ok {
			p.programs[fields[0]] = cmd
		}
		if fields[0] == "powershell" && len(fields) > 1 {
			if _, ok := p.cmdlets[fields[1]]; !ok {
				p.cmdlets[fields[1]] = cmd
			}
		}
	}

	for _, cmd := range p.catalog.Diagnostics {
		add(cmd)
	}
	for _, entry := range p.extra {
		if entry.Command != "" {
			add(entry.Command)
		}
	}
	for _, fc := range p.catalog.Fixes {
		for _, cmd := range fc.Commands {
			p.fixes[strings.ToLower(Normalize(cmd))] = struct{}{}
		}
	}
}

// LoadEntries reads extra allow-list entries from a JSON file
func LoadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse allow-list: %w", err)
	}

	log.Info().
		Str("path", path).
		Int("count", len(entries)).
		Msg("Extra allow-list loaded")

	return entries, nil
}

// Platform returns the platform the policy was built for
func (p *Policy) Platform() Platform {
	return p.catalog.Platform
}

// Strict reports whether only exact matches are admitted
func (p *Policy) Strict() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.strict
}

// SetStrict switches exact-match mode on or off
func (p *Policy) SetStrict(strict bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strict = strict
}

// Allowed returns the diagnostic commands of the catalog followed by extra command entries
func (p *Policy) Allowed() []string {
	allowed := make([]string, 0, len(p.catalog.Diagnostics)+len(p.extra))
	allowed = append(allowed, p.catalog.Diagnostics...)
	for _, entry := range p.extra {
		if entry.Command != "" {
			allowed = append(allowed, entry.Command)
		}
	}
	return allowed
}

// FixCategories returns the repair command catalog
func (p *Policy) FixCategories() []FixCategory {
	return CatalogFor(p.catalog.Platform).Fixes
}

// Check decides whether command may be executed
func (p *Policy) Check(command string) Decision {
	p.mu.RLock()
	strict := p.strict
	p.mu.RUnlock()

	norm := Normalize(command)
	decision := Decision{Command: norm}

	if norm == "" {
		decision.Reason = "empty command"
		return decision
	}

	key := strings.ToLower(norm)

	if matched, ok := p.exact[key]; ok {
		decision.Allowed = true
		decision.Matched = matched
		decision.Reason = "exact match"
		return decision
	}

	if _, ok := p.fixes[key]; ok {
		decision.Reason = "repair commands may only appear in generated scripts"
		return decision
	}

	if op, ok := shellOperator(command); ok {
		decision.Reason = fmt.Sprintf("shell operator %q is only permitted in exact catalog entries", op)
		return decision
	}

	if strings.Fields(key)[0] == "powershell" {
		if ch, ok := powershellExpression(norm); ok {
			decision.Reason = fmt.Sprintf("powershell expression character %q is only permitted in exact catalog entries", ch)
			return decision
		}
	}

	if !strict {
		if d, ok := p.checkProgram(key); ok {
			d.Command = norm
			return d
		}
	}

	for _, entry := range p.extra {
		if entry.Pattern != "" && matchGlob(strings.ToLower(entry.Pattern), key) {
			decision.Allowed = true
			decision.Matched = entry.Pattern
			decision.Reason = "pattern match"
			return decision
		}
	}

	if strict {
		decision.Reason = "strict mode requires an exact catalog match"
	} else {
		decision.Reason = "command is not in the diagnostic allow-list"
	}
	return decision
}

// checkProgram applies the program-level rule. The second return value
// reports whether the rule produced a final answer.
func (p *Policy) checkProgram(key string) (Decision, bool) {
	fields := strings.Fields(key)
	program := fields[0]

	matched, ok := p.programs[program]
	if !ok {
		return Decision{}, false
	}

	if program == "powershell" {
		if len(fields) < 2 {
			return Decision{Reason: "powershell requires an allowed cmdlet"}, true
		}
		cmdlet, ok := p.cmdlets[fields[1]]
		if !ok {
			return Decision{Reason: fmt.Sprintf("powershell cmdlet %q is not allowed", fields[1])}, true
		}
		matched = cmdlet
	}

	if arg, ok := rejectedArgument(program, fields[1:]); ok {
		return Decision{Reason: fmt.Sprintf("argument %q is outside the read-only forms of %s", arg, program)}, true
	}

	return Decision{Allowed: true, Matched: matched, Reason: "program match"}, true
}

// IsAllowed is shorthand for Check(command).Allowed
func (p *Policy) IsAllowed(command string) bool {
	return p.Check(command).Allowed
}

// IsFixCommandsRequest reports whether command asks for the fix catalog
func IsFixCommandsRequest(command string) bool {
	return strings.EqualFold(strings.TrimSpace(command), FixCommandsRequest)
}

// Normalize trims a command and collapses internal whitespace
func Normalize(command string) string {
	return strings.Join(strings.Fields(command), " ")
}

var shellOperators = []string{"|", "&", ";", ">", "<", "`", "$(", "^", "\n", "\r"}

func shellOperator(command string) (string, bool) {
	for _, op := range shellOperators {
		if strings.Contains(command, op) {
			return op, true
		}
	}
	return "", false
}

// matchGlob performs simple glob pattern matching
// Supports * (any characters) and ? (single character)
func matchGlob(pattern, str string) bool {
	if pattern == "*" {
		return true
	}

	matched, err := filepath.Match(pattern, str)
	if err != nil {
		log.Warn().
			Err(err).
			Str("pattern", pattern).
			Msg("Invalid glob pattern")
		return false
	}

	return matched
}
