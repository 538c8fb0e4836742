package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harun/medic/internal/config"
	"github.com/harun/medic/internal/logger"
	"github.com/harun/medic/internal/observability"
	"github.com/harun/medic/internal/tracing"
	"github.com/harun/medic/pkg/agent"
	"github.com/harun/medic/pkg/guardrail"
	"github.com/harun/medic/pkg/prompts"
	"github.com/harun/medic/pkg/sandbox"
	"github.com/harun/medic/pkg/sysinfo"
	"github.com/harun/medic/pkg/toolexecutor"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Replaced in tests.
var (
	newCommandRunner = func(cfg sandbox.Config) (sandbox.Runner, error) {
		return sandbox.NewHostRunner(cfg)
	}
	newProviderFactory = func() agent.ProviderCreator {
		return &agent.ProviderFactory{}
	}
	collectSystemInfo toolexecutor.CollectFunc = sysinfo.Collect
)

// app holds the components shared by the subcommands
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	policy   *guardrail.Policy
	executor *toolexecutor.ToolExecutor
	command  *toolexecutor.SystemCommand
	info     sysinfo.Info
	traces   *os.File
}

type appOptions struct {
	strict      bool
	metricsFile string
	traceFile   string
}

// newApp loads configuration, installs the logger and builds the guardrail,
// the command runner and the tool executor
func newApp(cmd *cobra.Command, opts appOptions) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if opts.strict {
		cfg.Guardrail.Strict = true
	}
	if opts.metricsFile != "" {
		cfg.Metrics.File = opts.metricsFile
	}
	if opts.traceFile != "" {
		cfg.Tracing.File = opts.traceFile
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Output:    cmd.ErrOrStderr(),
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	for _, verr := range config.NewValidator().ValidateConfig(cfg) {
		log.Warn().Err(verr).Msg("Configuration problem")
	}

	observability.EnsureRegistered()
	if cfg.Audit.Enabled {
		if err := observability.InitAuditLogger(cfg.Audit.File); err != nil {
			lg.Close()
			return nil, err
		}
	}

	a := &app{cfg: cfg, logger: lg}
	if err := a.initTracing(); err != nil {
		a.close()
		return nil, err
	}
	if err := a.build(cmd.Context()); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	extra := append([]guardrail.Entry{}, a.cfg.Guardrail.Allow...)
	if a.cfg.Guardrail.AllowFile != "" {
		entries, err := guardrail.LoadEntries(a.cfg.Guardrail.AllowFile)
		if err != nil {
			return err
		}
		extra = append(extra, entries...)
	}

	policy, err := guardrail.NewPolicy(guardrail.Options{
		Strict: a.cfg.Guardrail.Strict,
		Extra:  extra,
	})
	if err != nil {
		return fmt.Errorf("failed to build command policy: %w", err)
	}

	runnerCfg := sandbox.DefaultConfig()
	runnerCfg.Timeout = a.cfg.CommandTimeout()
	if a.cfg.Guardrail.MaxOutputBytes > 0 {
		runnerCfg.MaxOutputBytes = a.cfg.Guardrail.MaxOutputBytes
	}
	runner, err := newCommandRunner(runnerCfg)
	if err != nil {
		return fmt.Errorf("failed to create command runner: %w", err)
	}

	info, err := collectSystemInfo(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Host information unavailable")
	}

	command, err := toolexecutor.NewSystemCommand(toolexecutor.SystemCommandOptions{
		Policy:  policy,
		Runner:  runner,
		Timeout: runnerCfg.Timeout,
		Release: info.Release(),
	})
	if err != nil {
		return err
	}

	executor := toolexecutor.New()
	if err := executor.RegisterTool(command.Definition()); err != nil {
		return err
	}
	if err := executor.RegisterTool(toolexecutor.SystemInfoDefinition(collectSystemInfo)); err != nil {
		return err
	}

	a.policy = policy
	a.executor = executor
	a.command = command
	a.info = info
	return nil
}

// initTracing always installs a tracer so audit events carry trace IDs;
// spans are written out only when a trace file is configured
func (a *app) initTracing() error {
	if a.cfg.Tracing.File == "" {
		return tracing.Init("medic", version, nil)
	}

	if err := os.MkdirAll(filepath.Dir(a.cfg.Tracing.File), 0o755); err != nil {
		return fmt.Errorf("failed to create trace directory: %w", err)
	}
	f, err := os.OpenFile(a.cfg.Tracing.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	a.traces = f
	return tracing.Init("medic", version, f)
}

type agentOptions struct {
	apiKey   string
	provider string
	model    string
}

// diagnostician builds the agent runner from the configured profiles.
// An explicit API key replaces them with a single profile.
func (a *app) diagnostician(opts agentOptions) (*agent.Diagnostician, error) {
	profiles := a.cfg.AuthProfiles()
	if opts.apiKey != "" {
		provider := opts.provider
		if provider == "" {
			provider = agent.ProviderGemini
		}
		profiles = []agent.AuthProfile{{ID: "cli", Provider: provider, APIKey: opts.apiKey, Priority: 1}}
	} else if opts.provider != "" {
		var filtered []agent.AuthProfile
		for _, p := range profiles {
			if p.Provider == opts.provider {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			filtered = []agent.AuthProfile{{ID: opts.provider, Provider: opts.provider, Priority: 1}}
		}
		profiles = filtered
	}

	agentCfg := a.cfg.Agent
	if opts.model != "" {
		agentCfg.Model = opts.model
	}

	runner, err := agent.NewRunner(agent.Config{
		ToolExecutor:    a.executor,
		Logger:          a.logger.Zerolog(),
		AuthProfiles:    profiles,
		ProviderFactory: newProviderFactory(),
	})
	if err != nil {
		return nil, err
	}

	set, err := prompts.Load(a.cfg.PromptsDir)
	if err != nil {
		return nil, err
	}

	return agent.NewDiagnostician(agent.DiagnosticianConfig{
		Runner:   runner,
		Prompts:  set,
		Platform: a.policy.Platform(),
		Agent:    agentCfg,
	})
}

// close flushes metrics, spans and the audit log and closes the log file
func (a *app) close() {
	if err := tracing.Shutdown(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Failed to flush traces")
	}
	if a.traces != nil {
		a.traces.Close()
	}
	if a.cfg.Metrics.File != "" {
		if err := observability.WriteTextfile(a.cfg.Metrics.File); err != nil {
			log.Warn().Err(err).Str("path", a.cfg.Metrics.File).Msg("Failed to write metrics")
		}
	}
	if err := observability.GetAuditLogger().Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close audit log")
	}
	if a.logger != nil {
		a.logger.Close()
	}
}
