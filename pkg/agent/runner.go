package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harun/medic/internal/observability"
	"github.com/harun/medic/internal/tracing"
	"github.com/harun/medic/pkg/toolexecutor"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// Runner orchestrates AI agent execution
type Runner struct {
	toolExecutor    *toolexecutor.ToolExecutor
	logger          zerolog.Logger
	providerFactory ProviderCreator
	retryBaseDelay  time.Duration

	// Auth profiles
	authProfiles []AuthProfile
	authMu       sync.RWMutex
}

// Config holds runner configuration
type Config struct {
	ToolExecutor    *toolexecutor.ToolExecutor
	Logger          *zerolog.Logger
	AuthProfiles    []AuthProfile
	ProviderFactory ProviderCreator
	// RetryBaseDelay is the first backoff step; doubled per attempt. Defaults to 1s.
	RetryBaseDelay time.Duration
}

// NewRunner creates a new agent runner
func NewRunner(cfg Config) (*Runner, error) {
	observability.EnsureRegistered()

	if cfg.ToolExecutor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	if len(cfg.AuthProfiles) == 0 {
		return nil, fmt.Errorf("at least one auth profile is required")
	}

	profiles := make([]AuthProfile, 0, len(cfg.AuthProfiles))
	var missing error
	for _, profile := range cfg.AuthProfiles {
		if profile.APIKey == "" {
			if missing == nil {
				missing = &MissingAPIKeyError{Provider: profile.Provider}
			}
			continue
		}
		profiles = append(profiles, profile)
	}
	if len(profiles) == 0 {
		return nil, missing
	}

	providerFactory := cfg.ProviderFactory
	if providerFactory == nil {
		providerFactory = &ProviderFactory{}
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	retryBaseDelay := cfg.RetryBaseDelay
	if retryBaseDelay <= 0 {
		retryBaseDelay = time.Second
	}

	return &Runner{
		toolExecutor:    cfg.ToolExecutor,
		logger:          logger,
		providerFactory: providerFactory,
		retryBaseDelay:  retryBaseDelay,
		authProfiles:    profiles,
	}, nil
}

// Run executes one agent conversation until the model stops calling tools
func (r *Runner) Run(ctx context.Context, params RunParams) (result Result, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if params.Prompt == "" {
		return Result{}, fmt.Errorf("prompt is required")
	}
	if params.RunID == "" {
		params.RunID = uuid.NewString()
	}
	ctx = observability.WithRunID(ctx, params.RunID)

	ctx, span := tracing.StartSpan(ctx, "agent.run",
		attribute.String("run_id", params.RunID),
		attribute.String("agent_id", params.AgentID),
	)
	defer func() {
		span.SetAttributes(
			attribute.String("provider", result.Provider),
			attribute.Int("tool_calls", len(result.ToolCalls)),
		)
		tracing.End(span, err)
	}()

	if err := r.validateConfig(params.Config); err != nil {
		return Result{RunID: params.RunID}, fmt.Errorf("invalid configuration: %w", err)
	}

	tools, err := r.buildTools(params.Tools)
	if err != nil {
		return Result{RunID: params.RunID}, err
	}

	messages := []AgentMessage{{Role: "user", Content: params.Prompt}}

	result, err = r.executeWithFailover(ctx, messages, tools, params)
	result.RunID = params.RunID
	return result, err
}

func (r *Runner) validateConfig(config AgentConfig) error {
	if config.Temperature < 0 || config.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	if config.MaxTurns < 0 {
		return fmt.Errorf("max turns must be positive")
	}
	return nil
}

// buildTools converts registered tools into the provider-neutral tool format
func (r *Runner) buildTools(toolNames []string) ([]interface{}, error) {
	if len(toolNames) == 0 {
		return nil, nil
	}

	tools := []interface{}{}

	for _, name := range toolNames {
		toolDef := r.toolExecutor.GetTool(name)
		if toolDef == nil {
			return nil, fmt.Errorf("tool not found: %s", name)
		}

		tools = append(tools, map[string]interface{}{
			"name":         toolDef.Name,
			"description":  toolDef.Description,
			"input_schema": toolDef.InputSchema(),
		})
	}

	return tools, nil
}

// executeWithFailover executes with auth profile failover
func (r *Runner) executeWithFailover(ctx context.Context, messages []AgentMessage, tools []interface{}, params RunParams) (Result, error) {
	r.authMu.RLock()
	profiles := make([]AuthProfile, len(r.authProfiles))
	copy(profiles, r.authProfiles)
	r.authMu.RUnlock()
	logger := tracing.Logger(ctx, r.logger.With().Str("run_id", params.RunID).Logger())

	sortProfilesByPriority(profiles)

	var lastErr error

	for _, profile := range profiles {
		profileStart := time.Now()
		// Skip profiles in cooldown
		if profile.CooldownUntil != nil && time.Now().UnixMilli() < *profile.CooldownUntil {
			observability.SetProviderCooldown(profile.Provider, true)
			logger.Debug().
				Str("profile_id", profile.ID).
				Msg("Skipping profile in cooldown")
			continue
		}

		observability.SetProviderCooldown(profile.Provider, false)
		logger.Info().
			Str("profile_id", profile.ID).
			Str("provider", profile.Provider).
			Msg("Trying auth profile")

		provider, err := r.providerFactory.NewProvider(profile)
		if err != nil {
			lastErr = err
			observability.RecordAgentRun(profile.Provider, time.Since(profileStart), false)
			logger.Warn().
				Str("profile_id", profile.ID).
				Err(err).
				Msg("Failed to create provider")
			continue
		}

		model := params.Config.Model
		if model == "" {
			model = profile.Model
		}
		if model == "" {
			model = DefaultModel(profile.Provider)
		}

		result, err := r.executeWithTools(ctx, provider, model, messages, tools, params)
		if err == nil {
			r.updateProfileSuccess(profile.ID)
			observability.RecordAgentRun(profile.Provider, time.Since(profileStart), true)
			result.Provider = provider.Provider()
			return result, nil
		}

		lastErr = err
		observability.RecordAgentRun(profile.Provider, time.Since(profileStart), false)
		logger.Warn().
			Str("profile_id", profile.ID).
			Err(err).
			Msg("Auth profile failed")

		r.updateProfileFailure(profile.ID)

		// Don't fail over on permanent errors
		if !IsRetryableError(err) {
			return Result{}, err
		}
	}

	if lastErr == nil {
		return Result{}, fmt.Errorf("all auth profiles are cooling down")
	}
	logger.Error().Err(lastErr).Msg("All auth profiles failed")
	return Result{}, fmt.Errorf("all auth profiles failed: %w", lastErr)
}

// executeWithTools handles the tool execution loop
func (r *Runner) executeWithTools(ctx context.Context, provider LLMProvider, model string, messages []AgentMessage, tools []interface{}, params RunParams) (Result, error) {
	currentMessages := append([]AgentMessage(nil), messages...)
	allToolCalls := []ToolCall{}
	var usage *TokenUsage

	maxTurns := params.Config.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultConfig().MaxTurns
	}

	execCtx := &toolexecutor.ExecutionContext{
		RunID:      params.RunID,
		AgentID:    params.AgentID,
		ToolPolicy: params.ToolPolicy,
	}

	for turn := 0; turn < maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return Result{Aborted: true, ToolCalls: allToolCalls, Usage: usage}, err
		}

		response, err := r.callLLMWithRetry(ctx, provider, model, currentMessages, tools, params)
		if err != nil {
			return Result{}, err
		}
		usage = usage.add(response.Usage)

		if len(response.ToolCalls) == 0 {
			return Result{
				Response:  response.Content,
				ToolCalls: allToolCalls,
				Usage:     usage,
			}, nil
		}

		currentMessages = append(currentMessages, AgentMessage{
			Role:      "assistant",
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})
		for _, call := range response.ToolCalls {
			r.logger.Debug().
				Str("run_id", params.RunID).
				Str("tool", call.Name).
				Interface("parameters", call.Parameters).
				Msg("Agent requested tool")

			currentMessages = append(currentMessages, toolMessage(call, r.toolExecutor.Execute(ctx, call.Name, call.Parameters, execCtx)))
		}
		allToolCalls = append(allToolCalls, response.ToolCalls...)
	}

	return Result{}, fmt.Errorf("maximum tool execution turns exceeded (%d)", maxTurns)
}

// toolMessage renders a tool result as the text the model reads. Failures are
// prefixed with "Error: " so providers can flag them.
func toolMessage(call ToolCall, result toolexecutor.ToolResult) AgentMessage {
	content := fmt.Sprintf("%v", result.Output)
	if !result.Success {
		content = "Error: " + result.Error
	}
	return AgentMessage{
		Role:       "tool",
		Content:    content,
		ToolCallID: call.ID,
		ToolName:   call.Name,
	}
}

// callLLMWithRetry calls LLM with exponential backoff retry
func (r *Runner) callLLMWithRetry(ctx context.Context, provider LLMProvider, model string, messages []AgentMessage, tools []interface{}, params RunParams) (*LLMResponse, error) {
	maxRetries := params.Config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	maxTokens := params.Config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultConfig().MaxTokens
	}

	request := LLMRequest{
		Model:        model,
		Messages:     messages,
		Tools:        tools,
		Temperature:  params.Config.Temperature,
		MaxTokens:    maxTokens,
		SystemPrompt: params.SystemPrompt,
	}

	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		response, err := provider.Call(ctx, request)
		if err == nil {
			return response, nil
		}

		lastErr = err
		if !IsRetryableError(err) {
			return nil, err
		}

		if attempt == maxRetries-1 {
			break
		}

		delay := r.retryBaseDelay << attempt
		r.logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying after error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
}

func (r *Runner) updateProfileSuccess(profileID string) {
	r.markProfile(profileID, false)
}

func (r *Runner) updateProfileFailure(profileID string) {
	r.markProfile(profileID, true)
}

// markProfile records the outcome of a profile. Each consecutive failure adds
// a minute to its cooldown; a success clears it.
func (r *Runner) markProfile(profileID string, failed bool) {
	r.authMu.Lock()
	defer r.authMu.Unlock()

	for i := range r.authProfiles {
		p := &r.authProfiles[i]
		if p.ID != profileID {
			continue
		}
		if failed {
			p.FailureCount++
			until := time.Now().Add(time.Duration(p.FailureCount) * time.Minute).UnixMilli()
			p.CooldownUntil = &until
		} else {
			p.FailureCount = 0
			p.CooldownUntil = nil
		}
		observability.SetProviderCooldown(p.Provider, failed)
		return
	}
}

// sortProfilesByPriority sorts profiles by priority (lower = higher priority)
func sortProfilesByPriority(profiles []AuthProfile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Priority < profiles[j].Priority
	})
}
