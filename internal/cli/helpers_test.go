package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/harun/medic/pkg/agent"
	"github.com/harun/medic/pkg/sandbox"
	"github.com/harun/medic/pkg/sysinfo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const selfTestCommand = "medic-selftest --quick"

// fakeRunner records requests and returns a canned result
type fakeRunner struct {
	mu       sync.Mutex
	requests []sandbox.ExecuteRequest
	result   sandbox.ExecuteResult
}

func (f *fakeRunner) Execute(ctx context.Context, req sandbox.ExecuteRequest) (sandbox.ExecuteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.result, nil
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// scriptedProvider answers each call with the next canned response
type scriptedProvider struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
}

func (p *scriptedProvider) Provider() string { return agent.ProviderGemini }

func (p *scriptedProvider) Call(ctx context.Context, req agent.LLMRequest) (*agent.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(req.Messages) > 0 {
		p.prompts = append(p.prompts, req.Messages[0].Content)
	}
	content := "No issues found."
	if len(p.responses) > 0 {
		content = p.responses[0]
		p.responses = p.responses[1:]
	}
	return &agent.LLMResponse{Content: content}, nil
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

type providerFactory struct {
	provider agent.LLMProvider
}

func (f providerFactory) NewProvider(profile agent.AuthProfile) (agent.LLMProvider, error) {
	if profile.APIKey == "" {
		return nil, &agent.MissingAPIKeyError{Provider: profile.Provider}
	}
	return f.provider, nil
}

type harness struct {
	dir        string
	configPath string
	runner     *fakeRunner
	provider   *scriptedProvider
}

// newHarness points the CLI at a temp config and swaps the host-facing
// dependencies for fakes
func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		dir:      t.TempDir(),
		runner:   &fakeRunner{result: sandbox.ExecuteResult{Stdout: "selftest ok\n"}},
		provider: &scriptedProvider{},
	}

	configPath := filepath.Join(h.dir, "medic.json")
	cfg := `{
		"data_dir": "` + filepath.ToSlash(h.dir) + `",
		"logging": {"level": "error"},
		"guardrail": {"allow": [{"command": "` + selfTestCommand + `", "reason": "self test"}]}
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0644))

	prevRunner, prevFactory, prevCollect := newCommandRunner, newProviderFactory, collectSystemInfo
	t.Cleanup(func() {
		newCommandRunner, newProviderFactory, collectSystemInfo = prevRunner, prevFactory, prevCollect
	})

	newCommandRunner = func(sandbox.Config) (sandbox.Runner, error) { return h.runner, nil }
	newProviderFactory = func() agent.ProviderCreator { return providerFactory{provider: h.provider} }
	collectSystemInfo = func(ctx context.Context) (sysinfo.Info, error) {
		return sysinfo.Info{OS: "linux", Architecture: "amd64", Hostname: "test-host", KernelVersion: "6.8.0"}, nil
	}

	for _, provider := range agent.SupportedProviders() {
		t.Setenv(agent.APIKeyEnv(provider), "")
	}

	h.configPath = configPath
	return h
}

// execute runs the root command with every flag reset to its default
func (h *harness) execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cmd := GetRootCmd()
	resetFlags(cmd)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", h.configPath}, args...))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
