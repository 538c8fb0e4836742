package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/medic.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/medic.json", loader.configPath)
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nonexistent.json")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.NotNil(t, cfg)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, 180, cfg.Guardrail.CommandTimeout)
		assert.NotEmpty(t, cfg.DataDir)
	})

	t.Run("load config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "medic.json")

		testConfig := `{
			"ai": {
				"profiles": [
					{"id": "main", "provider": "gemini", "api_key": "AIzaTest", "priority": 1}
				]
			},
			"agent": {"temperature": 0.5, "max_turns": 4},
			"guardrail": {
				"strict": true,
				"command_timeout": 30,
				"allow": [{"command": "uptime", "reason": "load average"}]
			},
			"logging": {"level": "debug"}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		require.Len(t, cfg.AI.Profiles, 1)
		assert.Equal(t, "AIzaTest", cfg.AI.Profiles[0].APIKey)
		assert.Equal(t, 0.5, cfg.Agent.Temperature)
		assert.Equal(t, 4, cfg.Agent.MaxTurns)
		assert.Equal(t, 4096, cfg.Agent.MaxTokens)
		assert.True(t, cfg.Guardrail.Strict)
		assert.Equal(t, 30, cfg.Guardrail.CommandTimeout)
		require.Len(t, cfg.Guardrail.Allow, 1)
		assert.Equal(t, "uptime", cfg.Guardrail.Allow[0].Command)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("environment overrides", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("MEDIC_LOGGING_LEVEL", "error")
		t.Setenv("MEDIC_GUARDRAIL_STRICT", "true")

		cfg, err := NewLoader(filepath.Join(tmpDir, "missing.json")).Load()

		require.NoError(t, err)
		assert.Equal(t, "error", cfg.Logging.Level)
		assert.True(t, cfg.Guardrail.Strict)
	})

	t.Run("audit file defaults under data dir", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "medic.json")
		testConfig := `{"data_dir": "` + filepath.ToSlash(tmpDir) + `", "audit": {"enabled": true}}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tmpDir, "audit.log"), cfg.Audit.File)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.json")
		require.NoError(t, os.WriteFile(configPath, []byte("invalid json"), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	t.Run("save config to file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "medic.json")

		cfg := DefaultConfig()
		cfg.AI.Profiles = []AIProfile{{ID: "main", Provider: "openai", APIKey: "sk-test", Priority: 1}}
		cfg.Guardrail.Strict = true

		loader := NewLoader(configPath)
		require.NoError(t, loader.Save(cfg))

		_, err := os.Stat(configPath)
		assert.NoError(t, err)

		loadedCfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		require.Len(t, loadedCfg.AI.Profiles, 1)
		assert.Equal(t, "sk-test", loadedCfg.AI.Profiles[0].APIKey)
		assert.True(t, loadedCfg.Guardrail.Strict)
	})

	t.Run("create directory if not exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "subdir", "medic.json")

		require.NoError(t, NewLoader(configPath).Save(DefaultConfig()))

		_, err := os.Stat(filepath.Dir(configPath))
		assert.NoError(t, err)
	})
}

func TestLoaderGetConfigPath(t *testing.T) {
	t.Run("custom path", func(t *testing.T) {
		loader := NewLoader("/custom/path/medic.json")
		assert.Equal(t, "/custom/path/medic.json", loader.GetConfigPath())
	})

	t.Run("default path", func(t *testing.T) {
		path := NewLoader("").GetConfigPath()
		assert.NotEmpty(t, path)
		assert.Contains(t, path, ".medic")
		assert.Equal(t, "medic.json", filepath.Base(path))
	})
}
