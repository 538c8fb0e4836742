package config

import (
	"testing"

	"github.com/harun/medic/pkg/guardrail"
	"github.com/stretchr/testify/assert"
)

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	t.Run("valid gemini key", func(t *testing.T) {
		assert.NoError(t, v.ValidateAPIKey("AIzaSyTest123", "gemini"))
	})

	t.Run("invalid gemini key", func(t *testing.T) {
		assert.Error(t, v.ValidateAPIKey("sk-test", "gemini"))
	})

	t.Run("valid anthropic key", func(t *testing.T) {
		assert.NoError(t, v.ValidateAPIKey("sk-ant-test123", "anthropic"))
	})

	t.Run("invalid anthropic key", func(t *testing.T) {
		assert.Error(t, v.ValidateAPIKey("invalid-key", "anthropic"))
	})

	t.Run("valid openai key", func(t *testing.T) {
		assert.NoError(t, v.ValidateAPIKey("sk-test123", "openai"))
	})

	t.Run("invalid openai key", func(t *testing.T) {
		assert.Error(t, v.ValidateAPIKey("invalid-key", "openai"))
	})

	t.Run("empty key", func(t *testing.T) {
		assert.Error(t, v.ValidateAPIKey("", "gemini"))
	})
}

func TestValidateProvider(t *testing.T) {
	v := NewValidator()

	for _, p := range []string{"gemini", "anthropic", "openai"} {
		assert.NoError(t, v.ValidateProvider(p), p)
	}
	assert.Error(t, v.ValidateProvider("mistral"))
	assert.Error(t, v.ValidateProvider(""))
}

func TestValidateTemperature(t *testing.T) {
	v := NewValidator()

	t.Run("valid range", func(t *testing.T) {
		assert.NoError(t, v.ValidateTemperature(0))
		assert.NoError(t, v.ValidateTemperature(0.2))
		assert.NoError(t, v.ValidateTemperature(2))
	})

	t.Run("out of range", func(t *testing.T) {
		assert.Error(t, v.ValidateTemperature(-0.1))
		assert.Error(t, v.ValidateTemperature(2.1))
	})
}

func TestValidateMaxTokens(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateMaxTokens(4096))
	assert.Error(t, v.ValidateMaxTokens(0))
	assert.Error(t, v.ValidateMaxTokens(300000))
}

func TestValidateCommandTimeout(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateCommandTimeout(180))
	assert.Error(t, v.ValidateCommandTimeout(0))
	assert.Error(t, v.ValidateCommandTimeout(7200))
}

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	t.Run("valid levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			assert.NoError(t, v.ValidateLogLevel(level))
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		assert.Error(t, v.ValidateLogLevel("verbose"))
	})
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("defaults are valid", func(t *testing.T) {
		assert.Empty(t, v.ValidateConfig(DefaultConfig()))
	})

	t.Run("collects every problem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AI.Profiles = []AIProfile{
			{ID: "a", Provider: "gemini", APIKey: "wrong"},
			{ID: "b", Provider: "cohere"},
		}
		cfg.Agent.Temperature = 3
		cfg.Guardrail.CommandTimeout = 9999
		cfg.Guardrail.Allow = []guardrail.Entry{{Reason: "no command or pattern"}}
		cfg.Logging.Level = "loud"

		errs := v.ValidateConfig(cfg)
		assert.Len(t, errs, 6)
	})
}
