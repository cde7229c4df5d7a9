package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/factline/internal/model"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseFormats(t *testing.T) {
	all, err := parseFormats("all")
	require.NoError(t, err)
	assert.Equal(t, model.AllFormats(), all)

	empty, err := parseFormats("")
	require.NoError(t, err)
	assert.Equal(t, model.AllFormats(), empty)

	some, err := parseFormats("thread, short,thread")
	require.NoError(t, err)
	assert.Equal(t, []model.FormatKind{model.FormatMicroThread, model.FormatShortPost}, some)

	_, err = parseFormats("short,tweetstorm")
	assert.Error(t, err)
}

func TestApplyProviderEnv(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":    "sk-openai",
		"ANTHROPIC_API_KEY": "sk-ant",
		"GEMINI_API_KEY":    "gem",
		"OLLAMA_BASE_URL":   "http://ollama:11434",
	}
	getenv := func(k string) string { return env[k] }

	cases := []struct {
		provider string
		key      string
		baseURL  string
	}{
		{"openai", "sk-openai", ""},
		{"anthropic", "sk-ant", ""},
		{"claude", "sk-ant", ""},
		{"gemini", "gem", ""},
		{"ollama", "", "http://ollama:11434"},
		{"", "", ""},
	}
	for _, tc := range cases {
		c := model.LLMConfig{Provider: tc.provider}
		applyProviderEnv(&c, getenv)
		assert.Equal(t, tc.key, c.APIKey, "provider %q", tc.provider)
		assert.Equal(t, tc.baseURL, c.BaseURL, "provider %q", tc.provider)
	}

	// Explicit values win over the environment
	c := model.LLMConfig{Provider: "openai", APIKey: "from-config"}
	applyProviderEnv(&c, getenv)
	assert.Equal(t, "from-config", c.APIKey)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig().Pipeline, cfg.Pipeline)
	assert.Equal(t, model.DefaultConfig().Scoring, cfg.Scoring)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: ollama
  model: llama3.1
pipeline:
  max_iterations: 5
stages:
  generation:
    timeout: 300
verify:
  allowed_terms: [Factline Weekly]
`), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	v.Set("verbose", true)

	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3.1", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Pipeline.MaxIterations)
	assert.Equal(t, 300, cfg.Stages.Generation.Timeout)
	assert.Equal(t, 3, cfg.Stages.Generation.Attempts, "unset keys keep their defaults")
	assert.Equal(t, []string{"Factline Weekly"}, cfg.Verify.AllowedTerms)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	v := viper.New()
	v.Set("pipeline.max_iterations", 50)

	_, err := loadConfig(v)
	assert.Error(t, err)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".factline", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var cfg model.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, model.DefaultConfig().Stages, cfg.Stages)
	assert.Contains(t, string(data), "# Factline Configuration File")

	assert.Error(t, writeDefaultConfig(path), "existing file is not overwritten")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "sk-a****wxyz", maskSecret("sk-abcdefghijklmnopqrstuvwxyz"))
}
