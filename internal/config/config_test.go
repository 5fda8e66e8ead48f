package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"CHATBOT_CONFIG", "PORT", "ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "Model", "ARK_MODEL",
	"ARK_BASE_URL", "ARK_REGION", "ARK_TEMPERATURE", "ARK_TOP_P", "ARK_MAX_TOKENS",
	"CHAT_DEFAULT_LANGUAGE", "CHAT_HISTORY_WINDOW", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every key Load reads; blank values are treated as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chatbot.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	require.NotNil(t, cfg.AI.MaxTokens)
	assert.Equal(t, 1000, *cfg.AI.MaxTokens)
	require.NotNil(t, cfg.AI.Temperature)
	assert.InDelta(t, 0.7, *cfg.AI.Temperature, 1e-9)
	assert.Equal(t, "english", cfg.Chat.DefaultLanguage)
	assert.Zero(t, cfg.Chat.HistoryWindow)
	assert.False(t, cfg.AI.Enabled())
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
[server]
addr = "127.0.0.1:9000"

[ai]
model = "doubao-pro"
api_key = "file-key"
temperature = 0.2
max_tokens = 256

[chat]
default_language = "Spanish"
history_window = 6
`)
	t.Setenv("ARK_MAX_TOKENS", "512")
	t.Setenv("PORT", "7000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "doubao-pro", cfg.AI.Model)
	assert.Equal(t, 512, *cfg.AI.MaxTokens)
	assert.InDelta(t, 0.2, *cfg.AI.Temperature, 1e-9)
	assert.Equal(t, "spanish", cfg.Chat.DefaultLanguage)
	assert.Equal(t, 6, cfg.Chat.HistoryWindow)
	assert.True(t, cfg.AI.Enabled())
}

func TestLoadUsesConfigEnvPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHATBOT_CONFIG", writeFile(t, "[log]\nlevel = \"debug\"\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"temperature above one": {"ARK_TEMPERATURE": "1.5"},
		"temperature not float": {"ARK_TEMPERATURE": "warm"},
		"max tokens zero":       {"ARK_MAX_TOKENS": "0"},
		"window negative":       {"CHAT_HISTORY_WINDOW": "-2"},
		"unknown language":      {"CHAT_DEFAULT_LANGUAGE": "french"},
		"port with space":       {"PORT": "80 80"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsUnknownFileKeys(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeFile(t, "[ai]\nmodle = \"typo\"\n"))
	assert.Error(t, err)
}

func TestAIConfigEnabled(t *testing.T) {
	assert.True(t, AIConfig{Model: "m", APIKey: "k"}.Enabled())
	assert.True(t, AIConfig{Model: "m", AccessKey: "a", SecretKey: "s"}.Enabled())
	assert.False(t, AIConfig{Model: "m", AccessKey: "a"}.Enabled())
	assert.False(t, AIConfig{APIKey: "k"}.Enabled())
}
