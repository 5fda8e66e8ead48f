package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/z-tavern/chatbot/internal/model/language"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Chat   ChatConfig
	Log    LogConfig
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// ChatConfig 描述会话行为。
type ChatConfig struct {
	DefaultLanguage string
	// HistoryWindow limits how many prior turns go into each prompt; 0 keeps all.
	HistoryWindow int
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Format string
}

const (
	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
)

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	maxTokens := defaultMaxTokens
	temperature := defaultTemperature
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		AI: AIConfig{
			BaseURL:     "https://ark.cn-beijing.volces.com/api/v3",
			Region:      "cn-beijing",
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		},
		Chat: ChatConfig{DefaultLanguage: language.Default},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Load 依次应用默认值、可选的 TOML 文件和环境变量。path 为空时读取 CHATBOT_CONFIG。
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv("CHATBOT_CONFIG"))
	}
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.AI.Temperature != nil && (*c.AI.Temperature < 0 || *c.AI.Temperature > 1) {
		return fmt.Errorf("temperature must be within [0,1], got %v", *c.AI.Temperature)
	}
	if c.AI.MaxTokens != nil && *c.AI.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be positive, got %d", *c.AI.MaxTokens)
	}
	if c.Chat.HistoryWindow < 0 {
		return fmt.Errorf("history window must not be negative, got %d", c.Chat.HistoryWindow)
	}
	if _, ok := language.NewMemoryStore(language.Seed()).FindByID(c.Chat.DefaultLanguage); !ok {
		return fmt.Errorf("unsupported default language %q", c.Chat.DefaultLanguage)
	}
	c.Chat.DefaultLanguage = language.Normalize(c.Chat.DefaultLanguage)
	return nil
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

type fileConfig struct {
	Server struct {
		Addr string `toml:"addr"`
	} `toml:"server"`
	AI struct {
		APIKey      string   `toml:"api_key"`
		AccessKey   string   `toml:"access_key"`
		SecretKey   string   `toml:"secret_key"`
		Model       string   `toml:"model"`
		BaseURL     string   `toml:"base_url"`
		Region      string   `toml:"region"`
		Temperature *float64 `toml:"temperature"`
		TopP        *float64 `toml:"top_p"`
		MaxTokens   *int     `toml:"max_tokens"`
	} `toml:"ai"`
	Chat struct {
		DefaultLanguage string `toml:"default_language"`
		HistoryWindow   *int   `toml:"history_window"`
	} `toml:"chat"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

func applyFile(cfg *Config, path string) error {
	var fc fileConfig
	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys in config file %s: %v", path, undecoded)
	}

	setString(&cfg.Server.Addr, fc.Server.Addr)
	setString(&cfg.AI.APIKey, fc.AI.APIKey)
	setString(&cfg.AI.AccessKey, fc.AI.AccessKey)
	setString(&cfg.AI.SecretKey, fc.AI.SecretKey)
	setString(&cfg.AI.Model, fc.AI.Model)
	setString(&cfg.AI.BaseURL, fc.AI.BaseURL)
	setString(&cfg.AI.Region, fc.AI.Region)
	if fc.AI.Temperature != nil {
		cfg.AI.Temperature = fc.AI.Temperature
	}
	if fc.AI.TopP != nil {
		cfg.AI.TopP = fc.AI.TopP
	}
	if fc.AI.MaxTokens != nil {
		cfg.AI.MaxTokens = fc.AI.MaxTokens
	}
	setString(&cfg.Chat.DefaultLanguage, fc.Chat.DefaultLanguage)
	if fc.Chat.HistoryWindow != nil {
		cfg.Chat.HistoryWindow = *fc.Chat.HistoryWindow
	}
	setString(&cfg.Log.Level, fc.Log.Level)
	setString(&cfg.Log.Format, fc.Log.Format)
	return nil
}

func applyEnv(cfg *Config) error {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		addr, err := parseAddr(port)
		if err != nil {
			return err
		}
		cfg.Server.Addr = addr
	}

	setString(&cfg.AI.APIKey, os.Getenv("ARK_API_KEY"))
	setString(&cfg.AI.AccessKey, os.Getenv("ARK_ACCESS_KEY"))
	setString(&cfg.AI.SecretKey, os.Getenv("ARK_SECRET_KEY"))
	setString(&cfg.AI.Model, os.Getenv("Model"))
	setString(&cfg.AI.Model, os.Getenv("ARK_MODEL"))
	setString(&cfg.AI.BaseURL, os.Getenv("ARK_BASE_URL"))
	setString(&cfg.AI.Region, os.Getenv("ARK_REGION"))

	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return err
	}
	if temperature != nil {
		cfg.AI.Temperature = temperature
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return err
	}
	if topP != nil {
		cfg.AI.TopP = topP
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return err
	}
	if maxTokens != nil {
		cfg.AI.MaxTokens = maxTokens
	}

	setString(&cfg.Chat.DefaultLanguage, os.Getenv("CHAT_DEFAULT_LANGUAGE"))
	window, err := parseOptionalIntEnv("CHAT_HISTORY_WINDOW")
	if err != nil {
		return err
	}
	if window != nil {
		cfg.Chat.HistoryWindow = *window
	}

	setString(&cfg.Log.Level, os.Getenv("LOG_LEVEL"))
	setString(&cfg.Log.Format, os.Getenv("LOG_FORMAT"))
	return nil
}

// parseAddr 允许用户直接传入 "8080"、":8080" 或 "127.0.0.1:8080"。
func parseAddr(port string) (string, error) {
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	return ":" + port, nil
}

func setString(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
