// Package app assembles the services shared by the server and the REPL.
package app

import (
	"context"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-tavern/chatbot/internal/config"
	"github.com/zhouzirui/z-tavern/chatbot/internal/logging"
	"github.com/zhouzirui/z-tavern/chatbot/internal/model/language"
	"github.com/zhouzirui/z-tavern/chatbot/internal/service/ai"
	"github.com/zhouzirui/z-tavern/chatbot/internal/service/chat"
)

// App holds the wired services.
type App struct {
	Config    *config.Config
	Log       *logrus.Logger
	Languages language.Store
	Chat      *chat.Service
}

// New loads .env and configuration, then builds every service. A missing or
// broken model configuration is not fatal: the app runs with inference
// disabled and every turn fails with chat.ErrInferenceUnavailable.
func New(ctx context.Context, configPath string) (*App, error) {
	return newApp(ctx, configPath, os.Stdout)
}

func newApp(ctx context.Context, configPath string, out io.Writer) (*App, error) {
	envErr := godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	log.SetOutput(out)
	if envErr != nil {
		log.WithError(envErr).Warn("failed to load .env file, continuing with system environment variables only")
	}

	languages := language.NewMemoryStore(language.Seed())
	assembler := chat.NewPromptAssembler(languages, cfg.Chat.HistoryWindow)

	var inferencer chat.Inferencer
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI, log.WithField("component", "ai"))
		if err != nil {
			log.WithError(err).Warn("failed to initialize AI service, continuing without inference")
		} else {
			inferencer = aiService
			log.WithField("model", cfg.AI.Model).Info("AI service initialized")
		}
	} else {
		log.Warn("Ark 凭证未配置，跳过 AI 功能初始化")
	}

	return &App{
		Config:    cfg,
		Log:       log,
		Languages: languages,
		Chat:      chat.NewService(languages, assembler, inferencer, log.WithField("component", "chat")),
	}, nil
}
