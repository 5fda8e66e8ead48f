package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-tavern/chatbot/internal/config"
)

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Service sends assembled prompts to the hosted chat model.
type Service struct {
	chain compose.Runnable[[]*schema.Message, *schema.Message]
	log   logrus.FieldLogger
}

// NewService creates the Ark-backed chat model described by cfg.
func NewService(ctx context.Context, cfg config.AIConfig, log logrus.FieldLogger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, log)
}

// NewServiceWithModel wraps an already constructed chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, log logrus.FieldLogger) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chain: runnable,
		log:   log,
	}, nil
}

// Infer runs the prompt through the model exactly once and returns the reply text.
func (s *Service) Infer(ctx context.Context, messages []*schema.Message) (string, error) {
	response, err := s.chain.Invoke(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", ErrEmptyResponse
	}

	entry := s.log.WithField("length", len(response.Content))
	if usage := tokenUsage(response); usage != nil {
		entry = entry.WithFields(logrus.Fields{
			"prompt_tokens":     usage.PromptTokens,
			"completion_tokens": usage.CompletionTokens,
		})
	}
	entry.Debug("generated response")
	return response.Content, nil
}

func tokenUsage(msg *schema.Message) *schema.TokenUsage {
	if msg.ResponseMeta == nil {
		return nil
	}
	return msg.ResponseMeta.Usage
}
