package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-tavern/chatbot/internal/model/chat"
	"github.com/zhouzirui/z-tavern/chatbot/internal/model/language"
)

// SystemInstruction is the fixed system prompt; {language} is replaced by the
// selected language identifier.
const SystemInstruction = "You are a helpful chatbot. You must reply in {language}."

const (
	languageKey = "language"
	historyKey  = "chat_history"
	queryKey    = "freeform_text"
)

// PromptAssembler turns a language selection, prior turns and a new user
// utterance into the ordered message list sent to the model.
type PromptAssembler struct {
	languages language.Store
	template  prompt.ChatTemplate
	window    int
}

// NewPromptAssembler builds an assembler over the given language catalog.
// window > 0 limits the prior turns placed in the prompt to the most recent
// ones, rounded up to whole user/assistant pairs; zero keeps the whole history.
func NewPromptAssembler(languages language.Store, window int) *PromptAssembler {
	if window < 0 {
		window = 0
	}
	// 窗口必须从用户消息开始，且至少保留一轮问答
	if window%2 == 1 {
		window++
	}

	return &PromptAssembler{
		languages: languages,
		template: prompt.FromMessages(
			schema.FString,
			schema.SystemMessage(SystemInstruction),
			schema.MessagesPlaceholder(historyKey, true),
			schema.UserMessage("{"+queryKey+"}"),
		),
		window: window,
	}
}

// Build returns [system, history..., user]. It has no side effects: history is
// only read.
func (a *PromptAssembler) Build(ctx context.Context, lang string, history []chat.Turn, userText string) ([]*schema.Message, error) {
	selected, ok := a.languages.FindByID(lang)
	if !ok {
		return nil, invalidArgument("unsupported language %q", lang)
	}
	if strings.TrimSpace(userText) == "" {
		return nil, invalidArgument("user text is empty")
	}

	messages, err := a.template.Format(ctx, map[string]any{
		languageKey: selected.ID,
		historyKey:  a.historyMessages(history),
		queryKey:    userText,
	})
	if err != nil {
		return nil, fmt.Errorf("format prompt: %w", err)
	}
	return messages, nil
}

func (a *PromptAssembler) historyMessages(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	start := 0
	if a.window > 0 && len(turns) > a.window {
		start = len(turns) - a.window
	}

	messages := make([]*schema.Message, 0, len(turns)-start)
	for _, turn := range turns[start:] {
		switch turn.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return messages
}
