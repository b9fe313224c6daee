package assistant

import (
	"context"
	"fmt"
	"strings"

	"shop-assistant/internal/domain"
)

// commentaryNode answers product questions with tool-augmented completions.
// The model may request tools for at most maxToolRounds rounds.
func (a *Assistant) commentaryNode(ctx context.Context, conv *domain.Conversation) (Result, error) {
	tools := a.commentaryTools()
	defs := make([]domain.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, t.def)
	}

	messages := []domain.ChatMessage{
		{Role: string(domain.RoleSystem), Content: commentaryPrompt(a.keys.Keys(ctx))},
		{Role: string(domain.RoleUser), Content: conv.LastUserMessage()},
	}

	for round := 0; ; round++ {
		msg, err := a.chatWithTools(ctx, messages, defs)
		if err != nil {
			return Result{}, err
		}
		if len(msg.ToolCalls) == 0 {
			answer := strings.TrimSpace(msg.Content)
			if answer == "" {
				return Result{}, fmt.Errorf("%w: commentary: empty completion", ErrModelUnavailable)
			}
			return Result{Reply: answer}, nil
		}
		if round >= a.maxToolRounds {
			return Result{}, fmt.Errorf("%w: %w", ErrModelUnavailable, ErrToolRoundsExceeded)
		}

		msg.Role = string(domain.RoleAssistant)
		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			a.log.Debug("tool call", "thread_id", conv.ThreadID, "tool", call.Function.Name, "round", round)
			messages = append(messages, domain.ChatMessage{
				Role:       string(domain.RoleTool),
				ToolCallID: call.ID,
				Content:    runTool(ctx, tools, call),
			})
		}
	}
}
