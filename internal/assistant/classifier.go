package assistant

import (
	"context"
	"strings"

	"shop-assistant/internal/domain"
)

// Classify asks the model for one of the five labels. ok is false when the
// reply, minus surrounding whitespace, is not exactly a known label; err is
// non-nil only on model failure.
func (a *Assistant) Classify(ctx context.Context, userMessage string) (domain.Intent, bool, error) {
	out, err := a.chat(ctx, "classify", []domain.ChatMessage{
		{Role: string(domain.RoleSystem), Content: classifierPrompt},
		{Role: string(domain.RoleUser), Content: userMessage},
	})
	if err != nil {
		return domain.IntentNone, false, err
	}
	// Only surrounding whitespace is dropped; the label itself must match exactly.
	intent, ok := domain.ParseLabel(strings.TrimSpace(out))
	return intent, ok, nil
}

// classifierNode ends the turn once an intent is already present; otherwise
// it records the classifier's decision. An unrecognised label escalates.
func (a *Assistant) classifierNode(ctx context.Context, conv *domain.Conversation) (Result, error) {
	if conv.Intent != domain.IntentNone {
		return Result{Intent: domain.IntentTerminal}, nil
	}
	intent, ok, err := a.Classify(ctx, conv.LastUserMessage())
	if err != nil {
		return Result{}, err
	}
	if !ok {
		a.log.Warn("classifier returned no known label; escalating", "thread_id", conv.ThreadID)
		return Result{Intent: domain.IntentManualDocking}, nil
	}
	return Result{Intent: intent}, nil
}
