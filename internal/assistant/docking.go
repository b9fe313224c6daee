package assistant

import (
	"context"
	"strings"

	"shop-assistant/internal/domain"
)

// BuildTicket assembles the escalation record for a conversation. A model
// failure degrades to a templated summary.
func (a *Assistant) BuildTicket(ctx context.Context, conv *domain.Conversation) domain.EscalationTicket {
	query := conv.LastUserMessage()
	if query == "" {
		query = noUserInput
	}
	problemType := string(conv.Intent)
	if problemType == "" {
		problemType = unknownProblemType
	}

	summary, err := a.chat(ctx, "summarize", []domain.ChatMessage{
		{Role: string(domain.RoleUser), Content: summaryPrompt(query, problemType)},
	})
	summary = strings.TrimSpace(summary)
	if err != nil || summary == "" {
		if err != nil {
			a.log.Warn("escalation summary failed", "thread_id", conv.ThreadID, "err", err)
		}
		summary = fallbackSummary(query)
	}

	return domain.EscalationTicket{
		ID:          a.newID(),
		ThreadID:    conv.ThreadID,
		UserQuery:   query,
		ProblemType: conv.Intent,
		OrderID:     formatID(ExtractOrderID(query)),
		ProductID:   formatID(ExtractProductID(query)),
		Summary:     summary,
		CreatedAt:   a.now(),
	}
}

// manualDockingNode always reassures the customer; ticket delivery problems
// are logged and never surface in the reply.
func (a *Assistant) manualDockingNode(ctx context.Context, conv *domain.Conversation) (Result, error) {
	ticket := a.BuildTicket(ctx, conv)
	if err := a.tickets.SubmitTicket(ctx, ticket); err != nil {
		a.log.Error("submit escalation ticket failed", "thread_id", conv.ThreadID, "ticket_id", ticket.ID, "err", err)
	}
	return Result{Reply: replyManualDocking}, nil
}
