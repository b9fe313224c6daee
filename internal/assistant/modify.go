package assistant

import (
	"context"

	"shop-assistant/internal/domain"
)

// modifyInformationNode is registered so the intent routes somewhere, but
// order changes are not supported online yet.
func (a *Assistant) modifyInformationNode(_ context.Context, _ *domain.Conversation) (Result, error) {
	return Result{Reply: replyModifyUnsupported}, nil
}
