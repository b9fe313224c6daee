package assistant

import (
	"context"
	"math"
	"strings"
	"time"

	"shop-assistant/internal/domain"
)

// returnWindowDays is the no-reason return window.
const returnWindowDays = 7

var qualityKeywords = []string{
	"破损", "开线", "掉色", "发错", "少发", "质量问题", "瑕疵", "坏的", "不能用",
}

// IsQualityIssue reports whether the message mentions a quality defect.
func IsQualityIssue(text string) bool {
	for _, kw := range qualityKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// DaysSince returns whole days elapsed from t to now, rounded down.
func DaysSince(t, now time.Time) int {
	return int(math.Floor(now.Sub(t).Hours() / 24))
}

// ReturnDecision applies the return policy to an order purchased at
// purchasedAt.
func ReturnDecision(quality bool, purchasedAt, now time.Time) (string, domain.Intent) {
	if quality {
		return replyReturnQuality, domain.IntentManualDocking
	}
	if DaysSince(purchasedAt, now) <= returnWindowDays {
		return replyReturnEligible, domain.IntentReclassify
	}
	return replyReturnExpired, domain.IntentManualDocking
}

func (a *Assistant) returnExchangeNode(ctx context.Context, conv *domain.Conversation) (Result, error) {
	text := conv.LastUserMessage()
	orderID, ok := ExtractOrderID(text)
	if !ok {
		return Result{Reply: replyReturnNeedOrderID}, nil
	}
	quality := IsQualityIssue(text)

	dates := a.catalog.OrderDate(ctx, orderID)
	if len(dates) == 0 {
		return Result{Reply: replyReturnNoRecord}, nil
	}

	reply, next := ReturnDecision(quality, dates[0], a.now())
	a.log.Info("return decision",
		"thread_id", conv.ThreadID,
		"order_id", orderID,
		"quality_issue", quality,
		"days_since_order", DaysSince(dates[0], a.now()),
		"next_intent", string(next),
	)
	return Result{Reply: reply, Intent: next}, nil
}
