package assistant

import (
	"context"
	"fmt"

	"shop-assistant/internal/domain"
)

// empiricalSampleThreshold is the number of comparable purchases at or below
// which the catalog size table is used instead.
const empiricalSampleThreshold = 5

type SizeOutcome int

const (
	SizeInsufficient SizeOutcome = iota
	SizeEmpirical
	SizeCatalog
	SizeNoMatch
)

func (o SizeOutcome) String() string {
	switch o {
	case SizeInsufficient:
		return "insufficient"
	case SizeEmpirical:
		return "empirical"
	case SizeCatalog:
		return "catalog"
	case SizeNoMatch:
		return "no_match"
	default:
		return "unknown"
	}
}

// MajoritySize returns the most frequent size code. Ties go to the
// lexicographically greatest code.
func MajoritySize(samples []string) string {
	counts := make(map[string]int, len(samples))
	for _, s := range samples {
		counts[s]++
	}
	best, bestCount := "", 0
	for code, n := range counts {
		if n > bestCount || (n == bestCount && code > best) {
			best, bestCount = code, n
		}
	}
	return best
}

// CatalogSize picks the first row, in table order, whose height range
// contains height and whose maximum weight is at least weight. The lower
// weight bound is not checked.
func CatalogSize(rows []domain.SizeRow, height, weight int) (string, bool) {
	for _, r := range rows {
		if r.HeightMin <= height && height <= r.HeightMax && weight <= r.WeightMax {
			return r.SizeCode, true
		}
	}
	return "", false
}

// RecommendSize resolves a size for a product and body measurements.
func (a *Assistant) RecommendSize(ctx context.Context, productID int64, height, weight int) (string, SizeOutcome) {
	samples := a.catalog.PurchaseSizes(ctx, productID, height, weight)
	if len(samples) > empiricalSampleThreshold {
		return MajoritySize(samples), SizeEmpirical
	}
	code, ok := CatalogSize(a.catalog.SizeTable(ctx, productID), height, weight)
	if !ok {
		return "", SizeNoMatch
	}
	return code, SizeCatalog
}

func (a *Assistant) sizeNode(ctx context.Context, conv *domain.Conversation) (Result, error) {
	text := conv.LastUserMessage()
	productID, okProduct := ExtractProductID(text)
	height, okHeight := ExtractHeight(text)
	weight, okWeight := ExtractWeight(text)
	if !okProduct || !okHeight || !okWeight {
		return Result{Reply: replySizeInsufficient}, nil
	}

	code, outcome := a.RecommendSize(ctx, productID, height, weight)
	a.log.Info("size recommendation",
		"thread_id", conv.ThreadID,
		"product_id", productID,
		"outcome", outcome.String(),
		"size_code", code,
	)
	switch outcome {
	case SizeEmpirical:
		return Result{Reply: fmt.Sprintf(replySizeEmpiricalFormat, code, code)}, nil
	case SizeCatalog:
		return Result{Reply: fmt.Sprintf(replySizeCatalogFormat, code)}, nil
	default:
		return Result{Reply: replySizeNoMatch}, nil
	}
}
