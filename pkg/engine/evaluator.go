package engine

import (
	"github.com/casperlink/intent-engine/pkg/models"
)

// IsConditionMet reports whether the intent's price condition is satisfied
// by the given prices. Pure: identical inputs always yield identical
// output. Returns false when the intent has no condition or when the
// condition token has no quote in prices.
func IsConditionMet(intent *models.Intent, prices map[string]float64) bool {
	if !intent.HasPriceCondition {
		return false
	}
	price, ok := prices[intent.PriceToken]
	if !ok {
		return false
	}

	switch intent.PriceCondition {
	case models.ConditionGTE:
		return price >= intent.TargetPrice
	case models.ConditionLTE:
		return price <= intent.TargetPrice
	}
	return false
}

// DerivePriceCondition maps an intent type to its trigger comparison.
// Limit-order ("buy low") and stop-loss ("sell below threshold") share LTE
// against the same token: the condition expresses "price reached", the
// intent type decides what trade follows. Callers must not reinterpret the
// direction from the condition.
func DerivePriceCondition(t models.IntentType) models.PriceCondition {
	switch t {
	case models.IntentTypeLimitOrder:
		return models.ConditionLTE
	case models.IntentTypeStopLoss:
		return models.ConditionLTE
	case models.IntentTypeTakeProfit:
		return models.ConditionGTE
	}
	return models.ConditionNone
}
