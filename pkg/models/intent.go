package models

import (
	"time"
)

// IntentType identifies the trading strategy an intent encodes.
type IntentType string

const (
	// IntentTypeSwap executes immediately once triggered.
	IntentTypeSwap IntentType = "swap"
	// IntentTypeDCA executes a fixed-size trade repeatedly at a fixed interval.
	IntentTypeDCA IntentType = "dca"
	// IntentTypeLimitOrder buys when the price drops to the target.
	IntentTypeLimitOrder IntentType = "limit-order"
	// IntentTypeStopLoss sells when the price drops below the target.
	IntentTypeStopLoss IntentType = "stop-loss"
	// IntentTypeTakeProfit sells when the price rises above the target.
	IntentTypeTakeProfit IntentType = "take-profit"
)

// Valid reports whether t is one of the known intent types.
func (t IntentType) Valid() bool {
	switch t {
	case IntentTypeSwap, IntentTypeDCA, IntentTypeLimitOrder, IntentTypeStopLoss, IntentTypeTakeProfit:
		return true
	}
	return false
}

// Status represents the lifecycle state of an intent.
// The lifecycle is tracked entirely off-chain; the venue contract only sees
// the creation and execution transactions.
type Status string

const (
	// StatusCreated indicates the intent record exists but has not entered the lifecycle yet.
	StatusCreated Status = "Created"

	// StatusPending indicates the intent awaits a manual execution trigger.
	StatusPending Status = "Pending"

	// StatusWatching indicates the intent is monitoring prices for its condition.
	StatusWatching Status = "Watching"

	// StatusReady indicates the price condition was met and the intent can be executed.
	StatusReady Status = "Ready"

	// StatusScheduled indicates a DCA intent waiting for its next execution time.
	StatusScheduled Status = "Scheduled"

	// StatusExecuting indicates an execution transaction was submitted and awaits confirmation.
	StatusExecuting Status = "Executing"

	// StatusCompleted is the terminal state.
	StatusCompleted Status = "Completed"
)

// PriceCondition is the comparison applied against the target price.
type PriceCondition string

const (
	// ConditionGTE triggers when price >= target.
	ConditionGTE PriceCondition = "gte"
	// ConditionLTE triggers when price <= target.
	ConditionLTE PriceCondition = "lte"
	// ConditionNone means the intent carries no price condition.
	ConditionNone PriceCondition = ""
)

// DCAInterval is the spacing between DCA executions.
type DCAInterval string

const (
	// DCAIntervalMinute is a test-mode acceleration, not a production interval.
	DCAIntervalMinute DCAInterval = "minute"
	DCAIntervalHourly DCAInterval = "hourly"
	DCAIntervalDaily  DCAInterval = "daily"
	DCAIntervalWeekly DCAInterval = "weekly"
)

// Valid reports whether i is a known interval.
func (i DCAInterval) Valid() bool {
	switch i {
	case DCAIntervalMinute, DCAIntervalHourly, DCAIntervalDaily, DCAIntervalWeekly:
		return true
	}
	return false
}

// DCAExecution is one entry of a DCA intent's execution history.
type DCAExecution struct {
	TxHash    string `json:"txHash"`
	Timestamp int64  `json:"timestamp"`
	Amount    string `json:"amount"`
}

// Intent is the central record of the engine. Price-condition fields are
// meaningful only for limit-order, stop-loss and take-profit intents; DCA
// fields only when IsDCA is set. A swap intent carries neither.
type Intent struct {
	// ID is sequential and dense within one store (count+1 at creation).
	ID string `json:"id"`
	// ClientID is globally unique and time-based; used for idempotency and
	// debugging, never as a lookup key for status transitions.
	ClientID string `json:"clientId"`

	FromToken string `json:"fromToken"`
	ToToken   string `json:"toToken"`
	FromChain string `json:"fromChain"`
	ToChain   string `json:"toChain"`
	// Amount is formatted "<value> <symbol>"; for DCA it is the
	// per-execution amount.
	Amount string `json:"amount"`

	IntentType IntentType `json:"intentType"`
	Status     Status     `json:"status"`

	HasPriceCondition bool           `json:"hasPriceCondition"`
	PriceCondition    PriceCondition `json:"priceCondition,omitempty"`
	TargetPrice       float64        `json:"targetPrice,omitempty"`
	PriceToken        string         `json:"priceToken,omitempty"`

	IsDCA          bool        `json:"isDCA"`
	DCAInterval    DCAInterval `json:"dcaInterval,omitempty"`
	DCACount       int         `json:"dcaCount,omitempty"`
	DCAExecuted    int         `json:"dcaExecuted"`
	DCATotalAmount string      `json:"dcaTotalAmount,omitempty"`
	// NextExecutionTime is epoch millis; zero when no execution is pending.
	NextExecutionTime int64          `json:"nextExecutionTime,omitempty"`
	DCAExecutions     []DCAExecution `json:"dcaExecutions,omitempty"`

	CreatedAt string `json:"createdAt"`
	// TxHash is the creation transaction hash, or a "local_" placeholder
	// when creation needed no chain transaction.
	TxHash        string `json:"txHash,omitempty"`
	IsLocalIntent bool   `json:"isLocalIntent"`
}

// RemainingSeconds returns the whole seconds until the next scheduled
// execution, floored at zero. Only meaningful for scheduled DCA intents.
func (in *Intent) RemainingSeconds(now time.Time) int64 {
	if in.NextExecutionTime == 0 {
		return 0
	}
	remaining := (in.NextExecutionTime - now.UnixMilli()) / 1000
	if remaining < 0 {
		return 0
	}
	return remaining
}
