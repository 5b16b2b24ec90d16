package engine

import (
	"fmt"
	"time"

	"github.com/casperlink/intent-engine/pkg/metrics"
	"github.com/casperlink/intent-engine/pkg/models"
)

// NextExecutionTime returns the unix-millisecond timestamp of the next DCA
// execution, counted from the given instant. Unknown intervals fall back to
// daily rather than stalling the intent.
func NextExecutionTime(interval models.DCAInterval, from time.Time) int64 {
	var step time.Duration
	switch interval {
	case models.DCAIntervalMinute:
		step = time.Minute
	case models.DCAIntervalHourly:
		step = time.Hour
	case models.DCAIntervalDaily:
		step = 24 * time.Hour
	case models.DCAIntervalWeekly:
		step = 7 * 24 * time.Hour
	default:
		step = 24 * time.Hour
	}
	return from.Add(step).UnixMilli()
}

// RecordExecution applies the outcome of one successful DCA execution to the
// intent in place. It appends to the execution history, advances the counter,
// and either completes the intent or reschedules it from now. The caller
// persists the mutated intent.
func RecordExecution(intent *models.Intent, txHash string, now time.Time) {
	intent.DCAExecutions = append(intent.DCAExecutions, models.DCAExecution{
		TxHash:    txHash,
		Timestamp: now.UnixMilli(),
		Amount:    intent.Amount,
	})
	intent.DCAExecuted++
	intent.TxHash = txHash

	metrics.DCAExecutions.Inc()

	if intent.DCAExecuted >= intent.DCACount {
		intent.Status = models.StatusCompleted
		intent.NextExecutionTime = 0
		metrics.DCACompleted.Inc()
		return
	}

	intent.Status = models.StatusScheduled
	intent.NextExecutionTime = NextExecutionTime(intent.DCAInterval, now)
}

// DueForExecution reports whether a scheduled DCA intent's next execution
// time has arrived.
func DueForExecution(intent *models.Intent, now time.Time) bool {
	if intent.Status != models.StatusScheduled || !intent.IsDCA {
		return false
	}
	return intent.NextExecutionTime > 0 && now.UnixMilli() >= intent.NextExecutionTime
}

// FormatProgress renders DCA progress as "n/m" for status output.
func FormatProgress(intent *models.Intent) string {
	return fmt.Sprintf("%d/%d", intent.DCAExecuted, intent.DCACount)
}
