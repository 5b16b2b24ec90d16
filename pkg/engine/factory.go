package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/casperlink/intent-engine/pkg/deploy"
	"github.com/casperlink/intent-engine/pkg/logger"
	"github.com/casperlink/intent-engine/pkg/metrics"
	"github.com/casperlink/intent-engine/pkg/models"
	"github.com/google/uuid"
)

// DCACountMax caps the number of executions a single DCA intent may
// schedule.
const DCACountMax = 100

// CreateParams are the user-supplied fields for a new intent. Amount is the
// per-execution amount for DCA intents and the trade amount for everything
// else.
type CreateParams struct {
	FromToken string
	ToToken   string
	FromChain string
	ToChain   string
	Amount    float64

	IntentType models.IntentType

	TargetPrice float64
	// PriceToken overrides the watched token; when empty it is derived
	// from the trade direction.
	PriceToken string

	DCAInterval models.DCAInterval
	DCACount    int
}

// CreateIntent validates the parameters, assembles the intent record, runs
// chain registration for cross-venue intents, and persists the result at the
// head of the collection. On any validation or wallet error no record is
// created.
func (s *Service) CreateIntent(ctx context.Context, p CreateParams) (*models.Intent, error) {
	if err := validateCreate(p); err != nil {
		return nil, err
	}

	now := s.now()

	intent := models.Intent{
		ClientID:   fmt.Sprintf("intent_%d_%s", now.UnixMilli(), uuid.NewString()[:8]),
		FromToken:  p.FromToken,
		ToToken:    p.ToToken,
		FromChain:  p.FromChain,
		ToChain:    p.ToChain,
		IntentType: p.IntentType,
		CreatedAt:  now.UTC().Format("2006-01-02T15:04:05.000Z"),
	}

	switch {
	case p.IntentType == models.IntentTypeDCA:
		total := p.Amount * float64(p.DCACount)
		intent.IsDCA = true
		intent.DCAInterval = p.DCAInterval
		intent.DCACount = p.DCACount
		intent.DCATotalAmount = fmt.Sprintf("%.2f %s", total, p.FromToken)
		intent.Amount = formatAmount(p.Amount, p.FromToken)
		intent.NextExecutionTime = NextExecutionTime(p.DCAInterval, now)
		intent.Status = models.StatusScheduled

	case DerivePriceCondition(p.IntentType) != models.ConditionNone:
		intent.Amount = formatAmount(p.Amount, p.FromToken)
		intent.HasPriceCondition = true
		intent.PriceCondition = DerivePriceCondition(p.IntentType)
		intent.TargetPrice = p.TargetPrice
		intent.PriceToken = p.PriceToken
		if intent.PriceToken == "" {
			intent.PriceToken = defaultPriceToken(p)
		}
		intent.Status = models.StatusWatching

	default:
		intent.Amount = formatAmount(p.Amount, p.FromToken)
		intent.Status = models.StatusPending
	}

	if p.FromChain != p.ToChain {
		txHash, err := s.registerOnChain(ctx, p)
		if err != nil {
			return nil, err
		}
		intent.TxHash = txHash
		intent.IsLocalIntent = false
	} else {
		intent.TxHash = fmt.Sprintf("local_%d", now.UnixMilli())
		intent.IsLocalIntent = true
	}

	s.mu.Lock()
	intent.ID = strconv.Itoa(len(s.intents) + 1)
	s.intents = append([]models.Intent{intent}, s.intents...)
	err := s.saveLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	metrics.IntentsCreated.WithLabelValues(string(p.IntentType)).Inc()
	s.log.InfoWith(logger.Engine, "created %s intent %s (%s -> %s, %s)",
		intent.IntentType, intent.ID, intent.FromToken, intent.ToToken, intent.Status)

	return &intent, nil
}

// registerOnChain submits the cross-venue registration transaction. A wallet
// decline or submission failure aborts creation entirely.
func (s *Service) registerOnChain(ctx context.Context, p CreateParams) (string, error) {
	account := s.currentAccount()
	if account == "" {
		return "", ErrNoAccount
	}

	payload, err := s.builder.CreateIntentDeploy(deploy.Params{
		Sender:    account,
		FromToken: p.FromToken,
		ToToken:   p.ToToken,
		FromChain: p.FromChain,
		ToChain:   p.ToChain,
		Amount:    p.Amount,
	})
	if err != nil {
		return "", fmt.Errorf("building registration payload: %w", err)
	}

	txHash, err := s.wallet.Send(ctx, payload, account)
	if err != nil {
		if errors.Is(err, ErrWalletCancelled) {
			s.log.InfoWith(logger.Engine, "intent registration cancelled by user")
			return "", err
		}
		return "", fmt.Errorf("submitting intent registration: %w", err)
	}
	return txHash, nil
}

func validateCreate(p CreateParams) error {
	if !p.IntentType.Valid() {
		return invalidField("intentType", fmt.Sprintf("unknown type %q", p.IntentType))
	}
	if p.FromToken == "" {
		return missingField("fromToken")
	}
	if p.ToToken == "" {
		return missingField("toToken")
	}

	switch p.IntentType {
	case models.IntentTypeDCA:
		if !p.DCAInterval.Valid() {
			return invalidField("dcaInterval", fmt.Sprintf("unknown interval %q", p.DCAInterval))
		}
		if p.DCACount < 1 || p.DCACount > DCACountMax {
			return invalidField("dcaCount", fmt.Sprintf("must be between 1 and %d", DCACountMax))
		}
		if p.Amount <= 0 {
			return invalidField("amount", "per-execution amount must be positive")
		}

	case models.IntentTypeLimitOrder, models.IntentTypeStopLoss, models.IntentTypeTakeProfit:
		if p.Amount <= 0 {
			return invalidField("amount", "must be positive")
		}
		if p.TargetPrice <= 0 {
			return invalidField("targetPrice", "must be positive")
		}

	default:
		if p.Amount <= 0 {
			return invalidField("amount", "must be positive")
		}
	}
	return nil
}

// defaultPriceToken picks the token to watch: a limit order waits on the
// price of what it buys, the sell-side types on the price of what they sell.
func defaultPriceToken(p CreateParams) string {
	if p.IntentType == models.IntentTypeLimitOrder {
		return p.ToToken
	}
	return p.FromToken
}

// formatAmount renders an amount as "<value> <symbol>" with no trailing
// zeros.
func formatAmount(value float64, symbol string) string {
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + symbol
}

// amountValue parses the numeric part of a stored "<value> <symbol>" amount.
func amountValue(amount string) float64 {
	fields := strings.Fields(amount)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return v
}
