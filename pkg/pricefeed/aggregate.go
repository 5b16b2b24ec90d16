package pricefeed

import (
	"context"
	"time"

	"github.com/casperlink/intent-engine/pkg/logger"
	"github.com/casperlink/intent-engine/pkg/models"
)

// baseFeeds are the feeds the oracle contract carries.
var baseFeeds = []string{"BTC_USD", "ETH_USD", "CSPR_USD"}

// fallbackPrices are last-resort quotes used when neither the oracle nor
// the external feed has a token.
var fallbackPrices = map[string]float64{
	"BTC":  98500,
	"ETH":  3450,
	"CSPR": 0.0441,
	"USDC": 1.00,
	"USDT": 1.00,
	"WETH": 3450,
	"WBTC": 98500,
	"LINK": 15.50,
}

// derivedTokens are stablecoins (fixed price) and wrapped tokens (price
// inherited from the base token).
var derivedTokens = map[string]struct {
	BaseToken  string
	FixedPrice float64
}{
	"USDC": {FixedPrice: 1.00},
	"USDT": {FixedPrice: 1.00},
	"WETH": {BaseToken: "ETH"},
	"WBTC": {BaseToken: "BTC"},
}

// Aggregator combines the on-chain oracle, the external feed and the
// fallback table into one snapshot source. Priority per token:
// oracle > external > fallback.
type Aggregator struct {
	external *Client
	oracle   *OracleReader
	logger   logger.Logger
}

var _ Source = (*Aggregator)(nil)

// NewAggregator wires the external feed client with an optional oracle
// reader. A nil oracle disables the on-chain source.
func NewAggregator(external *Client, oracle *OracleReader, log logger.Logger) *Aggregator {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Aggregator{
		external: external,
		oracle:   oracle,
		logger:   log,
	}
}

// Snapshot builds a combined snapshot. The external feed's caching and
// stale-serving behavior applies to its share of the data; oracle reads are
// best-effort on top.
func (a *Aggregator) Snapshot(ctx context.Context) (*Snapshot, error) {
	assembledAt := time.Now()
	external, err := a.external.Snapshot(ctx)
	if err != nil {
		// No external data. Oracle plus fallback still makes a usable
		// snapshot for the base feeds.
		a.logger.NoticeWith(logger.Feed, "External feed unavailable: %v", err)
		external = &Snapshot{Prices: map[string]float64{}}
	}

	prices := make(map[string]float64, len(fallbackPrices))
	sources := make(map[string]models.PriceSource, len(fallbackPrices))

	for symbol, price := range external.Prices {
		prices[symbol] = price
		sources[symbol] = models.PriceSourceExternal
	}

	if a.oracle != nil {
		for symbol, price := range a.oracle.Prices(ctx, baseFeeds) {
			prices[symbol] = price
			sources[symbol] = models.PriceSourceOracle
		}
	}

	for symbol, derived := range derivedTokens {
		if _, ok := prices[symbol]; ok {
			continue
		}
		if derived.FixedPrice > 0 {
			prices[symbol] = derived.FixedPrice
			sources[symbol] = models.PriceSourceExternal
			continue
		}
		if base, ok := prices[derived.BaseToken]; ok {
			prices[symbol] = base
			sources[symbol] = sources[derived.BaseToken]
		}
	}

	for symbol, price := range fallbackPrices {
		if _, ok := prices[symbol]; !ok {
			prices[symbol] = price
			sources[symbol] = models.PriceSourceFallback
		}
	}

	quotes := make([]models.PriceData, 0, len(prices))
	lastUpdated := assembledAt.UTC().Format(time.RFC3339)
	for symbol, price := range prices {
		quotes = append(quotes, models.PriceData{
			Symbol:      symbol + "_USD",
			Price:       price,
			Source:      sources[symbol],
			LastUpdated: lastUpdated,
		})
	}

	return &Snapshot{
		Prices:    prices,
		Quotes:    quotes,
		FetchedAt: assembledAt,
	}, nil
}
