package pricefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/casperlink/intent-engine/pkg/logger"
	"github.com/casperlink/intent-engine/pkg/metrics"
)

// motesPerUnit is the fixed-point scale the oracle contract stores prices in.
const motesPerUnit = 100_000_000

// queryTimeout bounds each node round trip.
const queryTimeout = 5 * time.Second

// OracleReader reads prices the oracle contract has stored on chain. Prices
// live in a contract dictionary keyed by feed name (CSPR_USD, ...), each
// value a fixed-point integer with 8 decimals.
type OracleReader struct {
	client      *rpc.Client
	packageHash string
	logger      logger.Logger
}

// NewOracleReader connects to the node JSON-RPC endpoint.
func NewOracleReader(rpcURL, packageHash string, log logger.Logger) (*OracleReader, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	client, err := rpc.DialHTTP(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial node rpc: %v", err)
	}
	return &OracleReader{
		client:      client,
		packageHash: packageHash,
		logger:      log,
	}, nil
}

// stateRootHashResult mirrors the chain_get_state_root_hash response.
type stateRootHashResult struct {
	StateRootHash string `json:"state_root_hash"`
}

// dictionaryItemResult mirrors the state_get_dictionary_item response.
type dictionaryItemResult struct {
	StoredValue struct {
		CLValue struct {
			Parsed string `json:"parsed"`
		} `json:"CLValue"`
	} `json:"stored_value"`
}

// dictionaryIdentifier addresses the oracle's price dictionary.
type dictionaryIdentifier struct {
	ContractNamedKey struct {
		Key               string `json:"key"`
		DictionaryName    string `json:"dictionary_name"`
		DictionaryItemKey string `json:"dictionary_item_key"`
	} `json:"ContractNamedKey"`
}

// StateRootHash fetches the current state root hash.
func (o *OracleReader) StateRootHash(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var result stateRootHashResult
	if err := o.client.CallContext(ctx, &result, "chain_get_state_root_hash"); err != nil {
		return "", fmt.Errorf("failed to get state root hash: %v", err)
	}
	if result.StateRootHash == "" {
		return "", fmt.Errorf("node returned empty state root hash")
	}
	return result.StateRootHash, nil
}

// Price reads one feed from the oracle dictionary under the given state
// root. Returns the price in USD.
func (o *OracleReader) Price(ctx context.Context, stateRootHash, feed string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	params := map[string]interface{}{
		"state_root_hash": stateRootHash,
	}
	var ident dictionaryIdentifier
	ident.ContractNamedKey.Key = "hash-" + o.packageHash
	ident.ContractNamedKey.DictionaryName = "prices"
	ident.ContractNamedKey.DictionaryItemKey = feed
	params["dictionary_identifier"] = ident

	var result dictionaryItemResult
	if err := o.client.CallContext(ctx, &result, "state_get_dictionary_item", params); err != nil {
		metrics.OracleQueries.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("failed to read oracle feed %s: %v", feed, err)
	}

	var motes uint64
	if _, err := fmt.Sscanf(result.StoredValue.CLValue.Parsed, "%d", &motes); err != nil {
		metrics.OracleQueries.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("unexpected oracle value for feed %s: %q", feed, result.StoredValue.CLValue.Parsed)
	}

	metrics.OracleQueries.WithLabelValues("success").Inc()
	return float64(motes) / motesPerUnit, nil
}

// Prices reads all requested feeds, skipping any that fail or are unset.
func (o *OracleReader) Prices(ctx context.Context, feeds []string) map[string]float64 {
	out := make(map[string]float64)

	stateRootHash, err := o.StateRootHash(ctx)
	if err != nil {
		o.logger.DebugWith(logger.Oracle, "Skipping oracle read: %v", err)
		return out
	}

	for _, feed := range feeds {
		price, err := o.Price(ctx, stateRootHash, feed)
		if err != nil {
			o.logger.DebugWith(logger.Oracle, "Feed %s unavailable: %v", feed, err)
			continue
		}
		if price > 0 {
			out[BareSymbol(feed)] = price
		}
	}
	return out
}

// Close releases the RPC connection.
func (o *OracleReader) Close() {
	o.client.Close()
}
