package deploy

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kind identifies the flavor of execution request being assembled.
type Kind string

const (
	// KindCreateIntent registers a cross-venue intent with the on-chain registry.
	KindCreateIntent Kind = "create-intent-registration"
	// KindExecuteIntent executes a registered cross-venue intent.
	KindExecuteIntent Kind = "execute-intent"
	// KindExecuteWithTransfer executes a registered intent and transfers the
	// output token to the recipient.
	KindExecuteWithTransfer Kind = "execute-intent-with-transfer"
	// KindVenueSwap swaps through the DEX router on a single venue.
	KindVenueSwap Kind = "venue-swap"
)

// swapEntryPoint is the router proxy entry point for native-in swaps.
const swapEntryPoint = "swap_exact_cspr_for_tokens"

// deadlineWindow is how long a submitted swap stays valid.
const deadlineWindow = 10 * time.Minute

// motesPerToken converts whole token amounts to motes.
const motesPerToken = 1_000_000_000

// Request is the unsigned execution payload handed to the wallet. The
// engine treats it as opaque once built; only the signer interprets it.
type Request struct {
	Kind        Kind              `json:"kind"`
	ChainName   string            `json:"chainName"`
	Sender      string            `json:"sender"`
	PackageHash string            `json:"packageHash"`
	EntryPoint  string            `json:"entryPoint"`
	Payment     string            `json:"payment"`
	Args        map[string]string `json:"args"`
}

// Params carry the intent fields the builder needs.
type Params struct {
	Sender     string
	FromToken  string
	ToToken    string
	FromChain  string
	ToChain    string
	Amount     float64
	// ExpectedOut is the estimated output in motes; zero disables the
	// slippage floor.
	ExpectedOut uint64
}

// Builder assembles unsigned execution requests for the router and the
// intent registry.
type Builder struct {
	chainName   string
	routerHash  string
	registry    string
	slippageBps uint64
	payment     string
}

// NewBuilder creates an execution request builder.
func NewBuilder(chainName, routerPackageHash, registryHash string, slippageBps uint64, paymentMotes string) *Builder {
	return &Builder{
		chainName:   chainName,
		routerHash:  routerPackageHash,
		registry:    registryHash,
		slippageBps: slippageBps,
		payment:     paymentMotes,
	}
}

// CreateIntentDeploy assembles the registration payload for a cross-venue
// intent.
func (b *Builder) CreateIntentDeploy(p Params) (json.RawMessage, error) {
	if b.registry == "" {
		return nil, fmt.Errorf("no intent registry configured")
	}
	req := Request{
		Kind:        KindCreateIntent,
		ChainName:   b.chainName,
		Sender:      p.Sender,
		PackageHash: b.registry,
		EntryPoint:  "create_intent",
		Payment:     b.payment,
		Args: map[string]string{
			"source_chain": p.FromChain,
			"dest_chain":   p.ToChain,
			"token_in":     p.FromToken,
			"token_out":    p.ToToken,
			"amount_in":    toMotes(p.Amount),
		},
	}
	return json.Marshal(req)
}

// ExecuteIntentDeploy assembles the execution payload for a registered
// intent.
func (b *Builder) ExecuteIntentDeploy(intentID string, p Params) (json.RawMessage, error) {
	if b.registry == "" {
		return nil, fmt.Errorf("no intent registry configured")
	}
	req := Request{
		Kind:        KindExecuteIntent,
		ChainName:   b.chainName,
		Sender:      p.Sender,
		PackageHash: b.registry,
		EntryPoint:  "execute_intent",
		Payment:     b.payment,
		Args: map[string]string{
			"intent_id": intentID,
		},
	}
	return json.Marshal(req)
}

// ExecuteWithTransferDeploy assembles the execution payload for a
// registered intent whose output moves to the recipient in the same call.
func (b *Builder) ExecuteWithTransferDeploy(intentID string, p Params) (json.RawMessage, error) {
	if b.registry == "" {
		return nil, fmt.Errorf("no intent registry configured")
	}
	req := Request{
		Kind:        KindExecuteWithTransfer,
		ChainName:   b.chainName,
		Sender:      p.Sender,
		PackageHash: b.registry,
		EntryPoint:  "execute_intent_with_transfer",
		Payment:     b.payment,
		Args: map[string]string{
			"intent_id": intentID,
			"recipient": p.Sender,
		},
	}
	return json.Marshal(req)
}

// VenueSwapDeploy assembles a router swap through the proxy entry point.
func (b *Builder) VenueSwapDeploy(p Params) (json.RawMessage, error) {
	amountMotes := toMotes(p.Amount)
	deadline := time.Now().Add(deadlineWindow).UnixMilli()

	req := Request{
		Kind:        KindVenueSwap,
		ChainName:   b.chainName,
		Sender:      p.Sender,
		PackageHash: b.routerHash,
		EntryPoint:  swapEntryPoint,
		Payment:     b.payment,
		Args: map[string]string{
			"amount":         amountMotes,
			"attached_value": amountMotes,
			"token_in":       p.FromToken,
			"token_out":      p.ToToken,
			"amount_out_min": strconv.FormatUint(b.minOut(p.ExpectedOut), 10),
			"to":             p.Sender,
			"deadline":       strconv.FormatInt(deadline, 10),
		},
	}
	return json.Marshal(req)
}

// EstimateOut converts an input amount to the expected output in motes
// using spot prices. Returns zero when either price is missing, which
// disables the slippage floor for that swap.
func EstimateOut(amount, fromPrice, toPrice float64) uint64 {
	if amount <= 0 || fromPrice <= 0 || toPrice <= 0 {
		return 0
	}
	return uint64(amount * fromPrice / toPrice * motesPerToken)
}

// minOut applies the slippage tolerance to the expected output.
func (b *Builder) minOut(expectedOut uint64) uint64 {
	if expectedOut == 0 {
		return 0
	}
	return expectedOut * (10000 - b.slippageBps) / 10000
}

// toMotes converts a whole token amount to a motes string.
func toMotes(amount float64) string {
	return strconv.FormatUint(uint64(amount*motesPerToken), 10)
}
