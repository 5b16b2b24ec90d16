package models

// PriceSource identifies where a quote came from.
type PriceSource string

const (
	// PriceSourceOracle means the on-chain oracle contract supplied the price.
	PriceSourceOracle PriceSource = "oracle"
	// PriceSourceExternal means an external market-data API supplied the price.
	PriceSourceExternal PriceSource = "external"
	// PriceSourceFallback means a hardcoded last-resort price was used.
	PriceSourceFallback PriceSource = "fallback"
)

// PriceData is one quote from the price feed.
type PriceData struct {
	Symbol      string      `json:"symbol"`
	Name        string      `json:"name"`
	Price       float64     `json:"price"`
	Change24h   float64     `json:"change24h"`
	Source      PriceSource `json:"source"`
	LastUpdated string      `json:"lastUpdated"`
}

// PriceResponse is the payload returned by the price aggregation endpoint.
type PriceResponse struct {
	Success   bool            `json:"success"`
	Prices    []PriceData     `json:"prices"`
	Timestamp string          `json:"timestamp"`
	Sources   map[string]bool `json:"sources,omitempty"`
}
