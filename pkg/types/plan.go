package types

// Plan describes a purchasable subscription plan from the catalog.
// The catalog is read-only for this service; it only feeds credit math.
type Plan struct {
	ID       string  `json:"id" mapstructure:"id"`
	Credits  int64   `json:"credits" mapstructure:"credits"`
	PriceUSD float64 `json:"price_usd" mapstructure:"price_usd"`
}
