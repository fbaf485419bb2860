package model

// PricingOverride carries per-zone commission and fee overrides. Each field
// is independently optional; a nil field defers to the scope's defaults.
type PricingOverride struct {
	FullCommission    *float64 // percent
	PartialCommission *float64 // percent
	Fees              *float64 // currency units charged to the user
}

// DefaultPricing is the restaurant-address scoped fallback used when no zone
// matches a delivery point, or a matching zone leaves a field unset.
type DefaultPricing struct {
	FullCommission    float64
	PartialCommission float64
	Fees              float64
}

// Float64Ptr is a small helper for building overrides in code and tests.
func Float64Ptr(v float64) *float64 { return &v }
