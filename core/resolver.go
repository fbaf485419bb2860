// core/resolver.go
package core

import (
	"context"

	"github.com/platefleet/zone-engine/internal/logging"
	"github.com/platefleet/zone-engine/model"
)

// Pricing field names, matching the commission lookup wire shape consumed by
// the delivery form.
const (
	FieldFullCommission    = "full_commission"
	FieldPartialCommission = "partial_commission"
	FieldFees              = "user_fees"
)

// DefaultKey is the option key that resolves to the scope's default pricing.
const DefaultKey = "default"

// FieldOption is one selectable value for a pricing field: either the scope
// default or one matched zone's override.
type FieldOption struct {
	Key   string // zone ID or DefaultKey
	Value float64
}

// FieldOptions holds the per-field option lists for one target point. Each
// list starts with the DefaultKey entry, followed by matched-zone overrides
// in match order. Multiple entries are not an error: overlapping zones are a
// normal layout and the choice between them is the caller's.
type FieldOptions struct {
	FullCommission    []FieldOption
	PartialCommission []FieldOption
	Fees              []FieldOption
}

// Selection records which option key the caller picked for each field.
type Selection struct {
	FullCommission    string
	PartialCommission string
	Fees              string
}

// ResolvedPricing is the effective commission/fee set for one delivery.
type ResolvedPricing struct {
	FullCommission    float64
	PartialCommission float64
	Fees              float64
}

// ResolutionRecorder receives resolution outcomes for metrics.
type ResolutionRecorder interface {
	ObserveResolution(matched, skipped int)
}

// PricingResolver determines which zones cover a delivery point and turns
// the match set into effective commission/fee values.
type PricingResolver struct {
	Registry *ZoneRegistry
	Defaults model.DefaultPricing

	log     logging.Logger
	metrics ResolutionRecorder
}

// ResolverOption customises PricingResolver construction.
type ResolverOption func(*PricingResolver)

// WithResolverLogger attaches a structured logger for skipped-zone warnings.
func WithResolverLogger(log logging.Logger) ResolverOption {
	return func(r *PricingResolver) { r.log = log }
}

// WithResolutionRecorder attaches a metrics recorder.
func WithResolutionRecorder(rec ResolutionRecorder) ResolverOption {
	return func(r *PricingResolver) { r.metrics = rec }
}

// NewPricingResolver wires a resolver to a registry and its scope defaults.
func NewPricingResolver(reg *ZoneRegistry, defaults model.DefaultPricing, opts ...ResolverOption) *PricingResolver {
	r := &PricingResolver{
		Registry: reg,
		Defaults: defaults,
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Matches returns the active zones containing p, in registry list order.
// Zones with malformed geometry are skipped rather than aborting the pass:
// a single broken zone must not block pricing for a valid delivery.
func (r *PricingResolver) Matches(p model.Point) []*model.Zone {
	var matches []*model.Zone
	skipped := 0
	for _, z := range r.Registry.ListZones() {
		if z.Status != model.ZoneStatusActive {
			continue
		}
		in, err := ZoneContains(z, p)
		if err != nil {
			skipped++
			r.log.Warn(context.Background(), "skipping zone with invalid geometry",
				logging.String("zone_id", z.ID),
				logging.String("error", err.Error()),
			)
			continue
		}
		if in {
			matches = append(matches, z)
		}
	}
	if r.metrics != nil {
		r.metrics.ObserveResolution(len(matches), skipped)
	}
	return matches
}

// Options builds the per-field option lists for p. The DefaultKey entry is
// always present; each matched zone contributes an entry per field it
// actually overrides.
func (r *PricingResolver) Options(p model.Point) FieldOptions {
	return r.optionsFor(r.Matches(p))
}

func (r *PricingResolver) optionsFor(matches []*model.Zone) FieldOptions {
	opts := FieldOptions{
		FullCommission:    []FieldOption{{Key: DefaultKey, Value: r.Defaults.FullCommission}},
		PartialCommission: []FieldOption{{Key: DefaultKey, Value: r.Defaults.PartialCommission}},
		Fees:              []FieldOption{{Key: DefaultKey, Value: r.Defaults.Fees}},
	}
	for _, z := range matches {
		if z.Pricing == nil {
			continue
		}
		if v := z.Pricing.FullCommission; v != nil {
			opts.FullCommission = append(opts.FullCommission, FieldOption{Key: z.ID, Value: *v})
		}
		if v := z.Pricing.PartialCommission; v != nil {
			opts.PartialCommission = append(opts.PartialCommission, FieldOption{Key: z.ID, Value: *v})
		}
		if v := z.Pricing.Fees; v != nil {
			opts.Fees = append(opts.Fees, FieldOption{Key: z.ID, Value: *v})
		}
	}
	return opts
}

// NewSelection picks the initial key per field: the first zone override when
// any exists, otherwise the default. Zone specificity is deliberately not
// ranked; the user reselects when the first match is not the one they meant.
func NewSelection(opts FieldOptions) Selection {
	return Selection{
		FullCommission:    firstOverrideKey(opts.FullCommission),
		PartialCommission: firstOverrideKey(opts.PartialCommission),
		Fees:              firstOverrideKey(opts.Fees),
	}
}

func firstOverrideKey(list []FieldOption) string {
	for _, o := range list {
		if o.Key != DefaultKey {
			return o.Key
		}
	}
	return DefaultKey
}

// Revalidate resets any selected key that is no longer offered (the target
// point moved, or a zone was deactivated) back to the default.
func (s Selection) Revalidate(opts FieldOptions) Selection {
	return Selection{
		FullCommission:    keyOrDefault(s.FullCommission, opts.FullCommission),
		PartialCommission: keyOrDefault(s.PartialCommission, opts.PartialCommission),
		Fees:              keyOrDefault(s.Fees, opts.Fees),
	}
}

func keyOrDefault(key string, list []FieldOption) string {
	for _, o := range list {
		if o.Key == key {
			return key
		}
	}
	return DefaultKey
}

// Resolve computes the effective pricing for p under the given selection.
// The selection is revalidated first, so a stale key quietly degrades to the
// default instead of resolving against a zone that no longer matches.
// Resolution is pure: identical (point, zones, defaults) inputs give
// identical results.
func (r *PricingResolver) Resolve(p model.Point, sel Selection) (ResolvedPricing, FieldOptions, Selection) {
	opts := r.Options(p)
	sel = sel.Revalidate(opts)
	return ResolvedPricing{
		FullCommission:    valueAt(sel.FullCommission, opts.FullCommission),
		PartialCommission: valueAt(sel.PartialCommission, opts.PartialCommission),
		Fees:              valueAt(sel.Fees, opts.Fees),
	}, opts, sel
}

// ResolveInitial is the delivery-creation entry point: build options, take
// the initial selection, and resolve in one step.
func (r *PricingResolver) ResolveInitial(p model.Point) (ResolvedPricing, FieldOptions, Selection) {
	opts := r.Options(p)
	sel := NewSelection(opts)
	return ResolvedPricing{
		FullCommission:    valueAt(sel.FullCommission, opts.FullCommission),
		PartialCommission: valueAt(sel.PartialCommission, opts.PartialCommission),
		Fees:              valueAt(sel.Fees, opts.Fees),
	}, opts, sel
}

func valueAt(key string, list []FieldOption) float64 {
	for _, o := range list {
		if o.Key == key {
			return o.Value
		}
	}
	// The default entry is always present; reaching here means the key was
	// not revalidated, so degrade to the default value.
	return list[0].Value
}
