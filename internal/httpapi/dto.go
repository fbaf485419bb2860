package httpapi

import (
	"github.com/platefleet/zone-engine/core"
	"github.com/platefleet/zone-engine/model"
)

// pointWire is the lat/lng pair used on every endpoint.
type pointWire struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func toPoint(w pointWire) model.Point { return model.Point{Lat: w.Lat, Lon: w.Lng} }

func fromPoint(p model.Point) pointWire { return pointWire{Lat: p.Lat, Lng: p.Lon} }

// pricingWire mirrors model.PricingOverride: absent fields defer to the scope
// defaults.
type pricingWire struct {
	FullCommission    *float64 `json:"full_commission,omitempty"`
	PartialCommission *float64 `json:"partial_commission,omitempty"`
	Fees              *float64 `json:"user_fees,omitempty"`
}

func (w *pricingWire) toModel() *model.PricingOverride {
	if w == nil {
		return nil
	}
	return &model.PricingOverride{
		FullCommission:    w.FullCommission,
		PartialCommission: w.PartialCommission,
		Fees:              w.Fees,
	}
}

func pricingFromModel(p *model.PricingOverride) *pricingWire {
	if p == nil {
		return nil
	}
	return &pricingWire{
		FullCommission:    p.FullCommission,
		PartialCommission: p.PartialCommission,
		Fees:              p.Fees,
	}
}

// zoneWire is the zone representation served on the zone endpoints. Exactly
// one geometry block is populated, selected by Type.
type zoneWire struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`

	Center  *pointWire  `json:"center,omitempty"`
	RadiusM *float64    `json:"radius_m,omitempty"`
	Points  []pointWire `json:"points,omitempty"`

	Pricing *pricingWire `json:"pricing,omitempty"`
}

func zoneToWire(z *model.Zone) zoneWire {
	w := zoneWire{
		ID:      z.ID,
		Name:    z.Name,
		Type:    string(z.Kind),
		Status:  string(z.Status),
		Pricing: pricingFromModel(z.Pricing),
	}
	if z.Circle != nil {
		center := fromPoint(z.Circle.Center)
		radius := z.Circle.RadiusM
		w.Center = &center
		w.RadiusM = &radius
	}
	if z.Polygon != nil {
		w.Points = make([]pointWire, 0, len(z.Polygon.Vertices))
		for _, v := range z.Polygon.Vertices {
			w.Points = append(w.Points, fromPoint(v))
		}
	}
	return w
}

type zoneListResponse struct {
	Scope string     `json:"scope"`
	Zones []zoneWire `json:"zones"`
}

// createZoneRequest creates a zone. ID is optional; the server assigns one
// when absent.
type createZoneRequest struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status,omitempty"`

	Center  *pointWire  `json:"center,omitempty"`
	RadiusM *float64    `json:"radius_m,omitempty"`
	Points  []pointWire `json:"points,omitempty"`

	Pricing *pricingWire `json:"pricing,omitempty"`
}

// updateZoneRequest is a partial zone update; absent fields are untouched.
type updateZoneRequest struct {
	Name   *string `json:"name,omitempty"`
	Status *string `json:"status,omitempty"`
	Type   *string `json:"type,omitempty"`

	Center  *pointWire  `json:"center,omitempty"`
	RadiusM *float64    `json:"radius_m,omitempty"`
	Points  []pointWire `json:"points,omitempty"`

	Pricing      *pricingWire `json:"pricing,omitempty"`
	ClearPricing bool         `json:"clear_pricing,omitempty"`
}

// resolveRequest asks for effective pricing at a target point. Selection is
// optional: when absent the initial selection rule applies (first zone
// override per field, else "default").
type resolveRequest struct {
	Target    pointWire         `json:"target"`
	Selection map[string]string `json:"selection,omitempty"`
}

// resolveResponse carries the three per-field option maps keyed by "default"
// plus matched zone IDs, alongside the validated selection and the effective
// values.
type resolveResponse struct {
	Options   map[string]map[string]float64 `json:"options"`
	Selection map[string]string             `json:"selection"`
	Pricing   map[string]float64            `json:"pricing"`
}

func optionsToWire(opts core.FieldOptions) map[string]map[string]float64 {
	return map[string]map[string]float64{
		core.FieldFullCommission:    optionListToMap(opts.FullCommission),
		core.FieldPartialCommission: optionListToMap(opts.PartialCommission),
		core.FieldFees:              optionListToMap(opts.Fees),
	}
}

func optionListToMap(list []core.FieldOption) map[string]float64 {
	m := make(map[string]float64, len(list))
	for _, o := range list {
		m[o.Key] = o.Value
	}
	return m
}

func selectionToWire(sel core.Selection) map[string]string {
	return map[string]string{
		core.FieldFullCommission:    sel.FullCommission,
		core.FieldPartialCommission: sel.PartialCommission,
		core.FieldFees:              sel.Fees,
	}
}

func selectionFromWire(m map[string]string) core.Selection {
	sel := core.Selection{
		FullCommission:    core.DefaultKey,
		PartialCommission: core.DefaultKey,
		Fees:              core.DefaultKey,
	}
	if v, ok := m[core.FieldFullCommission]; ok {
		sel.FullCommission = v
	}
	if v, ok := m[core.FieldPartialCommission]; ok {
		sel.PartialCommission = v
	}
	if v, ok := m[core.FieldFees]; ok {
		sel.Fees = v
	}
	return sel
}

func pricingToWire(p core.ResolvedPricing) map[string]float64 {
	return map[string]float64{
		core.FieldFullCommission:    p.FullCommission,
		core.FieldPartialCommission: p.PartialCommission,
		core.FieldFees:              p.Fees,
	}
}

type addressWire struct {
	Street     string    `json:"street"`
	City       string    `json:"city"`
	Province   string    `json:"province"`
	PostalCode string    `json:"postal_code"`
	Position   pointWire `json:"position"`
}

func addressToWire(a model.Address) addressWire {
	return addressWire{
		Street:     a.Street,
		City:       a.City,
		Province:   a.Province,
		PostalCode: a.PostalCode,
		Position:   fromPoint(a.Position),
	}
}

type placeWire struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Position    pointWire `json:"position"`
}

type placeSearchResponse struct {
	Results []placeWire `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}
