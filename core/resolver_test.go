package core

import (
	"reflect"
	"sync"
	"testing"

	"github.com/platefleet/zone-engine/model"
)

func testDefaults() model.DefaultPricing {
	return model.DefaultPricing{FullCommission: 10, PartialCommission: 4, Fees: 3}
}

// Spec scenario: a circle zone centered at (40, -74) with radius 1000m and a
// fees override of 5.00; the delivery point sits ~500m from the center.
func TestResolve_CircleZoneOverridesFees(t *testing.T) {
	reg := NewZoneRegistry("s")
	z := circleZone("z1", model.Point{Lat: 40.0, Lon: -74.0}, 1000)
	z.Pricing = &model.PricingOverride{Fees: model.Float64Ptr(5)}
	if err := reg.AddZone(z); err != nil {
		t.Fatalf("AddZone error: %v", err)
	}

	r := NewPricingResolver(reg, testDefaults())
	point := model.Point{Lat: 40.0045, Lon: -74.0} // ~500m north of center

	resolved, opts, sel := r.ResolveInitial(point)
	if sel.Fees != "z1" {
		t.Fatalf("initial fees selection = %q, want z1", sel.Fees)
	}
	if resolved.Fees != 5 {
		t.Fatalf("fees = %v, want 5 (zone override)", resolved.Fees)
	}
	// The zone does not override commissions, so those stay on defaults.
	if resolved.FullCommission != 10 || resolved.PartialCommission != 4 {
		t.Fatalf("commissions = %v/%v, want defaults 10/4", resolved.FullCommission, resolved.PartialCommission)
	}

	// User reselects the default for fees.
	sel.Fees = DefaultKey
	resolved, _, _ = r.Resolve(point, sel)
	if resolved.Fees != 3 {
		t.Fatalf("fees after reselecting default = %v, want 3", resolved.Fees)
	}

	if len(opts.Fees) != 2 || opts.Fees[0].Key != DefaultKey || opts.Fees[1].Key != "z1" {
		t.Fatalf("fees options = %#v, want [default z1]", opts.Fees)
	}
}

func TestResolve_PolygonMissFallsBackToDefaults(t *testing.T) {
	reg := NewZoneRegistry("s")
	z := &model.Zone{
		ID: "sq", Kind: model.ShapePolygon, Status: model.ZoneStatusActive,
		Polygon: &model.Polygon{Vertices: []model.Point{
			{Lat: 40.0, Lon: -74.0}, {Lat: 40.0, Lon: -73.9},
			{Lat: 40.1, Lon: -73.9}, {Lat: 40.1, Lon: -74.0},
		}},
		Pricing: &model.PricingOverride{
			FullCommission:    model.Float64Ptr(20),
			PartialCommission: model.Float64Ptr(8),
			Fees:              model.Float64Ptr(6),
		},
	}
	if err := reg.AddZone(z); err != nil {
		t.Fatalf("AddZone error: %v", err)
	}

	r := NewPricingResolver(reg, testDefaults())
	outside := model.Point{Lat: 41.5, Lon: -74.0}

	if matches := r.Matches(outside); len(matches) != 0 {
		t.Fatalf("Matches = %d zones, want 0", len(matches))
	}
	resolved, _, sel := r.ResolveInitial(outside)
	want := ResolvedPricing{FullCommission: 10, PartialCommission: 4, Fees: 3}
	if resolved != want {
		t.Fatalf("resolved = %#v, want defaults %#v", resolved, want)
	}
	if sel != (Selection{DefaultKey, DefaultKey, DefaultKey}) {
		t.Fatalf("selection = %#v, want all default", sel)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	reg := NewZoneRegistry("s")
	z := circleZone("z1", model.Point{Lat: 40, Lon: -74}, 2000)
	z.Pricing = &model.PricingOverride{FullCommission: model.Float64Ptr(15)}
	if err := reg.AddZone(z); err != nil {
		t.Fatalf("AddZone error: %v", err)
	}

	r := NewPricingResolver(reg, testDefaults())
	p := model.Point{Lat: 40.001, Lon: -74.001}

	r1, o1, s1 := r.ResolveInitial(p)
	r2, o2, s2 := r.ResolveInitial(p)
	if r1 != r2 || !reflect.DeepEqual(o1, o2) || s1 != s2 {
		t.Fatalf("resolution not idempotent: (%#v,%#v,%#v) vs (%#v,%#v,%#v)", r1, o1, s1, r2, o2, s2)
	}
}

func TestMatches_SkipsInactiveAndMalformed(t *testing.T) {
	reg := NewZoneRegistry("s")
	center := model.Point{Lat: 40, Lon: -74}

	active := circleZone("active", center, 1000)
	inactive := circleZone("inactive", center, 1000)
	inactive.Status = model.ZoneStatusInactive
	pending := circleZone("pending", center, 1000)
	pending.Status = model.ZoneStatusPending
	broken := &model.Zone{
		ID: "broken", Kind: model.ShapePolygon, Status: model.ZoneStatusActive,
		Polygon: &model.Polygon{Vertices: []model.Point{{Lat: 40}, {Lat: 41}}},
	}
	for _, z := range []*model.Zone{active, inactive, pending, broken} {
		if err := reg.AddZone(z); err != nil {
			t.Fatalf("AddZone %s error: %v", z.ID, err)
		}
	}

	r := NewPricingResolver(reg, testDefaults())
	matches := r.Matches(center)
	if len(matches) != 1 || matches[0].ID != "active" {
		t.Fatalf("Matches = %#v, want only the active zone", matches)
	}
}

func TestOptions_OverlappingZonesInMatchOrder(t *testing.T) {
	reg := NewZoneRegistry("s")
	center := model.Point{Lat: 40, Lon: -74}

	city := circleZone("city-wide", center, 10000)
	city.Pricing = &model.PricingOverride{Fees: model.Float64Ptr(4)}
	urban := circleZone("dense-urban", center, 1500)
	urban.Pricing = &model.PricingOverride{
		Fees:           model.Float64Ptr(6),
		FullCommission: model.Float64Ptr(18),
	}
	if err := reg.AddZone(city); err != nil {
		t.Fatalf("AddZone error: %v", err)
	}
	if err := reg.AddZone(urban); err != nil {
		t.Fatalf("AddZone error: %v", err)
	}

	r := NewPricingResolver(reg, testDefaults())
	opts := r.Options(center)

	wantFees := []FieldOption{{DefaultKey, 3}, {"city-wide", 4}, {"dense-urban", 6}}
	if !reflect.DeepEqual(opts.Fees, wantFees) {
		t.Fatalf("fees options = %#v, want %#v", opts.Fees, wantFees)
	}
	// Only the nested zone overrides full commission.
	wantFull := []FieldOption{{DefaultKey, 10}, {"dense-urban", 18}}
	if !reflect.DeepEqual(opts.FullCommission, wantFull) {
		t.Fatalf("full commission options = %#v, want %#v", opts.FullCommission, wantFull)
	}

	// Initial selection takes the first override in match order, not the
	// most specific zone: precedence is a user decision.
	sel := NewSelection(opts)
	if sel.Fees != "city-wide" {
		t.Fatalf("initial fees selection = %q, want city-wide", sel.Fees)
	}
	if sel.FullCommission != "dense-urban" {
		t.Fatalf("initial full commission selection = %q, want dense-urban", sel.FullCommission)
	}
}

func TestRevalidate_ResetsVanishedSelection(t *testing.T) {
	reg := NewZoneRegistry("s")
	z := circleZone("z1", model.Point{Lat: 40, Lon: -74}, 1000)
	z.Pricing = &model.PricingOverride{Fees: model.Float64Ptr(5)}
	if err := reg.AddZone(z); err != nil {
		t.Fatalf("AddZone error: %v", err)
	}
	r := NewPricingResolver(reg, testDefaults())

	inside := model.Point{Lat: 40.0, Lon: -74.0}
	_, _, sel := r.ResolveInitial(inside)
	if sel.Fees != "z1" {
		t.Fatalf("setup: fees selection = %q, want z1", sel.Fees)
	}

	// The target point moves outside the zone; the stale selection must
	// degrade to the default, not error or keep the old zone's value.
	outside := model.Point{Lat: 41.0, Lon: -74.0}
	resolved, _, sel := r.Resolve(outside, sel)
	if sel.Fees != DefaultKey {
		t.Fatalf("fees selection after move = %q, want default", sel.Fees)
	}
	if resolved.Fees != 3 {
		t.Fatalf("fees after move = %v, want default 3", resolved.Fees)
	}
}

type resolutionCapture struct {
	matched, skipped int
	calls            int
}

func (c *resolutionCapture) ObserveResolution(matched, skipped int) {
	c.matched, c.skipped = matched, skipped
	c.calls++
}

func TestMatches_ReportsToRecorder(t *testing.T) {
	reg := NewZoneRegistry("s")
	center := model.Point{Lat: 40, Lon: -74}
	if err := reg.AddZone(circleZone("z1", center, 1000)); err != nil {
		t.Fatalf("AddZone error: %v", err)
	}
	broken := &model.Zone{ID: "b", Kind: model.ShapeCircle, Status: model.ZoneStatusActive}
	if err := reg.AddZone(broken); err != nil {
		t.Fatalf("AddZone error: %v", err)
	}

	rec := &resolutionCapture{}
	r := NewPricingResolver(reg, testDefaults(), WithResolutionRecorder(rec))
	r.Matches(center)

	if rec.calls != 1 || rec.matched != 1 || rec.skipped != 1 {
		t.Fatalf("recorder saw calls=%d matched=%d skipped=%d, want 1/1/1", rec.calls, rec.matched, rec.skipped)
	}
}

func TestMatchesWhileStatusFlipsConcurrently(t *testing.T) {
	reg := NewZoneRegistry("s")
	z := circleZone("z1", model.Point{Lat: 40, Lon: -74}, 1000)
	z.Pricing = &model.PricingOverride{Fees: model.Float64Ptr(5)}
	if err := reg.AddZone(z); err != nil {
		t.Fatalf("AddZone error: %v", err)
	}
	r := NewPricingResolver(reg, testDefaults())
	p := model.Point{Lat: 40.0045, Lon: -74.0}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			status := model.ZoneStatusActive
			if i%2 == 1 {
				status = model.ZoneStatusInactive
			}
			_ = reg.SetStatus("z1", status)
		}
	}()

	// Each pass sees a consistent snapshot: either the zone prices the
	// delivery or the defaults do, never a torn mix.
	for i := 0; i < 200; i++ {
		pricing, _, sel := r.ResolveInitial(p)
		switch sel.Fees {
		case "z1":
			if pricing.Fees != 5 {
				t.Fatalf("zone selected but fees = %v", pricing.Fees)
			}
		case DefaultKey:
			if pricing.Fees != 3 {
				t.Fatalf("default selected but fees = %v", pricing.Fees)
			}
		default:
			t.Fatalf("unexpected selection %q", sel.Fees)
		}
	}
	wg.Wait()
}
