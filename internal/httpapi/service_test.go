package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/platefleet/zone-engine/core"
	"github.com/platefleet/zone-engine/internal/geocode"
	"github.com/platefleet/zone-engine/internal/logging"
	"github.com/platefleet/zone-engine/model"
)

type stubProvider struct {
	addr      model.Address
	places    []model.PlaceCandidate
	err       error
	lastQuery string
}

func (s *stubProvider) ReverseGeocode(_ context.Context, p model.Point) (model.Address, error) {
	if s.err != nil {
		return model.Address{}, s.err
	}
	a := s.addr
	a.Position = p
	return a, nil
}

func (s *stubProvider) SearchPlaces(_ context.Context, query, _ string) ([]model.PlaceCandidate, error) {
	s.lastQuery = query
	if s.err != nil {
		return nil, s.err
	}
	return s.places, nil
}

func newTestServer(t *testing.T, provider *stubProvider) (*httptest.Server, *core.ZoneRegistry) {
	t.Helper()

	reg := core.NewZoneRegistry("main-kitchen")
	resolver := core.NewPricingResolver(reg, model.DefaultPricing{
		FullCommission:    10,
		PartialCommission: 5,
		Fees:              3,
	})

	var p geocode.Provider
	if provider != nil {
		p = provider
	}

	svc := NewService(reg, resolver, p, WithServiceLogger(logging.Noop()))
	srv := httptest.NewServer(NewRouter(svc, nil, logging.Noop()))
	t.Cleanup(srv.Close)
	return srv, reg
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestCreateAndListZones(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/v1/zones", createZoneRequest{
		Name:    "Downtown",
		Type:    "circle",
		Status:  "active",
		Center:  &pointWire{Lat: 40.0, Lng: -74.0},
		RadiusM: model.Float64Ptr(1200),
		Pricing: &pricingWire{Fees: model.Float64Ptr(5)},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decodeBody[zoneWire](t, resp)
	if created.ID == "" {
		t.Fatalf("server should assign an ID")
	}
	if created.Type != "circle" || created.RadiusM == nil || *created.RadiusM != 1200 {
		t.Fatalf("created zone = %+v", created)
	}

	listResp, err := http.Get(srv.URL + "/v1/zones")
	if err != nil {
		t.Fatalf("GET zones: %v", err)
	}
	list := decodeBody[zoneListResponse](t, listResp)
	if list.Scope != "main-kitchen" || len(list.Zones) != 1 {
		t.Fatalf("list = %+v", list)
	}
	if list.Zones[0].ID != created.ID {
		t.Fatalf("listed zone ID = %q, want %q", list.Zones[0].ID, created.ID)
	}
}

func TestCreateZoneValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	cases := []struct {
		name string
		req  createZoneRequest
	}{
		{"missing name", createZoneRequest{Type: "circle", Center: &pointWire{}, RadiusM: model.Float64Ptr(100)}},
		{"unknown type", createZoneRequest{Name: "x", Type: "hexagon"}},
		{"marker is not a zone type", createZoneRequest{Name: "x", Type: "marker"}},
		{"circle without radius", createZoneRequest{Name: "x", Type: "circle", Center: &pointWire{Lat: 1, Lng: 2}}},
		{"zero radius", createZoneRequest{Name: "x", Type: "circle", Center: &pointWire{Lat: 1, Lng: 2}, RadiusM: model.Float64Ptr(0)}},
		{"degenerate polygon", createZoneRequest{Name: "x", Type: "polygon", Points: []pointWire{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}}},
	}
	for _, tc := range cases {
		resp := postJSON(t, srv.URL+"/v1/zones", tc.req)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestCreateZoneDuplicateID(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := createZoneRequest{
		ID: "zone-1", Name: "A", Type: "circle",
		Center: &pointWire{Lat: 40, Lng: -74}, RadiusM: model.Float64Ptr(500),
	}
	resp := postJSON(t, srv.URL+"/v1/zones", req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first create status = %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/v1/zones", req)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate create status = %d, want 409", resp.StatusCode)
	}
}

func TestUpdateZone(t *testing.T) {
	srv, reg := newTestServer(t, nil)
	seedCircleZone(t, reg, "zone-1", model.ZoneStatusPending, nil)

	status := "active"
	body, _ := json.Marshal(updateZoneRequest{Status: &status})
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/v1/zones/zone-1", bytes.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	updated := decodeBody[zoneWire](t, resp)
	if updated.Status != "active" {
		t.Fatalf("status after update = %q", updated.Status)
	}

	req, _ = http.NewRequest(http.MethodPut, srv.URL+"/v1/zones/no-such-zone", bytes.NewReader(body))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT missing: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing zone status = %d, want 404", resp.StatusCode)
	}
}

func TestResolvePricingInitialSelection(t *testing.T) {
	srv, reg := newTestServer(t, nil)
	seedCircleZone(t, reg, "zone-1", model.ZoneStatusActive, &model.PricingOverride{
		Fees: model.Float64Ptr(5),
	})

	resp := postJSON(t, srv.URL+"/v1/pricing/resolve", resolveRequest{
		Target: pointWire{Lat: 40.0045, Lng: -74.0},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve status = %d", resp.StatusCode)
	}
	res := decodeBody[resolveResponse](t, resp)

	feeOpts := res.Options[core.FieldFees]
	if feeOpts["default"] != 3 || feeOpts["zone-1"] != 5 {
		t.Fatalf("fee options = %v", feeOpts)
	}
	if res.Selection[core.FieldFees] != "zone-1" {
		t.Fatalf("initial fee selection = %q, want zone-1", res.Selection[core.FieldFees])
	}
	if res.Pricing[core.FieldFees] != 5 {
		t.Fatalf("resolved fees = %v, want 5", res.Pricing[core.FieldFees])
	}
	// Fields the zone does not override stay on the defaults.
	if res.Selection[core.FieldFullCommission] != "default" || res.Pricing[core.FieldFullCommission] != 10 {
		t.Fatalf("full commission = %q / %v", res.Selection[core.FieldFullCommission], res.Pricing[core.FieldFullCommission])
	}
}

func TestResolvePricingExplicitSelection(t *testing.T) {
	srv, reg := newTestServer(t, nil)
	seedCircleZone(t, reg, "zone-1", model.ZoneStatusActive, &model.PricingOverride{
		Fees: model.Float64Ptr(5),
	})

	resp := postJSON(t, srv.URL+"/v1/pricing/resolve", resolveRequest{
		Target:    pointWire{Lat: 40.0045, Lng: -74.0},
		Selection: map[string]string{core.FieldFees: "default"},
	})
	res := decodeBody[resolveResponse](t, resp)
	if res.Pricing[core.FieldFees] != 3 {
		t.Fatalf("resolved fees = %v, want default 3", res.Pricing[core.FieldFees])
	}

	// A stale key quietly degrades to the default.
	resp = postJSON(t, srv.URL+"/v1/pricing/resolve", resolveRequest{
		Target:    pointWire{Lat: 10, Lng: 10},
		Selection: map[string]string{core.FieldFees: "zone-1"},
	})
	res = decodeBody[resolveResponse](t, resp)
	if res.Selection[core.FieldFees] != "default" || res.Pricing[core.FieldFees] != 3 {
		t.Fatalf("stale selection = %q / %v", res.Selection[core.FieldFees], res.Pricing[core.FieldFees])
	}
}

func TestPricingOptionsEndpoint(t *testing.T) {
	srv, reg := newTestServer(t, nil)
	seedCircleZone(t, reg, "zone-1", model.ZoneStatusActive, &model.PricingOverride{
		FullCommission: model.Float64Ptr(12),
	})

	resp, err := http.Get(srv.URL + "/v1/pricing/options?lat=40.0045&lng=-74.0")
	if err != nil {
		t.Fatalf("GET options: %v", err)
	}
	body := decodeBody[map[string]map[string]map[string]float64](t, resp)
	if body["options"][core.FieldFullCommission]["zone-1"] != 12 {
		t.Fatalf("options = %v", body)
	}

	resp, err = http.Get(srv.URL + "/v1/pricing/options?lat=not-a-number&lng=0")
	if err != nil {
		t.Fatalf("GET bad options: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad lat status = %d, want 400", resp.StatusCode)
	}
}

func TestReverseGeocodeEndpoint(t *testing.T) {
	provider := &stubProvider{addr: model.Address{Street: "10 Main St", City: "Springfield"}}
	srv, _ := newTestServer(t, provider)

	resp, err := http.Get(srv.URL + "/v1/geocode/reverse?lat=40.1&lng=-74.2")
	if err != nil {
		t.Fatalf("GET reverse: %v", err)
	}
	addr := decodeBody[addressWire](t, resp)
	if addr.Street != "10 Main St" || addr.City != "Springfield" {
		t.Fatalf("address = %+v", addr)
	}
	if addr.Position.Lat != 40.1 || addr.Position.Lng != -74.2 {
		t.Fatalf("position = %+v", addr.Position)
	}
}

func TestReverseGeocodeProviderFailure(t *testing.T) {
	provider := &stubProvider{err: errors.New("upstream down")}
	srv, _ := newTestServer(t, provider)

	resp, err := http.Get(srv.URL + "/v1/geocode/reverse?lat=40&lng=-74")
	if err != nil {
		t.Fatalf("GET reverse: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
}

func TestSearchPlacesEndpoint(t *testing.T) {
	provider := &stubProvider{places: []model.PlaceCandidate{
		{Name: "Central Park", DisplayName: "Central Park, Springfield", Position: model.Point{Lat: 40.5, Lon: -74.5}},
	}}
	srv, _ := newTestServer(t, provider)

	resp, err := http.Get(srv.URL + "/v1/places/search?q=park&city=Springfield")
	if err != nil {
		t.Fatalf("GET search: %v", err)
	}
	res := decodeBody[placeSearchResponse](t, resp)
	if len(res.Results) != 1 || res.Results[0].Name != "Central Park" {
		t.Fatalf("results = %+v", res.Results)
	}
	if provider.lastQuery != "park" {
		t.Fatalf("provider query = %q", provider.lastQuery)
	}

	resp, err = http.Get(srv.URL + "/v1/places/search")
	if err != nil {
		t.Fatalf("GET search without q: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing q status = %d, want 400", resp.StatusCode)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/v1/zones")
	if err != nil {
		t.Fatalf("GET zones: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header")
	}
}

func seedCircleZone(t *testing.T, reg *core.ZoneRegistry, id string, status model.ZoneStatus, pricing *model.PricingOverride) {
	t.Helper()
	err := reg.AddZone(&model.Zone{
		ID:     id,
		Name:   id,
		Kind:   model.ShapeCircle,
		Status: status,
		Circle: &model.Circle{
			Center:  model.Point{Lat: 40.0, Lon: -74.0},
			RadiusM: 1000,
		},
		Pricing: pricing,
	})
	if err != nil {
		t.Fatalf("seed zone %s: %v", id, err)
	}
}
